// Package archive holds helpers shared by the snapshot archive backends.
package archive

import (
	"encoding/json"
	"fmt"
	"path"

	"github.com/tendant/content-tree/pkg/contenttree"
)

// DefaultPrefix is the key prefix snapshots are written under.
const DefaultPrefix = "published"

// SnapshotKey returns the object key a snapshot of contentID is stored at.
func SnapshotKey(prefix, contentID string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return path.Join(prefix, contentID+".json")
}

// Encode serializes a published snapshot.
func Encode(published *contenttree.PublishedContent) ([]byte, error) {
	if published == nil || published.ContentID == "" {
		return nil, fmt.Errorf("snapshot content id is required")
	}
	return json.Marshal(published)
}

// Decode parses a serialized published snapshot.
func Decode(data []byte) (*contenttree.PublishedContent, error) {
	var published contenttree.PublishedContent
	if err := json.Unmarshal(data, &published); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &published, nil
}
