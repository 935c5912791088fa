package memory

import (
	"context"
	"sync"

	"github.com/tendant/content-tree/pkg/contenttree"
	"github.com/tendant/content-tree/pkg/contenttree/archive"
)

// Backend is an in-memory implementation of the contenttree.SnapshotArchive interface
type Backend struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
}

// New creates a new in-memory snapshot archive
func New() *Backend {
	return &Backend{
		snapshots: make(map[string][]byte),
	}
}

// PutSnapshot stores the serialized snapshot, replacing any previous one
func (b *Backend) PutSnapshot(ctx context.Context, published *contenttree.PublishedContent) error {
	data, err := archive.Encode(published)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshots[published.ContentID] = data
	return nil
}

// GetSnapshot returns the archived snapshot of contentID
func (b *Backend) GetSnapshot(ctx context.Context, contentID string) (*contenttree.PublishedContent, error) {
	b.mu.RLock()
	data, exists := b.snapshots[contentID]
	b.mu.RUnlock()

	if !exists {
		return nil, contenttree.ErrRecordNotFound
	}
	return archive.Decode(data)
}

// DeleteSnapshot removes the archived snapshot of contentID
func (b *Backend) DeleteSnapshot(ctx context.Context, contentID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.snapshots[contentID]; !exists {
		return contenttree.ErrRecordNotFound
	}
	delete(b.snapshots, contentID)
	return nil
}

// Len returns the number of archived snapshots
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.snapshots)
}
