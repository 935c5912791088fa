package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tendant/content-tree/pkg/contenttree"
	"github.com/tendant/content-tree/pkg/contenttree/archive"
)

// Backend is a filesystem implementation of the contenttree.SnapshotArchive interface
type Backend struct {
	baseDir string
	prefix  string
}

// Config options for the filesystem backend
type Config struct {
	BaseDir string // Base directory for storing snapshots
	Prefix  string // Optional sub-directory (default: "published")
}

// New creates a new filesystem snapshot archive
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Backend{
		baseDir: config.BaseDir,
		prefix:  config.Prefix,
	}, nil
}

func (b *Backend) path(contentID string) string {
	return filepath.Join(b.baseDir, filepath.FromSlash(archive.SnapshotKey(b.prefix, filepath.Base(contentID))))
}

// PutSnapshot writes the snapshot atomically via a temp file and rename
func (b *Backend) PutSnapshot(ctx context.Context, published *contenttree.PublishedContent) error {
	data, err := archive.Encode(published)
	if err != nil {
		return err
	}

	filePath := b.path(published.ContentID)
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(filePath), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return fmt.Errorf("failed to move snapshot into place: %w", err)
	}
	return nil
}

// GetSnapshot reads the archived snapshot of contentID
func (b *Backend) GetSnapshot(ctx context.Context, contentID string) (*contenttree.PublishedContent, error) {
	data, err := os.ReadFile(b.path(contentID))
	if os.IsNotExist(err) {
		return nil, contenttree.ErrRecordNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return archive.Decode(data)
}

// DeleteSnapshot removes the archived snapshot of contentID
func (b *Backend) DeleteSnapshot(ctx context.Context, contentID string) error {
	err := os.Remove(b.path(contentID))
	if os.IsNotExist(err) {
		return contenttree.ErrRecordNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}
