package fs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/content-tree/pkg/contenttree"
	"github.com/tendant/content-tree/pkg/contenttree/archive/fs"
)

func TestFilesystemArchive(t *testing.T) {
	dir := t.TempDir()
	backend, err := fs.New(fs.Config{BaseDir: dir})
	require.NoError(t, err)
	ctx := context.Background()

	snapshot := &contenttree.PublishedContent{
		Content:          contenttree.Content{ID: "a", Name: "home"},
		ContentID:        "a",
		ContentVersionID: "v1",
	}
	require.NoError(t, backend.PutSnapshot(ctx, snapshot))

	_, err = os.Stat(filepath.Join(dir, "published", "a.json"))
	require.NoError(t, err)

	got, err := backend.GetSnapshot(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "home", got.Name)
	assert.Equal(t, "v1", got.ContentVersionID)

	snapshot.Name = "home v2"
	require.NoError(t, backend.PutSnapshot(ctx, snapshot))
	got, err = backend.GetSnapshot(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "home v2", got.Name)

	entries, err := os.ReadDir(filepath.Join(dir, "published"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")

	require.NoError(t, backend.DeleteSnapshot(ctx, "a"))
	_, err = backend.GetSnapshot(ctx, "a")
	assert.ErrorIs(t, err, contenttree.ErrRecordNotFound)
	assert.ErrorIs(t, backend.DeleteSnapshot(ctx, "a"), contenttree.ErrRecordNotFound)
}

func TestFilesystemArchive_PrefixAndTraversal(t *testing.T) {
	dir := t.TempDir()
	backend, err := fs.New(fs.Config{BaseDir: dir, Prefix: "live"})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, backend.PutSnapshot(ctx, &contenttree.PublishedContent{
		Content:   contenttree.Content{ID: "../escape"},
		ContentID: "../escape",
	}))

	_, err = os.Stat(filepath.Join(dir, "live", "escape.json"))
	assert.NoError(t, err)
}

func TestFilesystemArchive_RequiresBaseDir(t *testing.T) {
	_, err := fs.New(fs.Config{})
	assert.Error(t, err)
}
