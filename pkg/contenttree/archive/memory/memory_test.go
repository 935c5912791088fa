package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/content-tree/pkg/contenttree"
	"github.com/tendant/content-tree/pkg/contenttree/archive/memory"
)

func TestMemoryArchive(t *testing.T) {
	backend := memory.New()
	ctx := context.Background()

	_, err := backend.GetSnapshot(ctx, "a")
	assert.ErrorIs(t, err, contenttree.ErrRecordNotFound)

	snapshot := &contenttree.PublishedContent{
		Content:          contenttree.Content{ID: "a", Name: "home"},
		ContentID:        "a",
		ContentVersionID: "v1",
	}
	require.NoError(t, backend.PutSnapshot(ctx, snapshot))
	assert.Equal(t, 1, backend.Len())

	got, err := backend.GetSnapshot(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "home", got.Name)
	assert.Equal(t, "v1", got.ContentVersionID)

	snapshot.ContentVersionID = "v2"
	require.NoError(t, backend.PutSnapshot(ctx, snapshot))
	assert.Equal(t, 1, backend.Len())

	require.NoError(t, backend.DeleteSnapshot(ctx, "a"))
	assert.ErrorIs(t, backend.DeleteSnapshot(ctx, "a"), contenttree.ErrRecordNotFound)
	assert.Equal(t, 0, backend.Len())

	assert.Error(t, backend.PutSnapshot(ctx, &contenttree.PublishedContent{}))
}
