package metrics_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/content-tree/pkg/contenttree"
	"github.com/tendant/content-tree/pkg/contenttree/metrics"
	"github.com/tendant/content-tree/pkg/contenttree/repo/memory"
)

func TestEventSinkCountsEvents(t *testing.T) {
	rec := metrics.New(prometheus.NewRegistry())
	sink := rec.EventSink()
	ctx := context.Background()

	content := &contenttree.Content{ID: "a"}
	require.NoError(t, sink.ContentCreated(ctx, content))
	require.NoError(t, sink.ContentCreated(ctx, content))
	require.NoError(t, sink.ContentUpdated(ctx, content))
	require.NoError(t, sink.ContentPublished(ctx, &contenttree.PublishedContent{ContentID: "a"}))
	require.NoError(t, sink.ContentDeleted(ctx, content, 3))

	assert.Equal(t, 2.0, testutil.ToFloat64(rec.Events.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.Events.WithLabelValues("updated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.Events.WithLabelValues("published")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.Events.WithLabelValues("deleted")))
	assert.Equal(t, 3.0, testutil.ToFloat64(rec.DescendantsDeleted))
}

func TestInstrumentStore(t *testing.T) {
	rec := metrics.New(prometheus.NewRegistry())
	store := metrics.InstrumentStore[contenttree.Content](rec, "content", memory.NewContentStore())
	ctx := context.Background()

	_, err := store.Save(ctx, &contenttree.Content{ID: "a"})
	require.NoError(t, err)
	_, err = store.FindByID(ctx, "a")
	require.NoError(t, err)
	_, err = store.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, contenttree.ErrRecordNotFound)

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.StoreOperations.WithLabelValues("content", "save", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.StoreOperations.WithLabelValues("content", "find_by_id", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.StoreOperations.WithLabelValues("content", "find_by_id", "not_found")))

	lister, ok := store.(contenttree.IDLister)
	require.True(t, ok)
	ids, err := lister.FindIDsByFilter(ctx, contenttree.Filter{ID: "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.StoreOperations.WithLabelValues("content", "find_ids_by_filter", "ok")))
}

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	rec := metrics.New(prometheus.NewRegistry())
	r := chi.NewRouter()
	r.Use(rec.Middleware)
	r.Get("/contents/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/contents/abc", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.HTTPRequestsTotal.WithLabelValues("GET", "/contents/{id}", "404")))
}
