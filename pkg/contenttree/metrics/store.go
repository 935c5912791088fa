package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/tendant/content-tree/pkg/contenttree"
)

// InstrumentStore wraps store so every call is counted and timed under name.
func InstrumentStore[T any](r *Recorder, name string, store contenttree.Store[T]) contenttree.Store[T] {
	return &instrumentedStore[T]{r: r, name: name, next: store}
}

type instrumentedStore[T any] struct {
	r    *Recorder
	name string
	next contenttree.Store[T]
}

func (s *instrumentedStore[T]) observe(op string, start time.Time, err error) {
	status := "ok"
	switch {
	case errors.Is(err, contenttree.ErrRecordNotFound):
		status = "not_found"
	case err != nil:
		status = "error"
	}
	s.r.StoreOperations.WithLabelValues(s.name, op, status).Inc()
	s.r.StoreDuration.WithLabelValues(s.name, op).Observe(time.Since(start).Seconds())
}

func (s *instrumentedStore[T]) FindByID(ctx context.Context, id string) (*T, error) {
	start := time.Now()
	record, err := s.next.FindByID(ctx, id)
	s.observe("find_by_id", start, err)
	return record, err
}

func (s *instrumentedStore[T]) FindByFilter(ctx context.Context, filter contenttree.Filter) (*T, error) {
	start := time.Now()
	record, err := s.next.FindByFilter(ctx, filter)
	s.observe("find_by_filter", start, err)
	return record, err
}

func (s *instrumentedStore[T]) Save(ctx context.Context, record *T) (*T, error) {
	start := time.Now()
	saved, err := s.next.Save(ctx, record)
	s.observe("save", start, err)
	return saved, err
}

func (s *instrumentedStore[T]) DeleteByID(ctx context.Context, id string) (*T, error) {
	start := time.Now()
	record, err := s.next.DeleteByID(ctx, id)
	s.observe("delete_by_id", start, err)
	return record, err
}

func (s *instrumentedStore[T]) BulkUpdateByFilter(ctx context.Context, filter contenttree.Filter, patch contenttree.Patch) (contenttree.BulkResult, error) {
	start := time.Now()
	result, err := s.next.BulkUpdateByFilter(ctx, filter, patch)
	s.observe("bulk_update", start, err)
	return result, err
}

// FindIDsByFilter delegates to the wrapped store when it can list ids.
func (s *instrumentedStore[T]) FindIDsByFilter(ctx context.Context, filter contenttree.Filter) ([]string, error) {
	lister, ok := s.next.(contenttree.IDLister)
	if !ok {
		return nil, errors.ErrUnsupported
	}
	start := time.Now()
	ids, err := lister.FindIDsByFilter(ctx, filter)
	s.observe("find_ids_by_filter", start, err)
	return ids, err
}
