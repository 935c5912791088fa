package contenttree_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tendant/content-tree/pkg/contenttree"
	"github.com/tendant/content-tree/pkg/contenttree/repo/memory"
)

var errInjected = errors.New("injected store failure")

// stepClock advances one second on every call.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type seqIDs struct {
	n atomic.Int64
}

func (g *seqIDs) NewID() string {
	return fmt.Sprintf("id-%d", g.n.Add(1))
}

// faultyStore fails selected operations of the wrapped store.
type faultyStore[T any] struct {
	contenttree.Store[T]
	saveFailures atomic.Int32
	failBulk     atomic.Bool
}

func (s *faultyStore[T]) Save(ctx context.Context, record *T) (*T, error) {
	if s.saveFailures.Add(-1) >= 0 {
		return nil, errInjected
	}
	return s.Store.Save(ctx, record)
}

func (s *faultyStore[T]) BulkUpdateByFilter(ctx context.Context, filter contenttree.Filter, patch contenttree.Patch) (contenttree.BulkResult, error) {
	if s.failBulk.Load() {
		return contenttree.BulkResult{}, errInjected
	}
	return s.Store.BulkUpdateByFilter(ctx, filter, patch)
}

type recordingSink struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingSink) add(event, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event+":"+id)
}

func (r *recordingSink) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.events...)
}

func (r *recordingSink) ContentCreated(ctx context.Context, content *contenttree.Content) error {
	r.add("created", content.ID)
	return nil
}

func (r *recordingSink) ContentUpdated(ctx context.Context, content *contenttree.Content) error {
	r.add("updated", content.ID)
	return nil
}

func (r *recordingSink) ContentPublished(ctx context.Context, published *contenttree.PublishedContent) error {
	r.add("published", published.ContentID)
	return nil
}

func (r *recordingSink) ContentDeleted(ctx context.Context, content *contenttree.Content, descendants int64) error {
	r.add("deleted", content.ID)
	return nil
}

type fixture struct {
	svc       contenttree.Service
	clock     *stepClock
	contents  *memory.Store[contenttree.Content, *contenttree.Content]
	versions  *memory.Store[contenttree.ContentVersion, *contenttree.ContentVersion]
	published *memory.Store[contenttree.PublishedContent, *contenttree.PublishedContent]
	ids       *seqIDs
}

// newFixture builds a service over memory stores.
func newFixture(t *testing.T, opts ...contenttree.Option) *fixture {
	t.Helper()
	f := &fixture{
		clock:     newStepClock(),
		contents:  memory.NewContentStore(),
		versions:  memory.NewVersionStore(),
		published: memory.NewPublishedStore(),
		ids:       &seqIDs{},
	}
	f.rebuild(t, opts...)
	return f
}

// rebuild replaces the service, keeping the stores, clock and id sequence.
// opts are applied last, so they can swap a store for a faultyStore.
func (f *fixture) rebuild(t *testing.T, opts ...contenttree.Option) {
	t.Helper()
	base := []contenttree.Option{
		contenttree.WithContentStore(f.contents),
		contenttree.WithVersionStore(f.versions),
		contenttree.WithPublishedStore(f.published),
		contenttree.WithClock(f.clock),
		contenttree.WithIDGenerator(f.ids),
	}
	svc, err := contenttree.New(append(base, opts...)...)
	require.NoError(t, err)
	f.svc = svc
}

func (f *fixture) create(t *testing.T, name string, parentID *string, items ...contenttree.ChildItem) *contenttree.Content {
	t.Helper()
	c, err := f.svc.ExecuteCreate(context.Background(), contenttree.CreateContentRequest{
		Name:       name,
		ParentID:   parentID,
		ChildItems: items,
	})
	require.NoError(t, err)
	return c
}

func (f *fixture) content(t *testing.T, id string) *contenttree.Content {
	t.Helper()
	c, err := f.contents.FindByID(context.Background(), id)
	require.NoError(t, err)
	return c
}

func (f *fixture) versionsOf(t *testing.T, id string) []*contenttree.ContentVersion {
	t.Helper()
	versions, err := f.versions.List(context.Background(), contenttree.Filter{ContentID: id})
	require.NoError(t, err)
	return versions
}

func (f *fixture) publishedOf(t *testing.T, id string) []*contenttree.PublishedContent {
	t.Helper()
	published, err := f.published.List(context.Background(), contenttree.Filter{ContentID: id})
	require.NoError(t, err)
	return published
}
