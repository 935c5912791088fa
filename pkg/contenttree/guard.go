package contenttree

import (
	"context"
	"sync"
)

// LocalGuard is an in-process PublishGuard holding one lock per content id.
type LocalGuard struct {
	mu    sync.Mutex
	locks map[string]*guardLock
}

type guardLock struct {
	ch      chan struct{}
	waiters int
}

// NewLocalGuard creates an in-process publish guard
func NewLocalGuard() *LocalGuard {
	return &LocalGuard{locks: make(map[string]*guardLock)}
}

// Acquire blocks until the lock for contentID is free or ctx is done.
func (g *LocalGuard) Acquire(ctx context.Context, contentID string) (func(), error) {
	g.mu.Lock()
	l, ok := g.locks[contentID]
	if !ok {
		l = &guardLock{ch: make(chan struct{}, 1)}
		g.locks[contentID] = l
	}
	l.waiters++
	g.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		g.done(contentID, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.ch
			g.done(contentID, l)
		})
	}, nil
}

func (g *LocalGuard) done(contentID string, l *guardLock) {
	g.mu.Lock()
	defer g.mu.Unlock()
	l.waiters--
	if l.waiters == 0 {
		delete(g.locks, contentID)
	}
}
