package contenttree_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/content-tree/pkg/contenttree"
)

func TestLocalGuard_MutualExclusion(t *testing.T) {
	guard := contenttree.NewLocalGuard()
	ctx := context.Background()

	var active, maxActive atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := guard.Acquire(ctx, "a")
			if !assert.NoError(t, err) {
				return
			}
			defer release()

			n := active.Add(1)
			for {
				m := maxActive.Load()
				if n <= m || maxActive.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			active.Add(-1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive.Load())
}

func TestLocalGuard_IndependentIDs(t *testing.T) {
	guard := contenttree.NewLocalGuard()
	ctx := context.Background()

	releaseA, err := guard.Acquire(ctx, "a")
	require.NoError(t, err)
	defer releaseA()

	done := make(chan struct{})
	go func() {
		releaseB, err := guard.Acquire(ctx, "b")
		if err == nil {
			releaseB()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked behind lock on a")
	}
}

func TestLocalGuard_ContextCancel(t *testing.T) {
	guard := contenttree.NewLocalGuard()

	release, err := guard.Acquire(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = guard.Acquire(ctx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release() // idempotent

	again, err := guard.Acquire(context.Background(), "a")
	require.NoError(t, err)
	again()
}
