package redis_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	redisguard "github.com/tendant/content-tree/pkg/contenttree/guard/redis"
)

func newTestClient(t *testing.T) *goredis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set; skipping Redis guard tests")
	}

	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, rdb.Ping(ctx).Err())
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func testPrefix(t *testing.T) string {
	return fmt.Sprintf("contenttree:test:%s:%d:", t.Name(), time.Now().UnixNano())
}

func TestGuard_AcquireRelease(t *testing.T) {
	rdb := newTestClient(t)
	guard := redisguard.New(rdb, redisguard.Config{KeyPrefix: testPrefix(t)})
	ctx := context.Background()

	release, err := guard.Acquire(ctx, "a")
	require.NoError(t, err)
	release()

	release, err = guard.Acquire(ctx, "a")
	require.NoError(t, err)
	release()
}

func TestGuard_MutualExclusion(t *testing.T) {
	rdb := newTestClient(t)
	guard := redisguard.New(rdb, redisguard.Config{KeyPrefix: testPrefix(t), RetryEvery: 5 * time.Millisecond})
	ctx := context.Background()

	var active, maxActive atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
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
			time.Sleep(10 * time.Millisecond)
			active.Add(-1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive.Load())
}

func TestGuard_Timeout(t *testing.T) {
	rdb := newTestClient(t)
	guard := redisguard.New(rdb, redisguard.Config{
		KeyPrefix:  testPrefix(t),
		RetryEvery: 5 * time.Millisecond,
		MaxWait:    30 * time.Millisecond,
	})
	ctx := context.Background()

	release, err := guard.Acquire(ctx, "a")
	require.NoError(t, err)
	defer release()

	_, err = guard.Acquire(ctx, "a")
	assert.ErrorIs(t, err, redisguard.ErrLockTimeout)
}

func TestGuard_ReleaseKeepsForeignLock(t *testing.T) {
	rdb := newTestClient(t)
	prefix := testPrefix(t)
	guard := redisguard.New(rdb, redisguard.Config{KeyPrefix: prefix, TTL: 50 * time.Millisecond})
	ctx := context.Background()

	release, err := guard.Acquire(ctx, "a")
	require.NoError(t, err)

	// Lock expires and another holder takes it; the stale release must not free it.
	time.Sleep(80 * time.Millisecond)
	require.NoError(t, rdb.Set(ctx, prefix+"a", "other-holder", time.Minute).Err())
	release()

	value, err := rdb.Get(ctx, prefix+"a").Result()
	require.NoError(t, err)
	assert.Equal(t, "other-holder", value)
	require.NoError(t, rdb.Del(ctx, prefix+"a").Err())
}

func TestNewFromURL_Invalid(t *testing.T) {
	_, err := redisguard.NewFromURL("not-a-url", redisguard.Config{})
	assert.Error(t, err)
}
