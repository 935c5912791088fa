// Package redis provides a distributed contenttree.PublishGuard backed by Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// ErrLockTimeout is returned when the lock could not be taken before the wait limit.
var ErrLockTimeout = errors.New("publish lock wait timed out")

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Config options for the Redis guard
type Config struct {
	KeyPrefix  string        // Lock key prefix (default: "contenttree:publish:")
	TTL        time.Duration // Lock expiry for crashed holders (default: 30s)
	RetryEvery time.Duration // Poll interval while waiting (default: 50ms)
	MaxWait    time.Duration // Give up after this long (default: 10s)
}

// Guard serializes publishes across processes with SET NX locks.
type Guard struct {
	rdb    goredis.UniversalClient
	config Config
	logger *slog.Logger
}

// New creates a Redis publish guard on an existing client
func New(rdb goredis.UniversalClient, config Config) *Guard {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "contenttree:publish:"
	}
	if config.TTL == 0 {
		config.TTL = 30 * time.Second
	}
	if config.RetryEvery == 0 {
		config.RetryEvery = 50 * time.Millisecond
	}
	if config.MaxWait == 0 {
		config.MaxWait = 10 * time.Second
	}
	return &Guard{rdb: rdb, config: config, logger: slog.Default()}
}

// NewFromURL connects to redisURL (redis://host:port/db) and verifies the connection
func NewFromURL(redisURL string, config Config) (*Guard, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	rdb := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return New(rdb, config), nil
}

// Acquire takes the lock for contentID, polling until MaxWait or ctx is done.
func (g *Guard) Acquire(ctx context.Context, contentID string) (func(), error) {
	key := g.config.KeyPrefix + contentID
	token := uuid.NewString()
	deadline := time.Now().Add(g.config.MaxWait)

	for {
		ok, err := g.rdb.SetNX(ctx, key, token, g.config.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to take publish lock: %w", err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}

		timer := time.NewTimer(g.config.RetryEvery)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return func() {
		// Release with a fresh context so a cancelled request still frees the lock.
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, g.rdb, []string{key}, token).Err(); err != nil && err != goredis.Nil {
			g.logger.Warn("Failed to release publish lock", "key", key, "error", err)
		}
	}, nil
}

// Close closes the underlying client
func (g *Guard) Close() error {
	return g.rdb.Close()
}
