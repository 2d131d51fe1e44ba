package service

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	// This test requires a running Redis instance; use DB 15 for tests
	opts, err := redis.ParseURL("redis://localhost:6379/15")
	if err != nil {
		t.Skip("Redis not available for testing")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skip("Redis not available for testing")
	}
	t.Cleanup(func() { client.Close() })
	client.FlushDB(context.Background())
	return client
}

func TestRateLimiter_Basic(t *testing.T) {
	client := newTestRedis(t)
	limiter := NewRateLimiter(client)
	ctx := context.Background()

	t.Run("allows requests within limit", func(t *testing.T) {
		key := "test:ip1"
		limit := 3
		window := 10 * time.Second

		for i := 0; i < limit; i++ {
			allowed, _ := limiter.CheckLimit(ctx, key, limit, window)
			assert.True(t, allowed, "Request %d should be allowed", i+1)
		}

		allowed, resetAt := limiter.CheckLimit(ctx, key, limit, window)
		assert.False(t, allowed, "Request should be rate limited")
		assert.True(t, resetAt.After(time.Now().Add(-time.Second)), "Reset time should not be in the past")
	})

	t.Run("separate keys have separate limits", func(t *testing.T) {
		limit := 1
		window := 10 * time.Second

		allowed, _ := limiter.CheckLimit(ctx, "test:ip2", limit, window)
		assert.True(t, allowed)

		allowed, _ = limiter.CheckLimit(ctx, "test:ip3", limit, window)
		assert.True(t, allowed)

		allowed, _ = limiter.CheckLimit(ctx, "test:ip2", limit, window)
		assert.False(t, allowed)
	})
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	// Point at a port nothing listens on
	client := redis.NewClient(&redis.Options{Addr: "localhost:1", DialTimeout: 100 * time.Millisecond})
	defer client.Close()

	limiter := NewRateLimiter(client)
	allowed, _ := limiter.CheckLimit(context.Background(), "test:unreachable", 1, time.Second)
	assert.True(t, allowed, "limiter errors should not block requests")
}
