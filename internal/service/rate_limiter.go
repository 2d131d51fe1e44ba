package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// rateLimitScript is a Lua script for sliding window rate limiting
var rateLimitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

local windowStart = now - window

redis.call('ZREMRANGEBYSCORE', key, '-inf', windowStart)

local count = redis.call('ZCARD', key)

if count >= limit then
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    local resetAt = 0
    if #oldest >= 2 then
        resetAt = tonumber(oldest[2]) + window
    else
        resetAt = now + window
    end
    return {0, resetAt}
end

redis.call('ZADD', key, now, now .. '-' .. math.random())
redis.call('EXPIRE', key, window + 10)

local resetAt = now + window
return {1, resetAt}
`)

// RateLimiter provides generic rate limiting functionality
type RateLimiter struct {
	client *redis.Client
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client}
}

// CheckLimit checks if a request is allowed under the rate limit
func (rl *RateLimiter) CheckLimit(
	ctx context.Context,
	key string,
	limit int,
	window time.Duration,
) (allowed bool, resetAt time.Time) {
	now := time.Now().Unix()
	windowSeconds := int64(window.Seconds())

	result, err := rateLimitScript.Run(ctx, rl.client, []string{key}, now, windowSeconds, limit).Result()
	if err != nil {
		// Fail open on limiter errors
		log.Error().Err(err).Str("key", key).Msg("rate limit check failed")
		return true, time.Now().Add(window)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) < 2 {
		log.Error().Str("key", key).Msg("unexpected rate limit script result")
		return true, time.Now().Add(window)
	}

	allowedInt, _ := values[0].(int64)
	resetAtUnix, _ := values[1].(int64)

	return allowedInt == 1, time.Unix(resetAtUnix, 0)
}
