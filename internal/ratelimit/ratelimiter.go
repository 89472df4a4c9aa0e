package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Decision is the outcome of a rate limit check. Remaining is -1 when
// the limiter is unlimited.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter enforces per-key request limits.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// NoopLimiter allows every request.
type NoopLimiter struct{}

func NewNoopLimiter() *NoopLimiter {
	return &NoopLimiter{}
}

func (l *NoopLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	return Decision{Allowed: true, Remaining: -1}, nil
}

// KeyForToken derives a limiter key from a bearer token so the token
// itself never reaches Redis.
func KeyForToken(scope, token string) string {
	sum := sha256.Sum256([]byte(token))
	return scope + ":" + hex.EncodeToString(sum[:8])
}

// slidingWindow trims the window, counts it and records the request only
// when it is admitted. Returns {allowed, remaining, oldest score in ms}.
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local member = ARGV[4]

	redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
	local count = redis.call('ZCARD', key)

	local allowed = 0
	if count < limit then
		redis.call('ZADD', key, now, member)
		redis.call('PEXPIRE', key, window * 2)
		count = count + 1
		allowed = 1
	end

	local oldest = now
	local first = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	if first[2] then
		oldest = tonumber(first[2])
	end

	return {allowed, limit - count, oldest}
`)

// RateLimiter implements a distributed sliding-window limit in Redis sorted sets.
type RateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter allows limit requests per window for each key. A limit
// of zero or less disables limiting.
func NewRateLimiter(client *redis.Client, limit int, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

func (rl *RateLimiter) redisKey(key string) string {
	return fmt.Sprintf("ratelimit:%s", key)
}

// Allow implements Limiter
func (rl *RateLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	if rl.limit <= 0 {
		return Decision{Allowed: true, Remaining: -1}, nil
	}

	now := rl.now()
	res, err := slidingWindow.Run(
		ctx,
		rl.client,
		[]string{rl.redisKey(key)},
		now.UnixMilli(),
		rl.window.Milliseconds(),
		rl.limit,
		fmt.Sprintf("%d:%s", now.UnixMilli(), uuid.NewString()),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("rate limit check returned %d values", len(res))
	}

	remaining := int(res[1])
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   res[0] == 1,
		Remaining: remaining,
		ResetAt:   time.UnixMilli(res[2]).Add(rl.window),
	}, nil
}

// CurrentUsage returns the number of admitted requests in the window
func (rl *RateLimiter) CurrentUsage(ctx context.Context, key string) (int64, error) {
	redisKey := rl.redisKey(key)
	windowStart := rl.now().Add(-rl.window)

	if err := rl.client.ZRemRangeByScore(ctx, redisKey, "-inf", fmt.Sprintf("%d", windowStart.UnixMilli())).Err(); err != nil {
		return 0, fmt.Errorf("failed to clean old entries: %w", err)
	}

	count, err := rl.client.ZCard(ctx, redisKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get current usage: %w", err)
	}
	return count, nil
}

// Reset clears the window for a key
func (rl *RateLimiter) Reset(ctx context.Context, key string) error {
	return rl.client.Del(ctx, rl.redisKey(key)).Err()
}
