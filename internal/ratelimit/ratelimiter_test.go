package ratelimit

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestRateLimiter_Allow(t *testing.T) {
	t.Run("allows requests within limit", func(t *testing.T) {
		client, _ := setupTestRedis(t)
		limiter := NewRateLimiter(client, 5, time.Minute)
		ctx := context.Background()

		for i := 0; i < 5; i++ {
			d, err := limiter.Allow(ctx, "chat:a")
			require.NoError(t, err)
			assert.True(t, d.Allowed)
			assert.Equal(t, 5-i-1, d.Remaining)
			assert.False(t, d.ResetAt.IsZero())
		}
	})

	t.Run("blocks requests over limit", func(t *testing.T) {
		client, _ := setupTestRedis(t)
		limiter := NewRateLimiter(client, 3, time.Minute)
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			d, err := limiter.Allow(ctx, "chat:b")
			require.NoError(t, err)
			assert.True(t, d.Allowed)
		}

		d, err := limiter.Allow(ctx, "chat:b")
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Equal(t, 0, d.Remaining)
		assert.True(t, d.ResetAt.After(time.Now()))

		// Rejected requests are not counted
		usage, err := limiter.CurrentUsage(ctx, "chat:b")
		require.NoError(t, err)
		assert.Equal(t, int64(3), usage)
	})

	t.Run("keys are independent", func(t *testing.T) {
		client, _ := setupTestRedis(t)
		limiter := NewRateLimiter(client, 1, time.Minute)
		ctx := context.Background()

		d, err := limiter.Allow(ctx, "chat:one")
		require.NoError(t, err)
		assert.True(t, d.Allowed)

		d, err = limiter.Allow(ctx, "chat:two")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	})

	t.Run("unlimited when limit is 0", func(t *testing.T) {
		client, _ := setupTestRedis(t)
		limiter := NewRateLimiter(client, 0, time.Minute)
		ctx := context.Background()

		for i := 0; i < 100; i++ {
			d, err := limiter.Allow(ctx, "chat:unlimited")
			require.NoError(t, err)
			assert.True(t, d.Allowed)
			assert.Equal(t, -1, d.Remaining)
			assert.True(t, d.ResetAt.IsZero())
		}
	})

	t.Run("window slides", func(t *testing.T) {
		client, _ := setupTestRedis(t)
		limiter := NewRateLimiter(client, 2, time.Minute)
		ctx := context.Background()

		base := time.Now()
		limiter.now = func() time.Time { return base }

		for i := 0; i < 2; i++ {
			d, err := limiter.Allow(ctx, "chat:w")
			require.NoError(t, err)
			assert.True(t, d.Allowed)
		}
		d, err := limiter.Allow(ctx, "chat:w")
		require.NoError(t, err)
		assert.False(t, d.Allowed)

		limiter.now = func() time.Time { return base.Add(61 * time.Second) }
		d, err = limiter.Allow(ctx, "chat:w")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 1, d.Remaining)
	})
}

func TestRateLimiter_Reset(t *testing.T) {
	client, _ := setupTestRedis(t)
	limiter := NewRateLimiter(client, 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := limiter.Allow(ctx, "chat:r")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}

	d, err := limiter.Allow(ctx, "chat:r")
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	require.NoError(t, limiter.Reset(ctx, "chat:r"))

	d, err = limiter.Allow(ctx, "chat:r")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
}

func TestRateLimiter_RedisDown(t *testing.T) {
	client, mr := setupTestRedis(t)
	limiter := NewRateLimiter(client, 2, time.Minute)
	mr.Close()

	_, err := limiter.Allow(context.Background(), "chat:down")
	assert.Error(t, err)
}

func TestKeyForToken(t *testing.T) {
	key := KeyForToken("chat", "secret-token")
	assert.True(t, strings.HasPrefix(key, "chat:"))
	assert.NotContains(t, key, "secret-token")
	assert.Equal(t, key, KeyForToken("chat", "secret-token"))
	assert.NotEqual(t, key, KeyForToken("chat", "other-token"))
}

func TestNoopLimiter(t *testing.T) {
	limiter := NewNoopLimiter()
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		d, err := limiter.Allow(ctx, "any-key")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
}
