package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLimiter(t *testing.T) *RedisRateLimiter {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisRateLimiter(client)
}

func TestRedisRateLimiter_AllowsWithinBudget(t *testing.T) {
	limiter := setupLimiter(t)
	ctx := context.Background()
	cfg := Config{Requests: 5, Window: time.Minute}

	for i := 0; i < 5; i++ {
		allowed, err := limiter.Allow(ctx, "10.0.0.1", cfg)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i+1)
	}

	allowed, err := limiter.Allow(ctx, "10.0.0.1", cfg)
	require.NoError(t, err)
	assert.False(t, allowed, "6th request should be denied")
}

func TestRedisRateLimiter_KeysAreIndependent(t *testing.T) {
	limiter := setupLimiter(t)
	ctx := context.Background()
	cfg := Config{Requests: 1, Window: time.Minute}

	allowed, err := limiter.Allow(ctx, "caller-a", cfg)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = limiter.Allow(ctx, "caller-a", cfg)
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = limiter.Allow(ctx, "caller-b", cfg)
	require.NoError(t, err)
	assert.True(t, allowed, "a different caller has its own budget")
}

func TestRedisRateLimiter_ResetClearsBudget(t *testing.T) {
	limiter := setupLimiter(t)
	ctx := context.Background()
	cfg := Config{Requests: 1, Window: time.Minute}

	_, err := limiter.Allow(ctx, "caller", cfg)
	require.NoError(t, err)

	allowed, err := limiter.Allow(ctx, "caller", cfg)
	require.NoError(t, err)
	require.False(t, allowed)

	require.NoError(t, limiter.Reset(ctx, "caller"))

	allowed, err = limiter.Allow(ctx, "caller", cfg)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisRateLimiter_ZeroConfigAllowsEverything(t *testing.T) {
	limiter := setupLimiter(t)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		allowed, err := limiter.Allow(ctx, "caller", Config{})
		require.NoError(t, err)
		assert.True(t, allowed)
	}
}
