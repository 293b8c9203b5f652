package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter implements a sliding-window rate limiter on a Redis
// sorted set. Each request is a member scored by its arrival time; members
// older than the window are trimmed before counting.
type RedisRateLimiter struct {
	client *redis.Client
	prefix string
}

// NewRedisRateLimiter creates a new RedisRateLimiter.
func NewRedisRateLimiter(client *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{
		client: client,
		prefix: "maxnet:ratelimit:",
	}
}

// Allow reports whether the key is within its request budget for the window.
func (l *RedisRateLimiter) Allow(ctx context.Context, key string, cfg Config) (bool, error) {
	if cfg.Requests <= 0 || cfg.Window <= 0 {
		return true, nil
	}

	now := time.Now()
	redisKey := l.buildKey(key)
	windowStart := now.Add(-cfg.Window).UnixNano()

	pipe := l.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", fmt.Sprintf("%d", windowStart))
	zcard := pipe.ZCard(ctx, redisKey)
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: now.UnixNano()})
	pipe.Expire(ctx, redisKey, cfg.Window+time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to execute rate limit pipeline: %w", err)
	}

	return zcard.Val() < int64(cfg.Requests), nil
}

// Reset clears the recorded requests for key.
func (l *RedisRateLimiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.buildKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to reset rate limit: %w", err)
	}
	return nil
}

func (l *RedisRateLimiter) buildKey(key string) string {
	return l.prefix + key
}
