// Package ratelimit provides request rate limiting backed by Redis, shared
// across all instances of the service.
package ratelimit

import (
	"context"
	"time"
)

// Config bounds how many requests a single key may make per window.
type Config struct {
	Requests int
	Window   time.Duration
}

// RateLimiter decides whether a keyed caller may proceed.
type RateLimiter interface {
	// Allow reports whether the caller identified by key is within its
	// budget. The request is counted whether or not it is allowed.
	Allow(ctx context.Context, key string, cfg Config) (bool, error)
	// Reset clears the recorded requests for key.
	Reset(ctx context.Context, key string) error
}
