// Package ratelimit throttles calls by key with token buckets.
//
// It guards the paid web search API (one shared key) and the MCP HTTP
// endpoint (one key per client address). MemoryLimiter is the only
// implementation; the Limiter interface lets callers swap in a no-op.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed bool
	// RetryAfter is how long until a token is available. Zero when Allowed.
	RetryAfter time.Duration
}

// Limiter decides whether a call identified by key should proceed.
// Implementations must be safe for concurrent use.
type Limiter interface {
	// Allow consumes a token for key if one is available. An error signals a
	// limiter malfunction; callers fail open.
	Allow(ctx context.Context, key string) (Decision, error)

	// Close releases background resources.
	Close() error
}

// NoopLimiter permits every call. Used when rate limiting is disabled.
type NoopLimiter struct{}

// Allow always permits.
func (NoopLimiter) Allow(context.Context, string) (Decision, error) {
	return Decision{Allowed: true}, nil
}

// Close is a no-op.
func (NoopLimiter) Close() error { return nil }
