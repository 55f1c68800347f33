// Package cache stores serialized query results for a bounded time.
//
// Redis backs the cache when REDIS_URL is configured; otherwise Noop is used
// and every lookup misses.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a byte-oriented TTL cache. Implementations must be safe for
// concurrent use.
type Cache interface {
	// Get returns the cached value and true, or false on a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (Noop) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (Noop) Close() error                                             { return nil }

// Options tune the Redis client.
type Options struct {
	// Prefix is prepended to every key.
	Prefix       string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultOptions returns the timeouts used by the commands.
func DefaultOptions() Options {
	return Options{
		Prefix:       "ventura:",
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Redis is a Cache backed by a Redis server.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to the server at url (redis:// or rediss://) and pings it.
func NewRedis(ctx context.Context, url string, opts Options) (*Redis, error) {
	ro, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("cache: parse redis url: %w", err)
	}
	if opts.DialTimeout > 0 {
		ro.DialTimeout = opts.DialTimeout
	}
	if opts.ReadTimeout > 0 {
		ro.ReadTimeout = opts.ReadTimeout
	}
	if opts.WriteTimeout > 0 {
		ro.WriteTimeout = opts.WriteTimeout
	}

	client := redis.NewClient(ro)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: ping redis: %w", err)
	}
	return &Redis{client: client, prefix: opts.Prefix}, nil
}

// NewRedisFromClient wraps an existing client. Close closes the client.
func NewRedisFromClient(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get %s: %w", key, err)
	}
	return b, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
