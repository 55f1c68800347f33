package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

type bucket struct {
	tokens     float64
	lastAccess time.Time
}

// MemoryLimiter is an in-process token bucket per key. Buckets refill at
// rate tokens per second up to burst. Keys idle for staleThreshold are
// evicted by a background goroutine; call Close to stop it.
type MemoryLimiter struct {
	rate  float64
	burst float64
	now   func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	stopOnce sync.Once
	done     chan struct{}
}

// NewMemoryLimiter creates a limiter allowing rate calls per second per key
// with bursts of up to burst calls.
func NewMemoryLimiter(rate float64, burst int) *MemoryLimiter {
	m := &MemoryLimiter{
		rate:    rate,
		burst:   float64(max(burst, 1)),
		now:     time.Now,
		buckets: make(map[string]*bucket),
		done:    make(chan struct{}),
	}
	go m.cleanup()
	return m
}

// Allow consumes one token from the bucket for key.
func (m *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	b, ok := m.buckets[key]
	if !ok {
		b = &bucket{tokens: m.burst, lastAccess: now}
		m.buckets[key] = b
	}

	b.tokens = math.Min(m.burst, b.tokens+now.Sub(b.lastAccess).Seconds()*m.rate)
	b.lastAccess = now

	if b.tokens < 1 {
		wait := time.Duration((1 - b.tokens) / m.rate * float64(time.Second))
		return Decision{RetryAfter: wait}, nil
	}
	b.tokens--
	return Decision{Allowed: true}, nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (m *MemoryLimiter) Close() error {
	m.stopOnce.Do(func() { close(m.done) })
	return nil
}

const staleThreshold = 10 * time.Minute

func (m *MemoryLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.evictStale()
		}
	}
}

func (m *MemoryLimiter) evictStale() {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-staleThreshold)
	for key, b := range m.buckets {
		if b.lastAccess.Before(cutoff) {
			delete(m.buckets, key)
		}
	}
}

func (m *MemoryLimiter) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}
