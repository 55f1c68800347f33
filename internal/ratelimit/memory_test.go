package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func closeLimiter(t *testing.T, m *MemoryLimiter) {
	t.Helper()
	if err := m.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(t *testing.T, rate float64, burst int) (*MemoryLimiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewMemoryLimiter(rate, burst)
	m.now = clock.Now
	t.Cleanup(func() { closeLimiter(t, m) })
	return m, clock
}

func mustAllow(t *testing.T, m *MemoryLimiter, key string) Decision {
	t.Helper()
	d, err := m.Allow(context.Background(), key)
	if err != nil {
		t.Fatalf("Allow error: %v", err)
	}
	return d
}

func TestMemoryLimiterAllowsBurst(t *testing.T) {
	m, _ := newTestLimiter(t, 1, 5)
	for i := range 5 {
		if d := mustAllow(t, m, "websearch"); !d.Allowed {
			t.Fatalf("request %d should be within burst", i)
		}
	}
	d := mustAllow(t, m, "websearch")
	if d.Allowed {
		t.Fatal("expected denial after burst exhausted")
	}
	if d.RetryAfter != time.Second {
		t.Fatalf("expected RetryAfter 1s at 1 rps, got %s", d.RetryAfter)
	}
}

func TestMemoryLimiterRefills(t *testing.T) {
	m, clock := newTestLimiter(t, 2, 1) // one token every 500ms

	if !mustAllow(t, m, "k").Allowed {
		t.Fatal("first request should pass")
	}
	d := mustAllow(t, m, "k")
	if d.Allowed {
		t.Fatal("second request should be denied")
	}
	if d.RetryAfter != 500*time.Millisecond {
		t.Fatalf("expected RetryAfter 500ms, got %s", d.RetryAfter)
	}

	clock.Advance(250 * time.Millisecond)
	if mustAllow(t, m, "k").Allowed {
		t.Fatal("half a token is not enough")
	}

	clock.Advance(250 * time.Millisecond)
	if !mustAllow(t, m, "k").Allowed {
		t.Fatal("expected a refilled token")
	}
}

func TestMemoryLimiterTokensCapAtBurst(t *testing.T) {
	m, clock := newTestLimiter(t, 1000, 3)
	_ = mustAllow(t, m, "k")

	clock.Advance(time.Hour)
	for i := range 3 {
		if !mustAllow(t, m, "k").Allowed {
			t.Fatalf("expected Allow for request %d after long idle", i)
		}
	}
	if mustAllow(t, m, "k").Allowed {
		t.Fatal("tokens must not exceed burst")
	}
}

func TestMemoryLimiterIndependentKeys(t *testing.T) {
	m, _ := newTestLimiter(t, 10, 1)

	if !mustAllow(t, m, "10.0.0.1").Allowed {
		t.Fatal("first request for 10.0.0.1 should pass")
	}
	if mustAllow(t, m, "10.0.0.1").Allowed {
		t.Fatal("second request for 10.0.0.1 should be denied")
	}
	if !mustAllow(t, m, "10.0.0.2").Allowed {
		t.Fatal("10.0.0.2 has its own bucket")
	}
}

func TestMemoryLimiterConcurrent(t *testing.T) {
	m, _ := newTestLimiter(t, 100, 50)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				d, err := m.Allow(context.Background(), "shared")
				if err != nil {
					t.Errorf("Allow error: %v", err)
					return
				}
				if d.Allowed {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	// The clock is frozen, so exactly the burst is granted.
	if allowed != 50 {
		t.Fatalf("expected 50 allowed requests, got %d", allowed)
	}
}

func TestMemoryLimiterEvictStale(t *testing.T) {
	m, clock := newTestLimiter(t, 10, 5)
	_ = mustAllow(t, m, "stale")
	clock.Advance(5 * time.Minute)
	_ = mustAllow(t, m, "recent")

	clock.Advance(6 * time.Minute)
	m.evictStale()

	m.mu.Lock()
	_, staleExists := m.buckets["stale"]
	_, recentExists := m.buckets["recent"]
	m.mu.Unlock()

	if staleExists {
		t.Fatal("expected stale bucket to be evicted")
	}
	if !recentExists {
		t.Fatal("expected recent bucket to survive eviction")
	}
	if m.len() != 1 {
		t.Fatalf("expected 1 bucket, got %d", m.len())
	}
}

func TestMemoryLimiterNonPositiveBurst(t *testing.T) {
	m, _ := newTestLimiter(t, 1, 0)
	if !mustAllow(t, m, "k").Allowed {
		t.Fatal("burst is clamped to one")
	}
}

func TestMemoryLimiterCloseIdempotent(t *testing.T) {
	m := NewMemoryLimiter(10, 5)
	if err := m.Close(); err != nil {
		t.Fatalf("first Close error: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close error: %v", err)
	}
}

func TestNoopLimiterAlwaysAllows(t *testing.T) {
	var l NoopLimiter
	for range 1000 {
		d, err := l.Allow(context.Background(), "anything")
		if err != nil {
			t.Fatalf("NoopLimiter.Allow error: %v", err)
		}
		if !d.Allowed {
			t.Fatal("NoopLimiter should always allow")
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("NoopLimiter.Close error: %v", err)
	}
}
