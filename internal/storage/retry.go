package storage

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// retryPolicy bounds how a single-statement write is replayed. Upserts that
// race on the same natural key can hit a serialization failure or deadlock,
// and a pooled connection can drop before the statement is sent.
type retryPolicy struct {
	attempts  int // total tries, including the first
	baseDelay time.Duration
	maxDelay  time.Duration
}

var writePolicy = retryPolicy{
	attempts:  4,
	baseDelay: 25 * time.Millisecond,
	maxDelay:  400 * time.Millisecond,
}

// transient reports whether err is safe to replay.
func transient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", // serialization_failure
			"40P01": // deadlock_detected
			return true
		}
		return false
	}
	return pgconn.SafeToRetry(err)
}

// do runs fn until it succeeds, fails permanently, or the attempts run out.
// Waits double from baseDelay up to maxDelay, plus jitter.
func (p retryPolicy) do(ctx context.Context, fn func() error) error {
	attempts := max(p.attempts, 1)
	delay := p.baseDelay
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil || !transient(err) || attempt == attempts {
			return err
		}
		wait := delay
		if delay > 0 {
			wait += time.Duration(rand.Int64N(int64(delay))) //nolint:gosec // jitter doesn't need crypto-strength randomness
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		delay = min(delay*2, p.maxDelay)
	}
}

func (db *DB) retryWrite(ctx context.Context, fn func() error) error {
	return writePolicy.do(ctx, fn)
}
