package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastPolicy = retryPolicy{attempts: 3, baseDelay: time.Millisecond, maxDelay: 2 * time.Millisecond}

// unsentError mimics a connection failure pgconn knows happened before the
// statement reached the server.
type unsentError struct{}

func (unsentError) Error() string     { return "connection reset before send" }
func (unsentError) SafeToRetry() bool { return true }

func TestRetryPolicyReplaysConflicts(t *testing.T) {
	calls := 0
	err := fastPolicy.do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return &pgconn.PgError{Code: "40P01"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicyReplaysUnsentStatements(t *testing.T) {
	calls := 0
	err := fastPolicy.do(context.Background(), func() error {
		calls++
		if calls == 1 {
			return unsentError{}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetryPolicyGivesUpAfterAttempts(t *testing.T) {
	calls := 0
	err := fastPolicy.do(context.Background(), func() error {
		calls++
		return &pgconn.PgError{Code: "40001"}
	})
	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, "40001", pgErr.Code)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicySkipsPermanentErrors(t *testing.T) {
	for name, permanent := range map[string]error{
		"unique violation": &pgconn.PgError{Code: "23505"},
		"plain error":      errors.New("boom"),
	} {
		t.Run(name, func(t *testing.T) {
			calls := 0
			err := fastPolicy.do(context.Background(), func() error {
				calls++
				return permanent
			})
			assert.ErrorIs(t, err, permanent)
			assert.Equal(t, 1, calls)
		})
	}
}

func TestRetryPolicyStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	slow := retryPolicy{attempts: 3, baseDelay: time.Second, maxDelay: time.Second}
	err := slow.do(ctx, func() error {
		return &pgconn.PgError{Code: "40001"}
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryPolicyZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	err := retryPolicy{}.do(context.Background(), func() error {
		calls++
		return &pgconn.PgError{Code: "40001"}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestContainsPattern(t *testing.T) {
	assert.Equal(t, "", containsPattern("   "))
	assert.Equal(t, "%fintech%", containsPattern(" fintech "))
	assert.Equal(t, `%50\% off\_now\\%`, containsPattern(`50% off_now\`))
}
