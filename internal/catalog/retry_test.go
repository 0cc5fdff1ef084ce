package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetry_SucceedsAfterTransientBusy(t *testing.T) {
	s := openTestStore(t)
	attempts := 0

	err := s.Retry(context.Background(), RetryOptions{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond},
		func(ctx context.Context) error {
			attempts++
			if attempts < 3 {
				return newErr(ErrConflict, "test", errors.New("database is locked"))
			}
			return nil
		})

	require.NoError(t, err)
	require.Equal(t, 3, attempts)
	require.EqualValues(t, 2, s.Metrics().Retries)
}

func TestRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	s := openTestStore(t)
	attempts := 0

	err := s.Retry(context.Background(), RetryOptions{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
		func(ctx context.Context) error {
			attempts++
			return newErr(ErrConflict, "test", errors.New("SQLITE_BUSY"))
		})

	require.Error(t, err)
	require.Equal(t, 3, attempts)
}

func TestRetry_TimeoutIsNotRetried(t *testing.T) {
	s := openTestStore(t)
	attempts := 0

	err := s.Retry(context.Background(), RetryOptions{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
		func(ctx context.Context) error {
			attempts++
			return newErr(ErrTimeout, "test", errors.New("context deadline exceeded"))
		})

	require.Error(t, err)
	require.Equal(t, 1, attempts, "timeout errors should not be retried")
}

func TestRetry_PreDelayWhenIndexingInProgress(t *testing.T) {
	s := openTestStore(t)
	s.SetIndexingInProgress(func() bool { return true })

	start := time.Now()
	err := s.Retry(context.Background(), RetryOptions{MaxAttempts: 1, BaseDelay: 10 * time.Millisecond, MaxDelay: 10 * time.Millisecond},
		func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(start), 4*time.Millisecond)
}
