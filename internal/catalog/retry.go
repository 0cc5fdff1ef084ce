package catalog

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryOptions controls the busy-aware retry wrapper (spec.md §4.1).
type RetryOptions struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryOptions is "up to 8 attempts, base 50ms, cap 5s" per spec.md.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{MaxAttempts: 8, BaseDelay: 50 * time.Millisecond, MaxDelay: 5 * time.Second}
}

// BusyRetryCounters are sampled periodically to a telemetry sink by the
// caller; the retry wrapper only increments them.
type BusyRetryCounters struct {
	Retries int64
	Timeouts int64
}

// Retry runs fn, retrying with exponential backoff and jitter whenever fn
// returns a *catalog.Error tagged ErrConflict (BUSY/LOCKED), up to
// opts.MaxAttempts. When the indexer is mid-rebuild (indexingInProgress
// returns true) a pre-delay is applied before the first attempt so
// foreground writers yield to it, per spec.md §4.1.
func (s *Store) Retry(ctx context.Context, opts RetryOptions, fn func(ctx context.Context) error) error {
	if opts.MaxAttempts <= 0 {
		opts = DefaultRetryOptions()
	}

	if s.indexingInProgress != nil && s.indexingInProgress() {
		select {
		case <-time.After(jitter(opts.BaseDelay)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = opts.BaseDelay
	eb.MaxInterval = opts.MaxDelay
	eb.MaxElapsedTime = 0 // bounded by attempt count below, not wall clock
	bo := backoff.WithContext(eb, ctx)

	attempt := 0
	var counters BusyRetryCounters
	err := backoff.Retry(func() error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		var cerr *Error
		if errors.As(err, &cerr) {
			switch cerr.Code {
			case ErrConflict:
				counters.Retries++
				if attempt >= opts.MaxAttempts {
					return backoff.Permanent(err)
				}
				return err // retryable
			case ErrTimeout:
				counters.Timeouts++
				return backoff.Permanent(err)
			}
		}
		return backoff.Permanent(err)
	}, bo)

	s.recordBusyCounters(counters)
	return err
}

func jitter(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	// Random delay in [base/2, base), matching spec.md's "exponential backoff + jitter".
	delta := time.Duration(rand.Int63n(int64(base)))
	return base/2 + delta/2
}

func (s *Store) recordBusyCounters(c BusyRetryCounters) {
	s.metricsMu.Lock()
	defer s.metricsMu.Unlock()
	s.metrics.Retries += c.Retries
	s.metrics.Timeouts += c.Timeouts
}

// Metrics returns a snapshot of cumulative busy-retry/timeout counters for
// periodic sampling to a telemetry sink (spec.md §4.1).
func (s *Store) Metrics() BusyRetryCounters {
	s.metricsMu.Lock()
	defer s.metricsMu.Unlock()
	return s.metrics
}

// reconnect re-opens a connection after a connection-level error, with
// capped exponential backoff, per spec.md §4.1 failure semantics.
func (s *Store) reconnect(ctx context.Context, name DBName, attempts int) error {
	var lastErr error
	delay := 100 * time.Millisecond
	for i := 0; i < attempts; i++ {
		db, err := s.openOne(name)
		if err == nil {
			s.connsMu.Lock()
			old := s.conns[name]
			s.conns[name] = db
			s.connsMu.Unlock()
			if old != nil {
				_ = old.Close()
			}
			return nil
		}
		lastErr = err
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
		if delay > 5*time.Second {
			delay = 5 * time.Second
		}
	}
	return lastErr
}

// EnsureHealthy pings every logical database and, for any connection that
// fails to respond, calls reconnect with capped exponential backoff (up to
// attempts tries). Intended to be driven by a periodic health-check loop
// (spec.md §4.1: "Connection-level errors trigger a health-checked
// reconnect with capped exponential backoff"). Returns the first
// unrecovered error, if any, after attempting to reconnect every down
// connection.
func (s *Store) EnsureHealthy(ctx context.Context, attempts int) error {
	var firstErr error
	for _, name := range []DBName{DBMain, DBSettings, DBHistory, DBIndex} {
		conn := s.getConn(name)
		pingErr := conn.PingContext(ctx)
		if pingErr == nil {
			continue
		}
		if err := s.reconnect(ctx, name, attempts); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("reconnect %s after %v: %w", name, pingErr, err)
		}
	}
	return firstErr
}
