// Package lockkv provides the distributed-or-local locking and key/value
// primitives the orchestrator and dimension cache build on: a preferred
// embedded bbolt-backed implementation that survives process restarts, and
// a local in-process fallback used when the bbolt file cannot be opened
// (e.g. a read-only data directory). Every operation degrades gracefully
// when the preferred backend is unavailable; callers never block on it.
package lockkv

import (
	"context"
	"errors"
	"time"
)

// ErrNotAcquired is returned by TryAcquire when the lock is already held.
var ErrNotAcquired = errors.New("lockkv: not acquired")

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = errors.New("lockkv: not found")

// Handle is returned by a successful TryAcquire. Release targets whichever
// backend actually granted the lock, so the caller never needs to know
// which one it was.
type Handle interface {
	Release(ctx context.Context) error
	Backend() string
}

// Lock is satisfied by both the bbolt-backed and local-map-backed
// implementations (spec's "one interface, two back ends").
type Lock interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (Handle, error)
	Backend() string
}

// KV is the small key/value surface the orchestrator and dimension cache
// need: set-with-TTL, get, delete. Values are opaque bytes; callers encode
// their own payloads (JSON for dimension entries, empty for flags).
type KV interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every key starting with prefix and reports how
	// many were removed. Used by internal/sideeffects' coarse route-cache
	// purge when a fine-grained tag set grows too large to invalidate
	// individually (spec.md §4.3).
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	Backend() string
}
