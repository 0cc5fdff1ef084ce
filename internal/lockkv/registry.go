package lockkv

import (
	"context"
	"log/slog"
	"time"
)

// Registry is the facade the orchestrator and dimension cache hold: it
// prefers the bbolt-backed Lock/KV and falls back to the local
// implementations when bbolt could not be opened, per spec's "distributed
// lock (preferred) with local-process fallback". All operations tolerate
// the preferred backend being unavailable; nothing here ever blocks
// waiting for it to come back.
type Registry struct {
	bolt  *BoltBackend
	local *LocalLock
	kv    *LocalKV
	log   *slog.Logger
}

// Open builds a Registry, preferring a bbolt file under dataDir. If bbolt
// cannot be opened (read-only volume, corrupt file) it logs at info level
// and runs local-only, matching spec's degrade-silently posture for
// EXTERNAL failures.
func Open(dataDir string, log *slog.Logger) (*Registry, error) {
	if log == nil {
		log = slog.Default()
	}
	local, err := NewLocalLock(dataDir)
	if err != nil {
		return nil, err
	}
	r := &Registry{local: local, kv: NewLocalKV(), log: log}

	b, err := OpenBoltBackend(dataDir)
	if err != nil {
		log.Info("lockkv: bbolt backend unavailable, degrading to local-only", "error", err)
		return r, nil
	}
	r.bolt = b
	return r, nil
}

func (r *Registry) Close() error {
	if r.bolt != nil {
		return r.bolt.Close()
	}
	return nil
}

// TryAcquire prefers the bbolt lock; on any error from it (including the
// backend being absent), falls back to the local lock.
func (r *Registry) TryAcquire(ctx context.Context, key string, ttl time.Duration) (Handle, error) {
	if r.bolt != nil {
		h, err := r.bolt.Lock().TryAcquire(ctx, key, ttl)
		if err == nil {
			return h, nil
		}
		if err == ErrNotAcquired {
			return nil, err
		}
		r.log.Debug("lockkv: bolt lock failed, falling back to local", "key", key, "error", err)
	}
	return r.local.TryAcquire(ctx, key, ttl)
}

func (r *Registry) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if r.bolt != nil {
		if err := r.bolt.KVStore().Set(ctx, key, value, ttl); err == nil {
			return nil
		}
		r.log.Debug("lockkv: bolt kv set failed, falling back to local", "key", key)
	}
	return r.kv.Set(ctx, key, value, ttl)
}

func (r *Registry) Get(ctx context.Context, key string) ([]byte, error) {
	if r.bolt != nil {
		v, err := r.bolt.KVStore().Get(ctx, key)
		if err == nil {
			return v, nil
		}
		if err == ErrNotFound {
			return nil, err
		}
	}
	return r.kv.Get(ctx, key)
}

func (r *Registry) Delete(ctx context.Context, key string) error {
	if r.bolt != nil {
		_ = r.bolt.KVStore().Delete(ctx, key)
	}
	return r.kv.Delete(ctx, key)
}

// DeletePrefix purges every key starting with prefix from both the bolt
// and local tiers, returning the bolt count when bolt is in use (the
// authoritative store) or the local count otherwise.
func (r *Registry) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	localN, err := r.kv.DeletePrefix(ctx, prefix)
	if r.bolt == nil {
		return localN, err
	}
	boltN, boltErr := r.bolt.KVStore().DeletePrefix(ctx, prefix)
	if boltErr != nil {
		r.log.Debug("lockkv: bolt prefix delete failed", "prefix", prefix, "error", boltErr)
		return localN, err
	}
	return boltN, nil
}

// Available reports whether the preferred bbolt backend is in use, for
// health reporting.
func (r *Registry) Available() bool { return r.bolt != nil }
