package lockkv

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBoltBackend_TryAcquireIsExclusive(t *testing.T) {
	b, err := OpenBoltBackend(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	lock := b.Lock()
	h, err := lock.TryAcquire(context.Background(), "lock:job:rebuild", time.Minute)
	require.NoError(t, err)

	_, err = lock.TryAcquire(context.Background(), "lock:job:rebuild", time.Minute)
	require.ErrorIs(t, err, ErrNotAcquired)

	require.NoError(t, h.Release(context.Background()))

	_, err = lock.TryAcquire(context.Background(), "lock:job:rebuild", time.Minute)
	require.NoError(t, err, "lock should be reacquirable after release")
}

func TestBoltBackend_TryAcquireAfterTTLExpiry(t *testing.T) {
	b, err := OpenBoltBackend(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	lock := b.Lock()
	_, err = lock.TryAcquire(context.Background(), "lock:job:x", 5*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	_, err = lock.TryAcquire(context.Background(), "lock:job:x", time.Minute)
	require.NoError(t, err, "expired lock should be reclaimable")
}

func TestBoltBackend_KVRoundTrip(t *testing.T) {
	b, err := OpenBoltBackend(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	kv := b.KVStore()
	require.NoError(t, kv.Set(context.Background(), "dim:/a.jpg:123", []byte(`{"width":100}`), time.Hour))

	v, err := kv.Get(context.Background(), "dim:/a.jpg:123")
	require.NoError(t, err)
	require.Equal(t, `{"width":100}`, string(v))

	require.NoError(t, kv.Delete(context.Background(), "dim:/a.jpg:123"))
	_, err = kv.Get(context.Background(), "dim:/a.jpg:123")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBoltBackend_KVExpiresByTTL(t *testing.T) {
	b, err := OpenBoltBackend(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	kv := b.KVStore()
	require.NoError(t, kv.Set(context.Background(), "k", []byte("v"), 5*time.Millisecond))
	time.Sleep(20 * time.Millisecond)

	_, err = kv.Get(context.Background(), "k")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBoltBackend_KVDeletePrefix(t *testing.T) {
	b, err := OpenBoltBackend(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	kv := b.KVStore()
	require.NoError(t, kv.Set(context.Background(), "route:browse:/a", []byte("1"), time.Hour))
	require.NoError(t, kv.Set(context.Background(), "route:browse:/b", []byte("1"), time.Hour))
	require.NoError(t, kv.Set(context.Background(), "dim:/a.jpg:1", []byte("1"), time.Hour))

	n, err := kv.DeletePrefix(context.Background(), "route:browse:")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	_, err = kv.Get(context.Background(), "route:browse:/a")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = kv.Get(context.Background(), "dim:/a.jpg:1")
	require.NoError(t, err, "unrelated key should survive the prefix purge")
}

func TestLocalKV_DeletePrefix(t *testing.T) {
	kv := NewLocalKV()
	require.NoError(t, kv.Set(context.Background(), "route:browse:/a", []byte("1"), time.Hour))
	require.NoError(t, kv.Set(context.Background(), "viewed:u1:albums", []byte("1"), time.Hour))

	n, err := kv.DeletePrefix(context.Background(), "route:browse:")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = kv.Get(context.Background(), "viewed:u1:albums")
	require.NoError(t, err)
}

func TestLocalLock_TryAcquireIsExclusive(t *testing.T) {
	l, err := NewLocalLock(t.TempDir())
	require.NoError(t, err)

	h, err := l.TryAcquire(context.Background(), "lock:job:rebuild", time.Minute)
	require.NoError(t, err)

	_, err = l.TryAcquire(context.Background(), "lock:job:rebuild", time.Minute)
	require.ErrorIs(t, err, ErrNotAcquired)

	require.NoError(t, h.Release(context.Background()))
	_, err = l.TryAcquire(context.Background(), "lock:job:rebuild", time.Minute)
	require.NoError(t, err)
}

func TestLocalKV_SweepsExpiredEntries(t *testing.T) {
	kv := NewLocalKV()
	require.NoError(t, kv.Set(context.Background(), "a", []byte("1"), 5*time.Millisecond))
	require.NoError(t, kv.Set(context.Background(), "b", []byte("2"), time.Hour))

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, kv.Set(context.Background(), "c", []byte("3"), time.Hour)) // triggers sweep

	_, err := kv.Get(context.Background(), "a")
	require.ErrorIs(t, err, ErrNotFound)

	v, err := kv.Get(context.Background(), "b")
	require.NoError(t, err)
	require.Equal(t, "2", string(v))
}

func TestRegistry_DegradesToLocalWhenBoltUnavailable(t *testing.T) {
	dir := t.TempDir()
	// A directory where the bolt file belongs makes the bbolt open fail.
	require.NoError(t, os.Mkdir(filepath.Join(dir, "lockkv.db"), 0o755))

	r, err := Open(dir, nil)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	require.False(t, r.Available())

	h, err := r.TryAcquire(context.Background(), "lock:job:post-index-backfill", time.Minute)
	require.NoError(t, err)
	require.NoError(t, h.Release(context.Background()))

	require.NoError(t, r.Set(context.Background(), "indexing_in_progress", []byte("1"), time.Minute))
	v, err := r.Get(context.Background(), "indexing_in_progress")
	require.NoError(t, err)
	require.Equal(t, "1", string(v))
}
