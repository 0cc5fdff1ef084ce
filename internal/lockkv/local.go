package lockkv

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// LocalLock is the fallback Lock backend used when the bbolt file cannot be
// opened. It is grounded on the teacher's SingletonDaemon.EnforceSingleton
// (internal/daemon/singleton.go): one gofrs/flock file per lock key,
// TryLock to acquire, Unlock to release. OS file locks have no expiry and
// no timer releases them, so a lock whose TTL has passed stays held until
// its holder calls Release.
type LocalLock struct {
	dir string
	mu  sync.Mutex
	// held records each in-process acquisition's expiry time. An expired
	// entry does not make the key reacquirable: the file lock is still held
	// until Release.
	held map[string]time.Time
}

// NewLocalLock creates a LocalLock rooted at dir (created if absent).
func NewLocalLock(dir string) (*LocalLock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create local lock dir: %w", err)
	}
	return &LocalLock{dir: dir, held: make(map[string]time.Time)}, nil
}

func (l *LocalLock) Backend() string { return "local" }

func (l *LocalLock) TryAcquire(ctx context.Context, key string, ttl time.Duration) (Handle, error) {
	l.mu.Lock()
	if expiry, ok := l.held[key]; ok && time.Now().Before(expiry) {
		l.mu.Unlock()
		return nil, ErrNotAcquired
	}
	delete(l.held, key) // opportunistic sweep of our own expired entry
	l.mu.Unlock()

	fl := flock.New(filepath.Join(l.dir, sanitizeKey(key)+".lock"))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("local lock %s: %w", key, err)
	}
	if !locked {
		return nil, ErrNotAcquired
	}

	l.mu.Lock()
	l.held[key] = time.Now().Add(ttl)
	l.mu.Unlock()

	return &localHandle{lock: l, key: key, fl: fl}, nil
}

type localHandle struct {
	lock *LocalLock
	key  string
	fl   *flock.Flock
}

func (h *localHandle) Backend() string { return "local" }

func (h *localHandle) Release(ctx context.Context) error {
	h.lock.mu.Lock()
	delete(h.lock.held, h.key)
	h.lock.mu.Unlock()
	return h.fl.Unlock()
}

func sanitizeKey(key string) string {
	out := make([]rune, 0, len(key))
	for _, r := range key {
		if r == ':' || r == '/' || r == '\\' || r == ' ' {
			out = append(out, '_')
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

// LocalKV is the in-process fallback KV: a mapping from key to value+expiry
// with an opportunistic sweep on every call, matching spec's description
// of the local lock-registry fallback generalized to arbitrary values.
type LocalKV struct {
	mu      sync.Mutex
	entries map[string]localEntry
}

type localEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e localEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// NewLocalKV creates an empty in-process KV store.
func NewLocalKV() *LocalKV {
	return &LocalKV{entries: make(map[string]localEntry)}
}

func (k *LocalKV) Backend() string { return "local" }

func (k *LocalKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.sweepLocked()
	entry := localEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	k.entries[key] = entry
	return nil
}

func (k *LocalKV) Get(ctx context.Context, key string) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	entry, ok := k.entries[key]
	if !ok || entry.expired(time.Now()) {
		delete(k.entries, key)
		return nil, ErrNotFound
	}
	return append([]byte(nil), entry.value...), nil
}

func (k *LocalKV) Delete(ctx context.Context, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.entries, key)
	return nil
}

func (k *LocalKV) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	n := 0
	for key := range k.entries {
		if strings.HasPrefix(key, prefix) {
			delete(k.entries, key)
			n++
		}
	}
	return n, nil
}

func (k *LocalKV) sweepLocked() {
	now := time.Now()
	for key, entry := range k.entries {
		if entry.expired(now) {
			delete(k.entries, key)
		}
	}
}
