package lockkv

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketLocks = []byte("locks")
	bucketKV    = []byte("kv")
)

// BoltBackend is the preferred lock/KV backend: a single bbolt file shared
// by the lock and KV surfaces, grounded on cuemby-warren's
// NewBoltStore/bucket-per-namespace layout. Unlike warren's per-entity
// buckets, this store only needs two: one for lock rows, one for KV rows.
type BoltBackend struct {
	db *bolt.DB
}

type boltEntry struct {
	Value     []byte    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (e boltEntry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// OpenBoltBackend opens (creating if absent) the bbolt file under dataDir.
func OpenBoltBackend(dataDir string) (*BoltBackend, error) {
	path := filepath.Join(dataDir, "lockkv.db")
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt backend: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketLocks, bucketKV} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltBackend{db: db}, nil
}

func (b *BoltBackend) Close() error { return b.db.Close() }

// Lock returns the Lock view of this backend.
func (b *BoltBackend) Lock() Lock { return &boltLock{db: b.db} }

// KVStore returns the KV view of this backend.
func (b *BoltBackend) KVStore() KV { return &boltKV{db: b.db} }

type boltLock struct {
	db *bolt.DB
}

func (l *boltLock) Backend() string { return "bolt" }

// TryAcquire implements atomic set-if-absent with TTL inside a single bbolt
// write transaction: bbolt serializes writers, so the check-then-put is
// race-free without any extra locking of our own.
func (l *boltLock) TryAcquire(ctx context.Context, key string, ttl time.Duration) (Handle, error) {
	now := time.Now()
	err := l.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLocks)
		existing := b.Get([]byte(key))
		if existing != nil {
			var e boltEntry
			if err := json.Unmarshal(existing, &e); err == nil && !e.expired(now) {
				return ErrNotAcquired
			}
		}
		entry := boltEntry{ExpiresAt: now.Add(ttl)}
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
	if err != nil {
		return nil, err
	}
	return &boltHandle{db: l.db, key: key}, nil
}

type boltHandle struct {
	db  *bolt.DB
	key string
}

func (h *boltHandle) Backend() string { return "bolt" }

func (h *boltHandle) Release(ctx context.Context) error {
	return h.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketLocks).Delete([]byte(h.key))
	})
}

type boltKV struct {
	db *bolt.DB
}

func (k *boltKV) Backend() string { return "bolt" }

func (k *boltKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	entry := boltEntry{Value: value}
	if ttl > 0 {
		entry.ExpiresAt = time.Now().Add(ttl)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return k.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketKV).Put([]byte(key), data)
	})
}

func (k *boltKV) Get(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := k.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketKV).Get([]byte(key))
		if raw == nil {
			return ErrNotFound
		}
		var e boltEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			return err
		}
		if e.expired(time.Now()) {
			return ErrNotFound
		}
		out = e.Value
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (k *boltKV) Delete(ctx context.Context, key string) error {
	return k.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketKV).Delete([]byte(key))
	})
}

func (k *boltKV) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	n := 0
	err := k.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketKV)
		c := b.Cursor()
		bp := []byte(prefix)
		var keys [][]byte
		for k, _ := c.Seek(bp); k != nil && bytes.HasPrefix(k, bp); k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, key := range keys {
			if err := b.Delete(key); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}
