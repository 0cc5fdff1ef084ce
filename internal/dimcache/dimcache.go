// Package dimcache is the two-tier dimension cache the Indexing Worker
// consults before probing a media file's width/height: an in-process LRU
// (L1) backed by a distributed-or-local KV (L2) with TTL, keyed by the
// path the caller passes plus mtime (the Indexing Worker passes root-
// relative item paths, not absolute ones), so a file's cache entry is
// naturally invalidated the moment it's rewritten.
package dimcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/maypok86/otter"

	"github.com/mediavault/indexd/internal/lockkv"
)

// Dimensions is the cached value: a media file's pixel width/height.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// SentinelDimensions is returned (and cached) when probing fails, so
// indexing can proceed rather than stall on a single unreadable file
// (spec.md §4.4: "Errors fall back to a sentinel size").
var SentinelDimensions = Dimensions{Width: 1, Height: 1}

// Prober computes the real dimensions of a media file; internal/media and
// internal/indexer provide the photo/video implementations.
type Prober interface {
	Probe(ctx context.Context, path string) (Dimensions, error)
}

// DefaultL1Capacity matches spec.md §4.4's "bounded in-process LRU
// (~500 entries)".
const DefaultL1Capacity = 500

// DefaultL2TTL matches spec.md §4.4's "distributed KV with TTL ~1h".
const DefaultL2TTL = time.Hour

// Cache is the two-tier dimension cache. Grounded on
// internal/graph/searcher.go's otter.MustBuilder-based fileCache,
// generalized from a weight-based single-tier LRU to a count-based L1
// fronting a TTL'd L2.
type Cache struct {
	l1     otter.Cache[string, Dimensions]
	l2     lockkv.KV
	l2TTL  time.Duration
	prober Prober
}

// New builds a Cache with the given L1 capacity (entry count, not byte
// weight -- dimension structs are fixed-size and tiny) and L2 registry.
func New(capacity int, l2 lockkv.KV, l2TTL time.Duration, prober Prober) (*Cache, error) {
	if capacity <= 0 {
		capacity = DefaultL1Capacity
	}
	if l2TTL <= 0 {
		l2TTL = DefaultL2TTL
	}
	l1, err := otter.MustBuilder[string, Dimensions](capacity).
		CollectStats().
		Build()
	if err != nil {
		return nil, fmt.Errorf("build dimension L1 cache: %w", err)
	}
	return &Cache{l1: l1, l2: l2, l2TTL: l2TTL, prober: prober}, nil
}

func cacheKey(path string, mtime int64) string {
	return fmt.Sprintf("%s:%d", path, mtime)
}

// Get returns the cached or freshly probed dimensions for path at mtime.
// A probe failure yields SentinelDimensions rather than an error, so
// callers never need special-case handling on the hot indexing path.
func (c *Cache) Get(ctx context.Context, path string, mtime int64) Dimensions {
	key := cacheKey(path, mtime)

	if v, ok := c.l1.Get(key); ok {
		return v
	}

	if raw, err := c.l2.Get(ctx, "dim:"+key); err == nil {
		var v Dimensions
		if jsonErr := json.Unmarshal(raw, &v); jsonErr == nil {
			c.l1.Set(key, v)
			return v
		}
	}

	dims, err := c.prober.Probe(ctx, path)
	if err != nil {
		dims = SentinelDimensions
	}

	c.l1.Set(key, dims)
	c.writeL2Async(key, dims)
	return dims
}

// writeL2Async fires the L2 write off the calling goroutine (spec.md
// §4.4: "distributed writes (fire-and-forget on write path)"); the
// indexing hot path never blocks on L2's latency or availability.
func (c *Cache) writeL2Async(key string, dims Dimensions) {
	data, err := json.Marshal(dims)
	if err != nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.l2.Set(ctx, "dim:"+key, data, c.l2TTL)
	}()
}

// Invalidate drops a path:mtime entry from both tiers, used when the
// indexer detects a file changed out from under a stale mtime.
func (c *Cache) Invalidate(ctx context.Context, path string, mtime int64) {
	key := cacheKey(path, mtime)
	c.l1.Delete(key)
	_ = c.l2.Delete(ctx, "dim:"+key)
}

// Stats exposes the L1 hit/miss counters for health/telemetry reporting.
func (c *Cache) Stats() otter.Stats {
	return c.l1.Stats()
}

// Close releases the L1 cache's background resources.
func (c *Cache) Close() {
	c.l1.Close()
}
