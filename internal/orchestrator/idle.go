package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mediavault/indexd/internal/catalog"
)

// IdleThresholds configures when a window stops being idle.
type IdleThresholds struct {
	LoadThreshold       float64       // 1-minute load average / NumCPU above which we're busy
	MemoryHeadroomBytes int64         // minimum free heap headroom required
	ForegroundThreshold int           // active+queued thumbnail requests above which we're busy
	CacheTTL            time.Duration // how long a computed idle verdict is reused
}

// DefaultIdleThresholds matches the INDEX_IDLE_* style defaults named in spec §6.
func DefaultIdleThresholds() IdleThresholds {
	return IdleThresholds{
		LoadThreshold:       0.75,
		MemoryHeadroomBytes: 256 << 20,
		ForegroundThreshold: 4,
		CacheTTL:            2 * time.Second,
	}
}

// IdleGate evaluates and caches the idle predicate: a window is non-idle
// if the index is mid-build, a resume cursor exists, system load/memory
// are over threshold, or foreground thumbnail demand is high.
type IdleGate struct {
	store      *catalog.Store
	load       LoadSampler
	thresholds IdleThresholds

	foregroundDemand atomic.Int64

	mu        sync.Mutex
	cachedAt  time.Time
	cachedVal bool
}

// NewIdleGate wires the idle predicate to the catalog (for index status and
// resume cursor) and a LoadSampler (for system load/memory).
func NewIdleGate(store *catalog.Store, load LoadSampler, thresholds IdleThresholds) *IdleGate {
	return &IdleGate{store: store, load: load, thresholds: thresholds}
}

// NoteForegroundDemand adjusts the active+queued foreground thumbnail
// counter; callers increment on request start and decrement on completion.
func (g *IdleGate) NoteForegroundDemand(delta int) {
	g.foregroundDemand.Add(int64(delta))
}

// IsIdle reports whether the current window is idle, reusing a cached
// verdict within CacheTTL to avoid hammering the catalog on every check.
func (g *IdleGate) IsIdle(ctx context.Context) bool {
	g.mu.Lock()
	if time.Since(g.cachedAt) < g.thresholds.CacheTTL {
		v := g.cachedVal
		g.mu.Unlock()
		return v
	}
	g.mu.Unlock()

	v := g.computeIdle(ctx)

	g.mu.Lock()
	g.cachedAt = time.Now()
	g.cachedVal = v
	g.mu.Unlock()
	return v
}

func (g *IdleGate) computeIdle(ctx context.Context) bool {
	if status, err := g.store.GetIndexStatus(ctx); err == nil {
		if status.Status == catalog.PhaseBuilding {
			return false
		}
	}
	if _, has, err := g.store.GetResumeCursor(ctx); err == nil && has {
		return false
	}
	if g.load != nil {
		sample := g.load.Sample()
		if sample.LoadPerCPU > g.thresholds.LoadThreshold {
			return false
		}
		if sample.FreeHeapBytes < g.thresholds.MemoryHeadroomBytes {
			return false
		}
	}
	if int(g.foregroundDemand.Load()) > g.thresholds.ForegroundThreshold {
		return false
	}
	return true
}

// WaitIdle blocks, polling at interval, until IsIdle returns true or
// maxWait elapses -- returning anyway in the latter case, per spec's gate
// semantics ("waits until idle... or maxIdleWaitMs elapsed").
func (g *IdleGate) WaitIdle(ctx context.Context, interval, maxWait time.Duration) bool {
	deadline := time.Now().Add(maxWait)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if g.IsIdle(ctx) {
		return true
	}
	for {
		select {
		case <-ctx.Done():
			return g.IsIdle(ctx)
		case <-ticker.C:
			if g.IsIdle(ctx) {
				return true
			}
			if time.Now().After(deadline) {
				return false
			}
		}
	}
}
