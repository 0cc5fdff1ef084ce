package indexer

import (
	"context"
	"sync/atomic"

	"github.com/mediavault/indexd/internal/catalog"
	"github.com/mediavault/indexd/internal/dimcache"
)

// Worker is the Indexing Worker: the sole writer of items, items_fts,
// thumb_status and album_covers. Grounded on the teacher's IndexerV2
// (internal/indexer/indexer_v2.go), generalized from a single Index(hint)
// entry point to the four distinct tasks spec.md §4.4 names, each
// reachable independently through the orchestrator.
type Worker struct {
	store    *catalog.Store
	root     string
	dimCache *dimcache.Cache
	opts     Options
	sink     Sink

	critical atomic.Bool // spec.md §4.4: only one critical task (rebuild/process_changes) in flight
}

// NewWorker builds a Worker rooted at root (the photo directory), backed
// by store for all catalog writes, dimCache for dimension probing, and
// sink for outbound worker messages. sink may be nil, in which case
// messages are dropped.
func NewWorker(store *catalog.Store, root string, dimCache *dimcache.Cache, opts Options, sink Sink) *Worker {
	return &Worker{store: store, root: root, dimCache: dimCache, opts: opts, sink: sink}
}

// beginCritical claims the one-critical-task gate; it returns false if
// another critical task (rebuild or process_changes) is already running,
// matching spec.md §4.4's "further messages are rejected while one runs".
func (w *Worker) beginCritical() bool {
	return w.critical.CompareAndSwap(false, true)
}

func (w *Worker) endCritical() {
	w.critical.Store(false)
}

// CriticalTaskRunning reports whether a rebuild or process_changes call is
// currently in flight, for testing the "only one critical task" invariant
// (spec.md §8 testable property 7) and for health/status reporting.
func (w *Worker) CriticalTaskRunning() bool {
	return w.critical.Load()
}

func (w *Worker) emit(ctx context.Context, msg Message) {
	if w.sink == nil {
		return
	}
	w.sink.Send(ctx, msg)
}
