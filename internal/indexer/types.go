// Package indexer is the Indexing Worker: the sole writer of items,
// items_fts, thumb_status and album_covers. It performs the four heavy
// tasks (full rebuild, incremental change application, dimension
// backfill, mtime backfill) driven by the orchestrator and the
// filesystem watcher, grounded on the teacher's IndexerV2.Index pipeline
// shape (detect -> delete -> update unchanged -> process changed).
package indexer

import (
	"time"

	"github.com/mediavault/indexd/internal/catalog"
)

// DefaultBatchSize matches spec.md §6's INDEX_BATCH_SIZE default.
const DefaultBatchSize = 1000

// DefaultConcurrency matches spec.md §6's INDEX_CONCURRENCY default.
const DefaultConcurrency = 8

// Options configures the heavy tasks' batching and pacing, sourced from
// the INDEX_*/DIM_BACKFILL_*/MTIME_BACKFILL_* environment variables.
type Options struct {
	BatchSize          int
	Concurrency        int
	DimBackfillBatch   int
	DimBackfillSleep   time.Duration
	MtimeBackfillBatch int
	MtimeBackfillSleep time.Duration
	DeleteChunkSize    int
}

// DefaultOptions returns the spec-documented defaults.
func DefaultOptions() Options {
	return Options{
		BatchSize:          DefaultBatchSize,
		Concurrency:        DefaultConcurrency,
		DimBackfillBatch:   200,
		DimBackfillSleep:   500 * time.Millisecond,
		MtimeBackfillBatch: 200,
		MtimeBackfillSleep: 500 * time.Millisecond,
		DeleteChunkSize:    catalog.DefaultBatchChunkSize,
	}
}

// RebuildStats summarizes a completed or in-progress rebuild_index run.
type RebuildStats struct {
	ProcessedFiles int
	TotalFiles     int
}

// ChangeStats summarizes one process_changes call.
type ChangeStats struct {
	Added            int
	Updated          int
	Deleted          int
	VideoPaths       []string
	NeedsMaintenance bool
}

// BackfillStats summarizes one backfill pass.
type BackfillStats struct {
	Updated int
}

// PendingChange mirrors internal/watcher.PendingChange so this package
// doesn't need to import the watcher package (the composition root adapts
// between the two, keeping the watcher -> indexer dependency one-way).
type PendingChange struct {
	Path  string
	Kind  ChangeKind
	IsDir bool
}

// ChangeKind mirrors internal/watcher.ChangeKind's three post-consolidation
// outcomes that reach the indexer (ChangeNone never does).
type ChangeKind int

const (
	ChangeAdd ChangeKind = iota
	ChangeUpdate
	ChangeUnlink
)
