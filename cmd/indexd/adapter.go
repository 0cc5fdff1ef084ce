package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/mediavault/indexd/internal/indexer"
	"github.com/mediavault/indexd/internal/sideeffects"
	"github.com/mediavault/indexd/internal/watcher"
)

// watcherResumeDelay is the "short delay" spec.md §4.3 asks the watcher to
// wait after a full rebuild completes before resuming event handling, so
// the rebuild's own writes to the photo tree's mtimes (if any) don't
// immediately retrigger a self-inflicted incremental pass.
const watcherResumeDelay = 2 * time.Second

// workerAdapter implements watcher.ChangeProcessor in terms of
// *indexer.Worker. The watcher package never imports internal/indexer (to
// keep the watcher -> indexer dependency one-way, per
// internal/watcher/watcher.go's ChangeProcessor doc comment), so this
// composition-root type is where the two sides meet: it converts
// watcher.PendingChange into indexer.PendingChange, reduces
// ProcessChanges' three-value return to the single error the interface
// expects, and performs the post-commit tag invalidation the indexer
// package leaves to its caller.
type workerAdapter struct {
	worker       *indexer.Worker
	invalidator  *sideeffects.Invalidator
	videoHandoff *sideeffects.VideoHandoff
	photosDir    string
	log          *slog.Logger

	watcher *watcher.Watcher // set post-construction via SetWatcher, once serve.go has built it
}

func newWorkerAdapter(worker *indexer.Worker, invalidator *sideeffects.Invalidator, videoHandoff *sideeffects.VideoHandoff, photosDir string, log *slog.Logger) *workerAdapter {
	return &workerAdapter{worker: worker, invalidator: invalidator, videoHandoff: videoHandoff, photosDir: photosDir, log: log}
}

// SetWatcher wires the watcher this adapter should suspend for the
// duration of a full rebuild (spec.md §4.3): serve.go constructs the
// watcher after the adapter, since the watcher constructor takes the
// adapter as its ChangeProcessor, so the reference is attached here
// rather than at newWorkerAdapter time.
func (a *workerAdapter) SetWatcher(w *watcher.Watcher) { a.watcher = w }

// ProcessChanges converts the drained, consolidated change set and runs
// it through the indexing worker, then invalidates every affected browse
// tag. Each call gets its own trace id so the worker's log lines and this
// adapter's can be correlated in the daemon's structured log.
func (a *workerAdapter) ProcessChanges(ctx context.Context, changes []watcher.PendingChange) error {
	runID := uuid.NewString()
	log := a.log.With("trace_id", runID, "op", "process_changes")

	converted := make([]indexer.PendingChange, 0, len(changes))
	for _, c := range changes {
		kind, ok := convertChangeKind(c.Kind)
		if !ok {
			continue
		}
		rel, err := filepath.Rel(a.photosDir, c.Path)
		if err != nil {
			continue
		}
		converted = append(converted, indexer.PendingChange{Path: filepath.ToSlash(rel), Kind: kind, IsDir: c.IsDir})
	}

	stats, tags, err := a.worker.ProcessChanges(ctx, converted)
	if err != nil {
		log.Error("process_changes failed", "error", err)
		return err
	}

	if err := a.invalidator.Invalidate(ctx, tags, len(changes)); err != nil {
		log.Warn("tag invalidation failed", "error", err)
	}

	if len(stats.VideoPaths) > 0 {
		absVideoPaths := make([]string, len(stats.VideoPaths))
		for i, rel := range stats.VideoPaths {
			absVideoPaths[i] = filepath.Join(a.photosDir, rel)
		}
		if err := a.videoHandoff.Handoff(ctx, absVideoPaths); err != nil {
			log.Warn("video handoff failed", "error", err)
		}
	}

	log.Info("process_changes complete",
		"added", stats.Added, "deleted", stats.Deleted,
		"videos", len(stats.VideoPaths), "needs_maintenance", stats.NeedsMaintenance)
	return nil
}

// TriggerFullRebuild wraps RebuildIndex for the watcher's large-batch
// escalation path (internal/watcher/watcher.go's drainAndSubmit) and for
// the startup rebuild scheduled from serve.go, which only need the error,
// not the stats. The watcher is suspended for the duration of the rebuild
// and resumed after watcherResumeDelay once it completes, per spec.md
// §4.3 ("the watcher is paused for the duration of a full rebuild and
// restarted after a short delay post-completion").
func (a *workerAdapter) TriggerFullRebuild(ctx context.Context) error {
	runID := uuid.NewString()
	log := a.log.With("trace_id", runID, "op", "rebuild_index")

	if a.watcher != nil {
		a.watcher.Suspend()
		defer func() {
			go func() {
				time.Sleep(watcherResumeDelay)
				a.watcher.Resume()
			}()
		}()
	}

	stats, err := a.worker.RebuildIndex(ctx)
	if err != nil {
		log.Error("rebuild failed", "error", err)
		return err
	}
	log.Info("rebuild complete", "processed", stats.ProcessedFiles, "total", stats.TotalFiles)
	return nil
}

func convertChangeKind(k watcher.ChangeKind) (indexer.ChangeKind, bool) {
	switch k {
	case watcher.ChangeAdd:
		return indexer.ChangeAdd, true
	case watcher.ChangeUpdate:
		return indexer.ChangeUpdate, true
	case watcher.ChangeUnlink:
		return indexer.ChangeUnlink, true
	default:
		return 0, false
	}
}
