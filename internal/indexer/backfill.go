package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mediavault/indexd/internal/catalog"
	"github.com/mediavault/indexd/internal/media"
	"github.com/mediavault/indexd/internal/orchestrator"
)

// BackfillMissingDimensions implements spec.md §4.4's
// backfill_missing_dimensions: repeatedly select a batch of items with
// missing or invalid width/height, probe them, write the results back,
// and sleep between batches, gated through the orchestrator's
// index-batch admission so a backfill pass never competes with
// foreground browse traffic. It stops once a batch comes back empty, or
// once a batch updates no row (every selected file was missing or not
// media, so selecting again would return the same rows).
func (w *Worker) BackfillMissingDimensions(ctx context.Context, sched *orchestrator.Scheduler) (*BackfillStats, error) {
	total := 0
	for {
		if sched != nil {
			sched.Gate(ctx, orchestrator.AdmitIndexBatch, orchestrator.DefaultJobOptions())
		}

		paths, err := w.selectMissingDimensions(ctx, w.opts.DimBackfillBatch)
		if err != nil {
			return nil, fmt.Errorf("backfill dimensions: select: %w", err)
		}
		if len(paths) == 0 {
			break
		}

		updated, err := w.applyDimensionBackfill(ctx, paths)
		if err != nil {
			return nil, fmt.Errorf("backfill dimensions: apply: %w", err)
		}
		total += updated
		if updated == 0 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(w.opts.DimBackfillSleep):
		}
	}

	stats := &BackfillStats{Updated: total}
	w.emit(ctx, resultMsg(PayloadBackfillDimensionsComplete, stats))
	return stats, nil
}

func (w *Worker) selectMissingDimensions(ctx context.Context, limit int) ([]string, error) {
	var paths []string
	err := w.store.WithTransaction(ctx, catalog.DBMain, catalog.TxDeferred, func(ctx context.Context, tx *catalog.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT path FROM items
			WHERE type != 'album' AND (width <= 0 OR height <= 0)
			LIMIT ?`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var p string
			if err := rows.Scan(&p); err != nil {
				return err
			}
			paths = append(paths, p)
		}
		return rows.Err()
	})
	return paths, err
}

func (w *Worker) applyDimensionBackfill(ctx context.Context, paths []string) (int, error) {
	batch := make([]WalkEntry, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(filepath.Join(w.root, p))
		if err != nil {
			continue // file is gone; the watcher/next rebuild will clean up items
		}
		typ, ok := media.ClassifyFile(p)
		if !ok {
			continue
		}
		batch = append(batch, WalkEntry{Path: p, Type: typ, Mtime: info.ModTime().UnixMilli()})
	}
	dims := w.probeDimensions(ctx, batch)

	updated := 0
	err := w.store.WithTransaction(ctx, catalog.DBMain, catalog.TxImmediate, func(ctx context.Context, tx *catalog.Tx) error {
		for _, entry := range batch {
			d, ok := dims[entry.Path]
			if !ok {
				continue
			}
			if err := w.store.UpdateItemColumns(ctx, tx, entry.Path, map[string]any{
				"width": d.Width, "height": d.Height,
			}); err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	return updated, err
}

// BackfillMissingMtime implements spec.md §4.4's backfill_missing_mtime:
// the same batch/sleep/gate shape as dimension backfill, filling items
// whose mtime is zero or implausible from a fresh filesystem stat. Items
// whose file has since disappeared are silently skipped; the pass stops
// at the first batch that updates no row, since such rows stay selected.
func (w *Worker) BackfillMissingMtime(ctx context.Context, sched *orchestrator.Scheduler) (*BackfillStats, error) {
	total := 0
	for {
		if sched != nil {
			sched.Gate(ctx, orchestrator.AdmitIndexBatch, orchestrator.DefaultJobOptions())
		}

		paths, err := w.selectMissingMtime(ctx, w.opts.MtimeBackfillBatch)
		if err != nil {
			return nil, fmt.Errorf("backfill mtime: select: %w", err)
		}
		if len(paths) == 0 {
			break
		}

		updated, err := w.applyMtimeBackfill(ctx, paths)
		if err != nil {
			return nil, fmt.Errorf("backfill mtime: apply: %w", err)
		}
		total += updated
		if updated == 0 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(w.opts.MtimeBackfillSleep):
		}
	}

	stats := &BackfillStats{Updated: total}
	w.emit(ctx, resultMsg(PayloadBackfillMtimeComplete, stats))
	return stats, nil
}

func (w *Worker) selectMissingMtime(ctx context.Context, limit int) ([]string, error) {
	var paths []string
	err := w.store.WithTransaction(ctx, catalog.DBMain, catalog.TxDeferred, func(ctx context.Context, tx *catalog.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT path FROM items WHERE mtime <= 0 LIMIT ?`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var p string
			if err := rows.Scan(&p); err != nil {
				return err
			}
			paths = append(paths, p)
		}
		return rows.Err()
	})
	return paths, err
}

func (w *Worker) applyMtimeBackfill(ctx context.Context, paths []string) (int, error) {
	type fix struct {
		path  string
		mtime int64
	}
	var fixes []fix
	for _, p := range paths {
		info, err := os.Stat(filepath.Join(w.root, p))
		if err != nil {
			continue
		}
		fixes = append(fixes, fix{path: p, mtime: info.ModTime().UnixMilli()})
	}

	updated := 0
	err := w.store.WithTransaction(ctx, catalog.DBMain, catalog.TxImmediate, func(ctx context.Context, tx *catalog.Tx) error {
		for _, f := range fixes {
			if err := w.store.UpdateItemColumns(ctx, tx, f.path, map[string]any{"mtime": f.mtime}); err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	return updated, err
}
