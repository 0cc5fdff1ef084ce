package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mediavault/indexd/internal/catalog"
	"github.com/mediavault/indexd/internal/dimcache"
	"github.com/mediavault/indexd/internal/media"
)

// RebuildIndex implements spec.md §4.4's rebuild_index: if a resume cursor
// exists, continue from it; otherwise prescan for total_files, mark the
// index building, and truncate items/items_fts. Then stream the tree in
// batches, writing each through the shared item/FTS/thumb-status pipeline
// and advancing the resume cursor. On completion it clears the resume
// cursor, marks the index complete, rebuilds album_covers, and emits
// rebuild_complete.
func (w *Worker) RebuildIndex(ctx context.Context) (*RebuildStats, error) {
	if !w.beginCritical() {
		return nil, fmt.Errorf("indexer: a critical task is already running")
	}
	defer w.endCritical()

	resumePath, resuming, err := w.store.GetResumeCursor(ctx)
	if err != nil {
		return nil, fmt.Errorf("rebuild: read resume cursor: %w", err)
	}

	status, err := w.store.GetIndexStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("rebuild: read index status: %w", err)
	}

	total := status.TotalFiles
	processed := status.ProcessedFiles
	if !resuming {
		total, err = w.prescanTotal(ctx)
		if err != nil {
			return nil, fmt.Errorf("rebuild: prescan: %w", err)
		}
		processed = 0
		if err := w.beginRebuild(ctx, total); err != nil {
			return nil, fmt.Errorf("rebuild: begin: %w", err)
		}
	}

	entries, errC := Walk(ctx, w.root)
	past := !resuming // once true, we've reached/passed the resume cursor and process normally
	var batch []WalkEntry

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		dims := w.probeDimensions(ctx, batch)
		if err := w.writeItemBatch(ctx, batch, dims); err != nil {
			return err
		}
		processed += len(batch)
		last := batch[len(batch)-1].Path
		if err := w.advanceResumeCursor(ctx, last, processed); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for entry := range entries {
		if !past {
			if entry.Path == resumePath {
				past = true
			}
			continue
		}
		batch = append(batch, entry)
		if len(batch) >= w.opts.BatchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if err := <-errC; err != nil {
		return nil, fmt.Errorf("rebuild: walk: %w", err)
	}

	if err := w.completeRebuild(ctx); err != nil {
		return nil, fmt.Errorf("rebuild: complete: %w", err)
	}
	if err := w.RebuildAlbumCovers(ctx); err != nil {
		return nil, fmt.Errorf("rebuild: album covers: %w", err)
	}

	stats := &RebuildStats{ProcessedFiles: processed, TotalFiles: total}
	w.emit(ctx, resultMsg(PayloadRebuildComplete, stats))
	return stats, nil
}

func (w *Worker) prescanTotal(ctx context.Context) (int, error) {
	entries, errC := Walk(ctx, w.root)
	n := 0
	for range entries {
		n++
	}
	if err := <-errC; err != nil {
		return 0, err
	}
	return n, nil
}

func (w *Worker) beginRebuild(ctx context.Context, total int) error {
	if err := w.store.WithTransaction(ctx, catalog.DBMain, catalog.TxImmediate, func(ctx context.Context, tx *catalog.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM items`); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM items_fts`)
		return err
	}); err != nil {
		return err
	}
	return w.store.WithTransaction(ctx, catalog.DBIndex, catalog.TxImmediate, func(ctx context.Context, tx *catalog.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE index_status SET status='building', processed_files=0, total_files=?, last_updated=? WHERE id=1`,
			total, time.Now().UnixMilli()); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM index_progress WHERE key=?`, catalog.ProgressKeyLastProcessedPath)
		return err
	})
}

func (w *Worker) advanceResumeCursor(ctx context.Context, lastPath string, processed int) error {
	return w.store.WithTransaction(ctx, catalog.DBIndex, catalog.TxImmediate, func(ctx context.Context, tx *catalog.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO index_progress (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			catalog.ProgressKeyLastProcessedPath, lastPath); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE index_status SET processed_files=?, last_updated=? WHERE id=1`, processed, time.Now().UnixMilli())
		return err
	})
}

func (w *Worker) completeRebuild(ctx context.Context) error {
	return w.store.WithTransaction(ctx, catalog.DBIndex, catalog.TxImmediate, func(ctx context.Context, tx *catalog.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM index_progress WHERE key=?`, catalog.ProgressKeyLastProcessedPath); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE index_status SET status='complete', last_updated=? WHERE id=1`, time.Now().UnixMilli())
		return err
	})
}

// probeDimensions computes dimensions for every non-album entry in batch
// with bounded concurrency (spec.md §4.4's INDEX_CONCURRENCY), using the
// dimension cache to avoid repeated media probes.
func (w *Worker) probeDimensions(ctx context.Context, batch []WalkEntry) map[string]dimcache.Dimensions {
	out := make(map[string]dimcache.Dimensions, len(batch))
	var mu sync.Mutex
	sem := make(chan struct{}, w.opts.Concurrency)
	var wg sync.WaitGroup

	for _, entry := range batch {
		if entry.Type == catalog.ItemAlbum {
			continue
		}
		entry := entry
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			d := w.dimCache.Get(ctx, entry.Path, entry.Mtime)
			mu.Lock()
			out[entry.Path] = d
			mu.Unlock()
		}()
	}
	wg.Wait()
	return out
}

// writeItemBatch upserts items/items_fts/thumb_status for every entry in
// batch within one IMMEDIATE transaction, the pipeline shared by rebuild
// and process_changes' adds (spec.md §4.4: "batch through the same
// INSERT/FTS/thumb-status pipeline as rebuild").
func (w *Worker) writeItemBatch(ctx context.Context, batch []WalkEntry, dims map[string]dimcache.Dimensions) error {
	return w.store.WithTransaction(ctx, catalog.DBMain, catalog.TxImmediate, func(ctx context.Context, tx *catalog.Tx) error {
		for _, entry := range batch {
			width, height := 0, 0
			if entry.Type != catalog.ItemAlbum {
				d := dims[entry.Path]
				width, height = d.Width, d.Height
			}

			if _, err := tx.ExecContext(ctx, `
				INSERT INTO items (path, name, type, mtime, width, height)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT(path) DO UPDATE SET
					name = excluded.name,
					type = excluded.type,
					mtime = excluded.mtime,
					width = excluded.width,
					height = excluded.height`,
				entry.Path, entry.Name, string(entry.Type), entry.Mtime, width, height); err != nil {
				return fmt.Errorf("upsert item %q: %w", entry.Path, err)
			}

			var id int64
			if err := tx.QueryRowContext(ctx, `SELECT id FROM items WHERE path = ?`, entry.Path).Scan(&id); err != nil {
				return fmt.Errorf("lookup item id %q: %w", entry.Path, err)
			}

			token := media.Tokenize(entry.Path, entry.Type)
			if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO items_fts(rowid, name) VALUES (?, ?)`, id, token); err != nil {
				return fmt.Errorf("replace fts row %q: %w", entry.Path, err)
			}

			if entry.Type == catalog.ItemAlbum {
				continue
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO thumb_status (path, mtime, status, last_checked)
				VALUES (?, ?, 'pending', 0)
				ON CONFLICT(path) DO UPDATE SET
					mtime = excluded.mtime,
					status = 'pending',
					last_checked = 0
				WHERE thumb_status.mtime != excluded.mtime`,
				entry.Path, entry.Mtime); err != nil {
				return fmt.Errorf("upsert thumb_status %q: %w", entry.Path, err)
			}
		}
		return nil
	})
}

// RebuildAlbumCovers recomputes album_covers for every album currently in
// items, from the newest descendant media item (spec.md §3's album-cover
// lifecycle). Albums with no media descendant get their cover row
// removed.
func (w *Worker) RebuildAlbumCovers(ctx context.Context) error {
	return w.store.WithTransaction(ctx, catalog.DBMain, catalog.TxImmediate, func(ctx context.Context, tx *catalog.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT path FROM items WHERE type = 'album'`)
		if err != nil {
			return err
		}
		var albums []string
		for rows.Next() {
			var p string
			if err := rows.Scan(&p); err != nil {
				rows.Close()
				return err
			}
			albums = append(albums, p)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		for _, album := range albums {
			if err := w.upsertAlbumCover(ctx, tx, album); err != nil {
				return err
			}
		}
		return nil
	})
}

func (w *Worker) upsertAlbumCover(ctx context.Context, tx *catalog.Tx, album string) error {
	cover, err := w.store.NewestDescendantMedia(ctx, tx, album)
	if err != nil {
		if catalogIsNotFound(err) {
			_, delErr := tx.ExecContext(ctx, `DELETE FROM album_covers WHERE album_path = ?`, album)
			return delErr
		}
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO album_covers (album_path, cover_path, width, height, mtime)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(album_path) DO UPDATE SET
			cover_path = excluded.cover_path,
			width = excluded.width,
			height = excluded.height,
			mtime = excluded.mtime`,
		album, cover.Path, cover.Width, cover.Height, cover.Mtime)
	return err
}

func catalogIsNotFound(err error) bool {
	var ce *catalog.Error
	return errors.As(err, &ce) && ce.Code == catalog.ErrNotFound
}
