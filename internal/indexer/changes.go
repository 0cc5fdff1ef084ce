package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mediavault/indexd/internal/catalog"
	"github.com/mediavault/indexd/internal/dimcache"
	"github.com/mediavault/indexd/internal/media"
	"github.com/mediavault/indexd/internal/sideeffects"
)

// ProcessChanges implements spec.md §4.4's process_changes: within one
// IMMEDIATE transaction, partition the drained change set into adds and
// deletes, reject paths outside the root or with disallowed extensions,
// apply the chunked deletes and the shared add pipeline, recompute
// affected album covers and bump affected parent albums' mtime. After
// commit, the caller (the watcher's debounce drain) is responsible for
// tag invalidation using the returned affected tags.
func (w *Worker) ProcessChanges(ctx context.Context, changes []PendingChange) (*ChangeStats, []string, error) {
	if !w.beginCritical() {
		return nil, nil, fmt.Errorf("indexer: a critical task is already running")
	}
	defer w.endCritical()

	var addEntries []WalkEntry
	var deletePaths []string
	var affected []string

	for _, c := range changes {
		if !media.Contains(w.root, c.Path) {
			continue
		}
		switch c.Kind {
		case ChangeAdd, ChangeUpdate:
			entry, ok := w.statEntry(c.Path, c.IsDir)
			if !ok {
				continue
			}
			addEntries = append(addEntries, entry)
			affected = append(affected, c.Path)
		case ChangeUnlink:
			deletePaths = append(deletePaths, c.Path)
			affected = append(affected, c.Path)
		}
	}

	dims := w.probeDimensions(ctx, addEntries)
	needsMaintenance := false
	var videoPaths []string
	for _, e := range addEntries {
		if e.Type == catalog.ItemVideo {
			videoPaths = append(videoPaths, e.Path)
		}
		if d, ok := dims[e.Path]; ok && d == dimcache.SentinelDimensions {
			needsMaintenance = true
		}
	}

	affectedAlbums := make(map[string]bool)
	for _, p := range affected {
		for _, parent := range media.ParentChain(p) {
			affectedAlbums[parent] = true
		}
	}

	err := w.store.WithTransaction(ctx, catalog.DBMain, catalog.TxImmediate, func(ctx context.Context, tx *catalog.Tx) error {
		if err := w.deleteItemsChunked(ctx, tx, deletePaths); err != nil {
			return err
		}
		if len(addEntries) > 0 {
			if err := w.writeEntriesWithTx(ctx, tx, addEntries, dims); err != nil {
				return err
			}
		}
		for album := range affectedAlbums {
			if err := w.upsertAlbumCover(ctx, tx, album); err != nil {
				return err
			}
			if album != "" {
				if _, err := tx.ExecContext(ctx, `UPDATE items SET mtime = ? WHERE path = ? AND type = 'album'`,
					time.Now().UnixMilli(), album); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("process_changes: %w", err)
	}

	tags := sideeffects.AlbumTags(affected)

	stats := &ChangeStats{
		Added:            len(addEntries),
		Deleted:          len(deletePaths),
		VideoPaths:       videoPaths,
		NeedsMaintenance: needsMaintenance,
	}
	w.emit(ctx, resultMsg(PayloadProcessChangesComplete, stats))
	return stats, tags, nil
}

func (w *Worker) statEntry(relPath string, isDir bool) (WalkEntry, bool) {
	abs := filepath.Join(w.root, relPath)
	info, err := os.Stat(abs)
	if err != nil {
		return WalkEntry{}, false
	}
	name := filepath.Base(relPath)
	if isDir {
		return WalkEntry{Path: relPath, Name: name, Type: catalog.ItemAlbum, Mtime: info.ModTime().UnixMilli()}, true
	}
	typ, ok := media.ClassifyFile(relPath)
	if !ok {
		return WalkEntry{}, false
	}
	return WalkEntry{Path: relPath, Name: name, Type: typ, Mtime: info.ModTime().UnixMilli()}, true
}

// writeEntriesWithTx runs the same upsert pipeline as writeItemBatch but
// against a transaction the caller already holds, so process_changes can
// apply its adds inside the single outer transaction spec.md §4.4 asks
// for rather than opening a second one.
func (w *Worker) writeEntriesWithTx(ctx context.Context, tx *catalog.Tx, entries []WalkEntry, dims map[string]dimcache.Dimensions) error {
	for _, entry := range entries {
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
}

// deleteItemsChunked implements the chunked "DELETE FROM items WHERE path
// IN (...) OR path LIKE ?/%" from spec.md §4.4, fixing the LIKE-parameter
// alignment bug named in spec.md §9 (Open Question decision 2): each
// chunk's LIKE patterns are built from that chunk's own paths only, never
// the full delete set, so the placeholder count always matches the
// argument count for that single statement.
func (w *Worker) deleteItemsChunked(ctx context.Context, tx *catalog.Tx, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	for _, chunk := range catalog.Chunks(paths, w.opts.DeleteChunkSize) {
		where, args := chunkDeleteClause("path", chunk)
		if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE `+where, args...); err != nil {
			return fmt.Errorf("delete items chunk: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM thumb_status WHERE `+where, args...); err != nil {
			return fmt.Errorf("delete thumb_status chunk: %w", err)
		}

		albumWhere, albumArgs := chunkDeleteClause("album_path", chunk)
		if _, err := tx.ExecContext(ctx, `DELETE FROM album_covers WHERE `+albumWhere, albumArgs...); err != nil {
			return fmt.Errorf("delete album_covers chunk: %w", err)
		}
	}
	return nil
}

// chunkDeleteClause builds "<column> IN (...) OR <column> LIKE ? OR ..."
// for one chunk of paths, matching every row whose path equals a deleted
// path or lives under one as a descendant.
func chunkDeleteClause(column string, chunk []string) (string, []any) {
	inClause, inArgs := catalog.InClause(column, chunk)

	likeParts := make([]string, len(chunk))
	likeArgs := make([]any, len(chunk))
	for i, p := range chunk {
		likeParts[i] = column + " LIKE ?"
		likeArgs[i] = p + "/%"
	}

	where := inClause + " OR " + strings.Join(likeParts, " OR ")
	args := append(append([]any{}, inArgs...), likeArgs...)
	return where, args
}
