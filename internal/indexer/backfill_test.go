package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mediavault/indexd/internal/catalog"
)

func TestBackfillMissingDimensions_FillsZeroedRows(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a/photo.jpg")

	w, _ := newTestWorker(t, root)
	_, err := w.RebuildIndex(context.Background())
	require.NoError(t, err)

	require.NoError(t, w.store.WithTransaction(context.Background(), catalog.DBMain, catalog.TxImmediate,
		func(ctx context.Context, tx *catalog.Tx) error {
			_, err := tx.ExecContext(ctx, `UPDATE items SET width = 0, height = 0 WHERE path = ?`, "a/photo.jpg")
			return err
		}))

	w.opts.DimBackfillSleep = time.Millisecond
	stats, err := w.BackfillMissingDimensions(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Updated)

	var width int
	require.NoError(t, w.store.WithTransaction(context.Background(), catalog.DBMain, catalog.TxDeferred,
		func(ctx context.Context, tx *catalog.Tx) error {
			return tx.QueryRowContext(ctx, `SELECT width FROM items WHERE path = ?`, "a/photo.jpg").Scan(&width)
		}))
	require.Equal(t, 100, width)
}

func TestBackfillMissingDimensions_NoCandidatesIsNoop(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a/photo.jpg")

	w, _ := newTestWorker(t, root)
	_, err := w.RebuildIndex(context.Background())
	require.NoError(t, err)

	w.opts.DimBackfillSleep = time.Millisecond
	stats, err := w.BackfillMissingDimensions(context.Background(), nil)
	require.NoError(t, err)
	require.Zero(t, stats.Updated)
}

func TestBackfillMissingMtime_FillsZeroedRows(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a/photo.jpg")

	w, _ := newTestWorker(t, root)
	_, err := w.RebuildIndex(context.Background())
	require.NoError(t, err)

	require.NoError(t, w.store.WithTransaction(context.Background(), catalog.DBMain, catalog.TxImmediate,
		func(ctx context.Context, tx *catalog.Tx) error {
			_, err := tx.ExecContext(ctx, `UPDATE items SET mtime = 0 WHERE path = ?`, "a/photo.jpg")
			return err
		}))

	w.opts.MtimeBackfillSleep = time.Millisecond
	stats, err := w.BackfillMissingMtime(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Updated)

	var mtime int64
	require.NoError(t, w.store.WithTransaction(context.Background(), catalog.DBMain, catalog.TxDeferred,
		func(ctx context.Context, tx *catalog.Tx) error {
			return tx.QueryRowContext(ctx, `SELECT mtime FROM items WHERE path = ?`, "a/photo.jpg").Scan(&mtime)
		}))
	require.Positive(t, mtime)
}

func TestBackfillMissingMtime_SkipsDeletedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a/photo.jpg")

	w, _ := newTestWorker(t, root)
	_, err := w.RebuildIndex(context.Background())
	require.NoError(t, err)

	require.NoError(t, w.store.WithTransaction(context.Background(), catalog.DBMain, catalog.TxImmediate,
		func(ctx context.Context, tx *catalog.Tx) error {
			_, err := tx.ExecContext(ctx, `UPDATE items SET mtime = 0 WHERE path = ?`, "a/photo.jpg")
			return err
		}))

	require.NoError(t, os.Remove(filepath.Join(root, "a/photo.jpg")))

	w.opts.MtimeBackfillSleep = time.Millisecond
	stats, err := w.BackfillMissingMtime(context.Background(), nil)
	require.NoError(t, err)
	require.Zero(t, stats.Updated)
}
