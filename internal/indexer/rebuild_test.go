package indexer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mediavault/indexd/internal/catalog"
)

func TestRebuildIndex_PopulatesItemsAndFTS(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a/photo.jpg")
	writeFile(t, root, "a/sub/video.mp4")

	w, sink := newTestWorker(t, root)
	stats, err := w.RebuildIndex(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, stats.TotalFiles) // a, a/photo.jpg, a/sub, a/sub/video.mp4
	require.Equal(t, 4, stats.ProcessedFiles)

	require.Len(t, sink.msgs, 1)
	require.Equal(t, KindResult, sink.msgs[0].Kind)
	require.Equal(t, PayloadRebuildComplete, sink.msgs[0].Type)

	status, err := w.store.GetIndexStatus(context.Background())
	require.NoError(t, err)
	require.Equal(t, catalog.PhaseComplete, status.Status)
}

func TestRebuildIndex_SecondRunIsIdempotent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a/photo.jpg")

	w, _ := newTestWorker(t, root)
	_, err := w.RebuildIndex(context.Background())
	require.NoError(t, err)

	var firstCount int
	require.NoError(t, w.store.WithTransaction(context.Background(), catalog.DBMain, catalog.TxDeferred,
		func(ctx context.Context, tx *catalog.Tx) error {
			return tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&firstCount)
		}))

	_, err = w.RebuildIndex(context.Background())
	require.NoError(t, err)

	var secondCount int
	require.NoError(t, w.store.WithTransaction(context.Background(), catalog.DBMain, catalog.TxDeferred,
		func(ctx context.Context, tx *catalog.Tx) error {
			return tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&secondCount)
		}))

	require.Equal(t, firstCount, secondCount)
}

func TestRebuildIndex_RejectsConcurrentCriticalTask(t *testing.T) {
	root := t.TempDir()
	w, _ := newTestWorker(t, root)
	w.critical.Store(true)
	defer w.critical.Store(false)

	_, err := w.RebuildIndex(context.Background())
	require.Error(t, err)
}

func TestRebuildAlbumCovers_PicksNewestDescendant(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a/old.jpg")
	writeFile(t, root, "a/new.jpg")

	w, _ := newTestWorker(t, root)
	_, err := w.RebuildIndex(context.Background())
	require.NoError(t, err)

	var coverPath string
	require.NoError(t, w.store.WithTransaction(context.Background(), catalog.DBMain, catalog.TxDeferred,
		func(ctx context.Context, tx *catalog.Tx) error {
			return tx.QueryRowContext(ctx, `SELECT cover_path FROM album_covers WHERE album_path = ?`, "a").Scan(&coverPath)
		}))
	require.Contains(t, []string{"a/old.jpg", "a/new.jpg"}, coverPath)
}
