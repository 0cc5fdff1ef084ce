package indexer

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mediavault/indexd/internal/catalog"
)

func TestProcessChanges_AddsFileAndAlbum(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a/photo.jpg")

	w, sink := newTestWorker(t, root)
	stats, tags, err := w.ProcessChanges(context.Background(), []PendingChange{
		{Path: "a", Kind: ChangeAdd, IsDir: true},
		{Path: "a/photo.jpg", Kind: ChangeAdd},
	})
	require.NoError(t, err)
	require.Equal(t, 2, stats.Added)
	require.Contains(t, tags, "album:/")
	require.Contains(t, tags, "album:/a")

	require.Len(t, sink.msgs, 1)
	require.Equal(t, PayloadProcessChangesComplete, sink.msgs[0].Type)
}

func TestProcessChanges_DeletesCascadeToDescendants(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a/photo.jpg")
	writeFile(t, root, "a/sub/video.mp4")

	w, _ := newTestWorker(t, root)
	_, err := w.RebuildIndex(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(root + "/a"))
	_, _, err = w.ProcessChanges(context.Background(), []PendingChange{
		{Path: "a", Kind: ChangeUnlink, IsDir: true},
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, w.store.WithTransaction(context.Background(), catalog.DBMain, catalog.TxDeferred,
		func(ctx context.Context, tx *catalog.Tx) error {
			return tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE path = ? OR path LIKE ?`, "a", "a/%").Scan(&count)
		}))
	require.Zero(t, count, "deleting an album should cascade to its descendants via the LIKE clause")
}

func TestProcessChanges_RejectsPathsOutsideRoot(t *testing.T) {
	root := t.TempDir()
	w, sink := newTestWorker(t, root)

	stats, _, err := w.ProcessChanges(context.Background(), []PendingChange{
		{Path: "../escape.jpg", Kind: ChangeAdd},
	})
	require.NoError(t, err)
	require.Zero(t, stats.Added)
	require.Len(t, sink.msgs, 1)
}

func TestProcessChanges_RecomputesAlbumCoverAfterDelete(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a/only.jpg")

	w, _ := newTestWorker(t, root)
	_, err := w.RebuildIndex(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(root+"/a/only.jpg"))
	_, _, err = w.ProcessChanges(context.Background(), []PendingChange{
		{Path: "a/only.jpg", Kind: ChangeUnlink},
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, w.store.WithTransaction(context.Background(), catalog.DBMain, catalog.TxDeferred,
		func(ctx context.Context, tx *catalog.Tx) error {
			return tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM album_covers WHERE album_path = ?`, "a").Scan(&count)
		}))
	require.Zero(t, count, "an album with no remaining descendant should have its cover row removed")
}
