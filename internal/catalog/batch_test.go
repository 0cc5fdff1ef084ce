package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunks_BoundaryAlignment(t *testing.T) {
	values := []string{"a", "b", "c", "d", "e"}
	chunks := Chunks(values, 2)
	require.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, chunks)
}

func TestChunks_DefaultSize(t *testing.T) {
	values := make([]string, 10)
	chunks := Chunks(values, 0)
	require.Len(t, chunks, 1, "10 values under the default size of 500 should stay in one chunk")
}

func TestInClause_AlignsArgsWithinChunk(t *testing.T) {
	frag, args := InClause("path", []string{"/a", "/b", "/c"})
	require.Equal(t, "path IN (?,?,?)", frag)
	require.Equal(t, []any{"/a", "/b", "/c"}, args)
}

func TestBatch_ChunksAcrossMultiplePrepares(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rows := make([][]any, 0, 5)
	for i := 0; i < 5; i++ {
		rows = append(rows, []any{
			"/batch/" + string(rune('a'+i)) + ".jpg", "x.jpg", string(ItemPhoto), int64(i),
		})
	}

	err := s.Batch(ctx, DBMain,
		`INSERT INTO items (path, name, type, mtime) VALUES (?, ?, ?, ?)`,
		rows, BatchOptions{ChunkSize: 2, ManageTransaction: true})
	require.NoError(t, err)

	var count int
	require.NoError(t, s.conns[DBMain].QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&count))
	require.Equal(t, 5, count)
}

func TestBatch_EmptyRowsIsNoop(t *testing.T) {
	s := openTestStore(t)
	err := s.Batch(context.Background(), DBMain,
		`INSERT INTO items (path, name, type, mtime) VALUES (?, ?, ?, ?)`,
		nil, BatchOptions{})
	require.NoError(t, err)
}
