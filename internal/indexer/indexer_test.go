package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mediavault/indexd/internal/catalog"
	"github.com/mediavault/indexd/internal/dimcache"
	"github.com/mediavault/indexd/internal/lockkv"
)

func newTestStore(t *testing.T) *catalog.Store {
	t.Helper()
	store, err := catalog.Open(t.TempDir(), catalog.DefaultPragmaOptions())
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { store.Close() })
	return store
}

// fakeProber returns fixed dimensions for every path, so tests don't need
// real decodable image bytes on disk.
type fakeProber struct{ dims dimcache.Dimensions }

func (f *fakeProber) Probe(ctx context.Context, path string) (dimcache.Dimensions, error) {
	return f.dims, nil
}

func newTestWorker(t *testing.T, root string) (*Worker, *recordingSink) {
	t.Helper()
	store := newTestStore(t)
	cache, err := dimcache.New(100, lockkv.NewLocalKV(), 0, &fakeProber{dims: dimcache.Dimensions{Width: 100, Height: 80}})
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	sink := &recordingSink{}
	return NewWorker(store, root, cache, DefaultOptions(), sink), sink
}

type recordingSink struct{ msgs []Message }

func (s *recordingSink) Send(ctx context.Context, msg Message) { s.msgs = append(s.msgs, msg) }

func writeFile(t *testing.T, root, rel string) {
	t.Helper()
	abs := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte("data"), 0o644))
}
