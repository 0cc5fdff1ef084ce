package sideeffects

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mediavault/indexd/internal/lockkv"
)

func TestAlbumTags_DeduplicatesAcrossPaths(t *testing.T) {
	tags := AlbumTags([]string{"vacation/2023/a.jpg", "vacation/2023/b.jpg", "vacation/c.jpg"})
	require.ElementsMatch(t, []string{"album:/", "album:/vacation", "album:/vacation/2023"}, tags)
}

func TestTagCap_FloorsAtMinimum(t *testing.T) {
	require.Equal(t, MinTagCap, TagCap(1))
	require.Equal(t, MinTagCap, TagCap(0))
}

func TestTagCap_ScalesWithChangeCount(t *testing.T) {
	require.Equal(t, 4000, TagCap(1000))
}

func TestInvalidator_FineGrainedBelowCap(t *testing.T) {
	kv := lockkv.NewLocalKV()
	require.NoError(t, kv.Set(context.Background(), "album:/a", []byte("1"), 0))
	require.NoError(t, kv.Set(context.Background(), "route:browse:/x", []byte("1"), 0))

	inv := NewInvalidator(kv)
	require.NoError(t, inv.Invalidate(context.Background(), []string{"album:/a"}, 1))

	_, err := kv.Get(context.Background(), "album:/a")
	require.ErrorIs(t, err, lockkv.ErrNotFound)

	_, err = kv.Get(context.Background(), "route:browse:/x")
	require.NoError(t, err, "coarse purge should not have run")
}

func TestInvalidator_DegradesToCoarsePurgeAboveCap(t *testing.T) {
	kv := lockkv.NewLocalKV()
	require.NoError(t, kv.Set(context.Background(), "route:browse:/x", []byte("1"), 0))
	require.NoError(t, kv.Set(context.Background(), "album:/a", []byte("1"), 0))

	hugeTagSet := make([]string, MinTagCap+1)
	for i := range hugeTagSet {
		hugeTagSet[i] = "album:/unique-tag"
	}

	inv := NewInvalidator(kv)
	require.NoError(t, inv.Invalidate(context.Background(), hugeTagSet, 1))

	_, err := kv.Get(context.Background(), "route:browse:/x")
	require.ErrorIs(t, err, lockkv.ErrNotFound, "coarse purge should have removed route cache keys")

	_, err = kv.Get(context.Background(), "album:/a")
	require.NoError(t, err, "coarse purge must not touch non-route keys")
}
