package indexer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mediavault/indexd/internal/catalog"
)

func TestWalk_LexicalDepthFirstOrder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "b/photo.jpg")
	writeFile(t, root, "a/photo.jpg")
	writeFile(t, root, "a/sub/video.mp4")
	writeFile(t, root, "top.jpg")

	entries, errC := Walk(context.Background(), root)
	var paths []string
	var types []catalog.ItemType
	for e := range entries {
		paths = append(paths, e.Path)
		types = append(types, e.Type)
	}
	require.NoError(t, <-errC)

	require.Equal(t, []string{
		"a",
		"a/photo.jpg",
		"a/sub",
		"a/sub/video.mp4",
		"b",
		"b/photo.jpg",
		"top.jpg",
	}, paths)
	require.Equal(t, catalog.ItemAlbum, types[0])
	require.Equal(t, catalog.ItemPhoto, types[1])
	require.Equal(t, catalog.ItemVideo, types[3])
}

func TestWalk_SkipsIgnoredAndHiddenDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".thumbnails/cache.jpg")
	writeFile(t, root, "@eaDir/cache.jpg")
	writeFile(t, root, ".hidden/photo.jpg")
	writeFile(t, root, "keep/photo.jpg")

	entries, errC := Walk(context.Background(), root)
	var paths []string
	for e := range entries {
		paths = append(paths, e.Path)
	}
	require.NoError(t, <-errC)

	require.Equal(t, []string{"keep", "keep/photo.jpg"}, paths)
}

func TestWalk_SkipsUnrecognizedExtensions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "notes.txt")
	writeFile(t, root, "photo.jpg")

	entries, errC := Walk(context.Background(), root)
	var paths []string
	for e := range entries {
		paths = append(paths, e.Path)
	}
	require.NoError(t, <-errC)

	require.Equal(t, []string{"photo.jpg"}, paths)
}

func TestWalk_ContextCancellationStopsEarly(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 50; i++ {
		writeFile(t, root, "dir"+string(rune('a'+i%26))+"/photo.jpg")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	entries, errC := Walk(ctx, root)
	for range entries {
	}
	require.Error(t, <-errC)
}
