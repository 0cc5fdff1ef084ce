package media

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mediavault/indexd/internal/catalog"
)

func TestClassifyFile_Photo(t *testing.T) {
	typ, ok := ClassifyFile("vacation/photo.JPG")
	require.True(t, ok)
	require.Equal(t, catalog.ItemPhoto, typ)
}

func TestClassifyFile_Video(t *testing.T) {
	typ, ok := ClassifyFile("vacation/clip.mov")
	require.True(t, ok)
	require.Equal(t, catalog.ItemVideo, typ)
}

func TestClassifyFile_Unrecognized(t *testing.T) {
	_, ok := ClassifyFile("vacation/notes.txt")
	require.False(t, ok)
}

func TestIsMediaFile(t *testing.T) {
	require.True(t, IsMediaFile("a.png"))
	require.False(t, IsMediaFile("a.db"))
}
