package media

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mediavault/indexd/internal/catalog"
)

func TestTokenize_PhotoStripsExtensionAndFoldsSeparators(t *testing.T) {
	got := Tokenize("vacation/vacation_photo-2023.jpg", catalog.ItemPhoto)
	require.Equal(t, "vacation photo 2023 photo", got)
}

func TestTokenize_VideoLabel(t *testing.T) {
	got := Tokenize("clips/birthday.party.mov", catalog.ItemVideo)
	require.Equal(t, "birthday party video", got)
}

func TestTokenize_AlbumKeepsFullBasename(t *testing.T) {
	got := Tokenize("vacation-2023", catalog.ItemAlbum)
	require.Equal(t, "vacation 2023", got)
}

func TestTokenize_NoDoubleSpaces(t *testing.T) {
	got := Tokenize("a__b--c.jpg", catalog.ItemPhoto)
	require.Equal(t, "a b c photo", got)
}
