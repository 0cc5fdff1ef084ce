package media

import (
	"path"
	"strings"

	"github.com/mediavault/indexd/internal/catalog"
)

// separatorRunes are the basename punctuation characters that get folded
// to spaces before tokenization, so "vacation_photo-2023.jpg" searches as
// "vacation photo 2023" rather than one opaque token.
const separatorRunes = "_-.+()[]{}"

// Tokenize derives the FTS5 token text for rel deterministically from its
// basename -- extension stripped, separators turned into spaces -- plus a
// trailing photo/video label matching its ItemType, per spec.md §5
// invariant 3 ("FTS token text is derived deterministically from the path
// basename, never from EXIF/metadata content"). Album rows pass
// typ == catalog.ItemAlbum and get no label appended.
func Tokenize(rel string, typ catalog.ItemType) string {
	base := path.Base(rel)
	ext := path.Ext(base)
	if ext != "" && typ != catalog.ItemAlbum {
		base = strings.TrimSuffix(base, ext)
	}

	folded := strings.Map(func(r rune) rune {
		if strings.ContainsRune(separatorRunes, r) {
			return ' '
		}
		return r
	}, base)

	fields := strings.Fields(folded)
	switch typ {
	case catalog.ItemPhoto:
		fields = append(fields, "photo")
	case catalog.ItemVideo:
		fields = append(fields, "video")
	}
	return strings.Join(fields, " ")
}
