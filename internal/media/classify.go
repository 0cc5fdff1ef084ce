package media

import (
	"path"
	"strings"

	"github.com/mediavault/indexd/internal/catalog"
)

// photoExtensions and videoExtensions partition the watcher's combined
// mediaExtensions set by catalog.ItemType so the indexer can decide which
// prober (image decode vs. video container probe) a file needs without
// re-deriving the split itself.
var photoExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".heic": true, ".heif": true,
	".gif": true, ".webp": true, ".tiff": true, ".bmp": true,
}

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true, ".mkv": true, ".webm": true, ".m4v": true,
}

// ClassifyFile returns the ItemType for a file's root-relative path based
// on its extension, and ok=false for extensions neither the watcher nor
// the indexer treats as media (spec.md §5: "items.type is derived solely
// from file extension, never content sniffing").
func ClassifyFile(rel string) (catalog.ItemType, bool) {
	ext := strings.ToLower(path.Ext(rel))
	if photoExtensions[ext] {
		return catalog.ItemPhoto, true
	}
	if videoExtensions[ext] {
		return catalog.ItemVideo, true
	}
	return "", false
}

// IsMediaFile reports whether rel has a recognized photo or video
// extension.
func IsMediaFile(rel string) bool {
	_, ok := ClassifyFile(rel)
	return ok
}
