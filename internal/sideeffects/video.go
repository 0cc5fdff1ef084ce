package sideeffects

import (
	"context"
	"fmt"

	"github.com/mediavault/indexd/internal/media"
)

// VideoPipeline is the external collaborator that owns thumbnail/preview
// generation for video files; spec.md §1 places it out of scope for this
// module, so VideoHandoff only normalizes and bounds-checks the path
// before posting to it.
type VideoPipeline interface {
	EnqueueVideo(ctx context.Context, rootRelativePath, thumbOutputDir string) error
}

// VideoHandoff posts newly-added video paths to pipeline, after
// normalizing each absolute path against root and rejecting any that
// would escape it (spec.md §4.5: "normalized and bounds-checked against
// the photo root").
type VideoHandoff struct {
	root           string
	thumbOutputDir string
	pipeline       VideoPipeline
}

// NewVideoHandoff builds a VideoHandoff rooted at root, handing off to
// pipeline with thumbOutputDir as the generated-thumbnail destination.
func NewVideoHandoff(root, thumbOutputDir string, pipeline VideoPipeline) *VideoHandoff {
	return &VideoHandoff{root: root, thumbOutputDir: thumbOutputDir, pipeline: pipeline}
}

// Handoff normalizes and bounds-checks each absolute video path, then
// enqueues the surviving root-relative paths with the pipeline. A path
// that fails normalization is skipped rather than aborting the whole
// batch, since one bad path shouldn't block postprocessing of the rest.
func (h *VideoHandoff) Handoff(ctx context.Context, absVideoPaths []string) error {
	for _, abs := range absVideoPaths {
		rel, err := media.Normalize(h.root, abs)
		if err != nil {
			continue
		}
		if !media.Contains(h.root, rel) {
			continue
		}
		if err := h.pipeline.EnqueueVideo(ctx, rel, h.thumbOutputDir); err != nil {
			return fmt.Errorf("sideeffects: enqueue video %q: %w", rel, err)
		}
	}
	return nil
}
