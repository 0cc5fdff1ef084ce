// Package sideeffects carries out the orchestrated work that follows a
// catalog write but isn't the write itself: cache-tag invalidation and
// handoff of newly-added video paths to the external video pipeline
// (spec.md §4.3/§4.5).
package sideeffects

import (
	"context"
	"fmt"

	"github.com/mediavault/indexd/internal/lockkv"
	"github.com/mediavault/indexd/internal/media"
)

// BrowseRoutePrefix is the coarse cache-tag namespace purged when a
// fine-grained invalidation set grows too large to invalidate tag by tag.
const BrowseRoutePrefix = "route:browse:"

// MinTagCap is the floor under which the tag-invalidation cap never
// drops, even for a single-file change, so a handful of album tags are
// always invalidated individually rather than triggering a purge.
const MinTagCap = 200

// TagCapPerChange scales the cap with the size of the change batch that
// produced the tag set: a function of pending change count per spec.md
// §4.3, chosen generously enough that ordinary edits never degrade.
const TagCapPerChange = 4

// TagCap returns the maximum number of distinct album:/... tags this
// invalidation pass will invalidate individually before degrading to a
// coarse route:browse:* purge.
func TagCap(pendingChangeCount int) int {
	n := TagCapPerChange * pendingChangeCount
	if n < MinTagCap {
		return MinTagCap
	}
	return n
}

// Invalidator purges the lockkv-cached browse/search results affected by
// a catalog write.
type Invalidator struct {
	kv lockkv.KV
}

// NewInvalidator builds an Invalidator backed by kv (typically an
// *lockkv.Registry).
func NewInvalidator(kv lockkv.KV) *Invalidator {
	return &Invalidator{kv: kv}
}

// AlbumTags computes the album:/... tag chain for every affected
// root-relative path, deduplicated, ready to hand to Invalidate.
func AlbumTags(paths []string) []string {
	seen := make(map[string]bool)
	var tags []string
	for _, p := range paths {
		for _, parent := range media.ParentChain(p) {
			tag := "album:/" + parent
			if !seen[tag] {
				seen[tag] = true
				tags = append(tags, tag)
			}
		}
	}
	return tags
}

// Invalidate deletes every tag in tags, unless len(tags) exceeds the cap
// derived from pendingChangeCount, in which case it degrades to a single
// coarse purge of every route:browse:* key (spec.md §4.3's large-set
// degradation).
func (inv *Invalidator) Invalidate(ctx context.Context, tags []string, pendingChangeCount int) error {
	if len(tags) > TagCap(pendingChangeCount) {
		if _, err := inv.kv.DeletePrefix(ctx, BrowseRoutePrefix); err != nil {
			return fmt.Errorf("sideeffects: coarse route-cache purge: %w", err)
		}
		return nil
	}
	for _, tag := range tags {
		if err := inv.kv.Delete(ctx, tag); err != nil {
			return fmt.Errorf("sideeffects: invalidate tag %q: %w", tag, err)
		}
	}
	return nil
}
