package indexer

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/mediavault/indexd/internal/catalog"
	"github.com/mediavault/indexd/internal/media"
)

// WalkEntry is one album/photo/video discovered by Walk.
type WalkEntry struct {
	Path  string // root-relative, POSIX-normalized
	Name  string
	Type  catalog.ItemType
	Mtime int64 // epoch ms
}

var ignoredDirNames = map[string]bool{
	".thumbnails": true, "@eaDir": true, "#recycle": true, "System Volume Information": true,
}

// Walk streams WalkEntry values for every album directory and media file
// under root, in deterministic (lexical, depth-first) order, on a
// buffered channel the caller drains lazily -- the teacher's
// addDirectoriesRecursively (internal/indexer/watcher.go) walks eagerly
// into a slice; rebuild_index needs a generator instead so very large
// trees never need to be held in memory at once (spec.md §4.4: "walk the
// tree as a lazy stream"). The walk stops early, closing the channel, if
// ctx is canceled or the walker hits an unrecoverable I/O error, which is
// sent as the final value on errC.
func Walk(ctx context.Context, root string) (<-chan WalkEntry, <-chan error) {
	out := make(chan WalkEntry, 64)
	errC := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errC)
		if err := walkDir(ctx, root, root, out); err != nil {
			errC <- err
		}
	}()

	return out, errC
}

func walkDir(ctx context.Context, root, dir string, out chan<- WalkEntry) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		name := entry.Name()
		if shouldIgnoreName(name) {
			continue
		}
		abs := filepath.Join(dir, name)

		if entry.IsDir() {
			rel, err := media.Normalize(root, abs)
			if err != nil {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if rel != "" {
				select {
				case out <- WalkEntry{Path: rel, Name: name, Type: catalog.ItemAlbum, Mtime: info.ModTime().UnixMilli()}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if err := walkDir(ctx, root, abs, out); err != nil {
				return err
			}
			continue
		}

		rel, err := media.Normalize(root, abs)
		if err != nil {
			continue
		}
		typ, ok := media.ClassifyFile(rel)
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		select {
		case out <- WalkEntry{Path: rel, Name: name, Type: typ, Mtime: info.ModTime().UnixMilli()}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func shouldIgnoreName(name string) bool {
	if name == "" {
		return false
	}
	if name[0] == '.' {
		return true
	}
	return ignoredDirNames[name]
}
