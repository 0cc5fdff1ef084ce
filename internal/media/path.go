// Package media holds the small, pure helpers the Indexing Worker and
// watcher share for path normalization, album/photo/video classification,
// and full-text tokenization -- kept free of any catalog or filesystem
// dependency so they're trivial to unit test in isolation.
package media

import (
	"fmt"
	"path"
	"strings"
)

// Normalize converts an absolute filesystem path under root into the
// POSIX-normalized, root-relative form items.path stores: forward
// slashes, no leading separator, no ".." segments (spec.md §5 invariant
// 1). It returns an error if abs escapes root.
func Normalize(root, abs string) (string, error) {
	root = toSlash(root)
	abs = toSlash(abs)

	root = strings.TrimSuffix(root, "/")
	if abs == root {
		return "", nil
	}
	prefix := root + "/"
	if !strings.HasPrefix(abs, prefix) {
		return "", fmt.Errorf("media: path %q is not contained within root %q", abs, root)
	}
	rel := strings.TrimPrefix(abs, prefix)
	cleaned := path.Clean(rel)
	if cleaned == "." || cleaned == "" {
		return "", nil
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("media: path %q escapes root %q", abs, root)
	}
	return cleaned, nil
}

// Contains reports whether rel (already root-relative) stays within root
// once joined back -- a defense-in-depth check used anywhere a path comes
// from outside this package's own Normalize (e.g. a change event).
func Contains(root, rel string) bool {
	if rel == "" {
		return true
	}
	cleaned := path.Clean(rel)
	return cleaned != ".." && !strings.HasPrefix(cleaned, "../") && !strings.HasPrefix(cleaned, "/")
}

// ParentChain returns the chain of ancestor album paths for rel, from the
// root album ("") out to rel's immediate parent, used to compute
// cache-invalidation tags and album-mtime bumps (spec.md §4.4
// process_changes).
func ParentChain(rel string) []string {
	if rel == "" {
		return nil
	}
	dir := path.Dir(rel)
	if dir == "." {
		return []string{""}
	}
	parts := strings.Split(dir, "/")
	chain := make([]string, 0, len(parts)+1)
	chain = append(chain, "")
	acc := ""
	for _, p := range parts {
		if acc == "" {
			acc = p
		} else {
			acc = acc + "/" + p
		}
		chain = append(chain, acc)
	}
	return chain
}

// toSlash avoids importing path/filepath just for ToSlash in a package
// that otherwise only deals in POSIX-style strings. Unlike filepath.ToSlash
// it replaces every backslash with "/" on every host, so Windows-style
// inputs normalize even on POSIX.
func toSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
