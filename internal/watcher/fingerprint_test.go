package watcher

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFingerprint_SameContentSameHash(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.jpg")
	b := filepath.Join(dir, "b.jpg")
	require.NoError(t, os.WriteFile(a, []byte("same bytes"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("same bytes"), 0o644))

	fa, ok := Fingerprint(a)
	require.True(t, ok)
	fb, ok := Fingerprint(b)
	require.True(t, ok)
	require.Equal(t, fa, fb)
}

func TestFingerprint_DifferentContentDifferentHash(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.jpg")
	b := filepath.Join(dir, "b.jpg")
	require.NoError(t, os.WriteFile(a, []byte("content one"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("content two"), 0o644))

	fa, _ := Fingerprint(a)
	fb, _ := Fingerprint(b)
	require.NotEqual(t, fa, fb)
}

func TestFingerprint_MissingFileReturnsFalse(t *testing.T) {
	_, ok := Fingerprint(filepath.Join(t.TempDir(), "nope.jpg"))
	require.False(t, ok)
}

func TestFingerprint_LargeFileSamplesHeadAndTail(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.mp4")

	content := strings.Repeat("x", int(FingerprintStreamThreshold)+1)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	fp, ok := Fingerprint(path)
	require.True(t, ok)
	require.NotEmpty(t, fp)
}
