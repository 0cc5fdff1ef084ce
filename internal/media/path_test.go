package media

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize_RootItself(t *testing.T) {
	rel, err := Normalize("/library", "/library")
	require.NoError(t, err)
	require.Equal(t, "", rel)
}

func TestNormalize_NestedFile(t *testing.T) {
	rel, err := Normalize("/library", "/library/vacation/photo.jpg")
	require.NoError(t, err)
	require.Equal(t, "vacation/photo.jpg", rel)
}

func TestNormalize_TrailingSlashOnRoot(t *testing.T) {
	rel, err := Normalize("/library/", "/library/vacation/photo.jpg")
	require.NoError(t, err)
	require.Equal(t, "vacation/photo.jpg", rel)
}

func TestNormalize_EscapesRoot(t *testing.T) {
	_, err := Normalize("/library", "/etc/passwd")
	require.Error(t, err)
}

func TestNormalize_DotDotWithinRootPrefix(t *testing.T) {
	_, err := Normalize("/library", "/library/../etc/passwd")
	require.Error(t, err)
}

func TestNormalize_BackslashInput(t *testing.T) {
	rel, err := Normalize(`C:\library`, `C:\library\vacation\photo.jpg`)
	require.NoError(t, err)
	require.Equal(t, "vacation/photo.jpg", rel)
}

func TestContains(t *testing.T) {
	require.True(t, Contains("/library", "vacation/photo.jpg"))
	require.True(t, Contains("/library", ""))
	require.False(t, Contains("/library", "../etc/passwd"))
	require.False(t, Contains("/library", ".."))
	require.False(t, Contains("/library", "/etc/passwd"))
}

func TestParentChain_RootFile(t *testing.T) {
	chain := ParentChain("photo.jpg")
	require.Equal(t, []string{""}, chain)
}

func TestParentChain_Nested(t *testing.T) {
	chain := ParentChain("vacation/2023/photo.jpg")
	require.Equal(t, []string{"", "vacation", "vacation/2023"}, chain)
}

func TestParentChain_Empty(t *testing.T) {
	require.Nil(t, ParentChain(""))
}
