package watcher

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPendingMap_DrainConsolidatesPerPath(t *testing.T) {
	p := newPendingMap()
	p.enqueue("/a.jpg", EventAdd, false, "sha-a")
	p.enqueue("/a.jpg", EventUnlink, false, "")
	p.enqueue("/b.jpg", EventAdd, false, "sha-b")

	changes := p.drain()
	require.Len(t, changes, 1, "a.jpg's add+unlink should cancel out, leaving only b.jpg")
	require.Equal(t, "/b.jpg", changes[0].Path)
	require.Equal(t, ChangeAdd, changes[0].Kind)
}

func TestPendingMap_DrainClearsState(t *testing.T) {
	p := newPendingMap()
	p.enqueue("/a.jpg", EventAdd, false, "sha-a")
	require.Equal(t, 1, p.count())

	p.drain()
	require.Equal(t, 0, p.count())
}

func TestPendingMap_EmptyDrainReturnsEmptySlice(t *testing.T) {
	p := newPendingMap()
	require.Empty(t, p.drain())
}
