package indexer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWorker_BeginCriticalIsExclusive(t *testing.T) {
	w, _ := newTestWorker(t, t.TempDir())

	require.True(t, w.beginCritical())
	require.False(t, w.beginCritical(), "a second critical task must be rejected while one is running")
	require.True(t, w.CriticalTaskRunning())

	w.endCritical()
	require.False(t, w.CriticalTaskRunning())
	require.True(t, w.beginCritical())
	w.endCritical()
}

func TestWorker_EmitIsNilSafeWithoutSink(t *testing.T) {
	store := newTestStore(t)
	w := NewWorker(store, t.TempDir(), nil, DefaultOptions(), nil)
	w.emit(nil, resultMsg(PayloadRebuildComplete, nil)) //nolint:staticcheck // nil ctx ok, emit never uses it when sink is nil
}
