package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mediavault/indexd/internal/catalog"
	"github.com/mediavault/indexd/internal/lockkv"
	"github.com/mediavault/indexd/internal/orchestrator"
)

// Test Plan for Watcher:
// - New returns a working watcher rooted at a real directory
// - Creating a media file triggers ProcessChanges after debounce
// - Non-media files are ignored entirely
// - Ignored directories (dotfiles) never trigger a change
// - Stop is idempotent and does not leak the run goroutine

type fakeProcessor struct {
	mu      sync.Mutex
	changes []PendingChange
	calls   int
	done    chan struct{}
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{done: make(chan struct{}, 1)}
}

func (f *fakeProcessor) ProcessChanges(ctx context.Context, changes []PendingChange) error {
	f.mu.Lock()
	f.changes = append(f.changes, changes...)
	f.calls++
	f.mu.Unlock()
	select {
	case f.done <- struct{}{}:
	default:
	}
	return nil
}

func (f *fakeProcessor) TriggerFullRebuild(ctx context.Context) error { return nil }

func newTestEnv(t *testing.T) (*orchestrator.Scheduler, func()) {
	t.Helper()
	store, err := catalog.Open(t.TempDir(), catalog.DefaultPragmaOptions())
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))

	reg, err := lockkv.Open(t.TempDir(), nil)
	require.NoError(t, err)

	idle := orchestrator.NewIdleGate(store, nil, orchestrator.DefaultIdleThresholds())
	sched := orchestrator.NewScheduler(reg, idle, nil)
	ctx, cancel := context.WithCancel(context.Background())
	sched.Start(ctx)

	return sched, func() {
		sched.Stop()
		cancel()
		store.Close()
		reg.Close()
	}
}

func TestWatcher_CreateMediaFileTriggersProcessChanges(t *testing.T) {
	root := t.TempDir()
	sched, cleanup := newTestEnv(t)
	defer cleanup()

	debounceDefault = 20 * time.Millisecond
	defer func() { debounceDefault = 3 * time.Second }()

	proc := newFakeProcessor()
	w, err := New(root, sched, proc, func() bool { return false }, 0, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(root, "photo.jpg"), []byte("data"), 0o644))

	select {
	case <-proc.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for ProcessChanges")
	}

	proc.mu.Lock()
	defer proc.mu.Unlock()
	require.Len(t, proc.changes, 1)
	require.Equal(t, ChangeAdd, proc.changes[0].Kind)
}

func TestWatcher_NonMediaFileIsIgnored(t *testing.T) {
	root := t.TempDir()
	sched, cleanup := newTestEnv(t)
	defer cleanup()

	debounceDefault = 20 * time.Millisecond
	defer func() { debounceDefault = 3 * time.Second }()

	proc := newFakeProcessor()
	w, err := New(root, sched, proc, func() bool { return false }, 0, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("data"), 0o644))

	select {
	case <-proc.done:
		t.Fatal("unexpected ProcessChanges call for a non-media file")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	root := t.TempDir()
	sched, cleanup := newTestEnv(t)
	defer cleanup()

	proc := newFakeProcessor()
	w, err := New(root, sched, proc, func() bool { return false }, 0, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	w.Stop()
	w.Stop() // must not panic or block
}
