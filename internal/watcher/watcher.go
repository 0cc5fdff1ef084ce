package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mediavault/indexd/internal/orchestrator"
)

// mediaExtensions are the only file extensions that trigger a change;
// everything else (including HLS segment/manifest output and SQLite's own
// -wal/-shm/-journal files) is ignored so the watcher never reacts to its
// own writers.
var mediaExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".heic": true, ".heif": true,
	".gif": true, ".webp": true, ".tiff": true, ".bmp": true,
	".mp4": true, ".mov": true, ".avi": true, ".mkv": true, ".webm": true, ".m4v": true,
}

var ignoredDirNames = map[string]bool{
	".thumbnails": true, "@eaDir": true, "#recycle": true, "System Volume Information": true,
}

// ChangeProcessor is the external collaborator the watcher hands its
// drained, consolidated change set to. cmd/indexd's workerAdapter
// implements it on top of the indexer's Worker; the watcher package never
// imports the indexer to keep the dependency
// direction flowing the way spec.md's control-flow diagram draws it
// (watcher -> orchestrator admits -> indexing worker).
type ChangeProcessor interface {
	ProcessChanges(ctx context.Context, changes []PendingChange) error
	TriggerFullRebuild(ctx context.Context) error
}

// IndexingFlag reports whether a rebuild/incremental job currently holds
// the shared indexing_in_progress advisory flag.
type IndexingFlag func() bool

// Watcher watches rootDir for media and directory events, filtering,
// fingerprinting, consolidating and debounce-triggering incremental
// indexing through the orchestrator's admission gate. Grounded on
// internal/indexer/watcher.go's IndexerWatcher: fsnotify.Watcher field,
// debounce timer reset on every event, stopCh/doneCh/sync.Once shutdown.
type Watcher struct {
	rootDir   string
	fsWatcher *fsnotify.Watcher
	pending   *pendingMap
	scheduler *orchestrator.Scheduler
	processor ChangeProcessor
	indexing  IndexingFlag
	log       *slog.Logger

	idleStopWindow time.Duration

	suspended atomic.Bool
	stopCh    chan struct{}
	doneCh    chan struct{}
	stopOnce  sync.Once
}

// New creates a Watcher rooted at rootDir and adds it (and its
// subdirectories) to a fresh fsnotify watch set.
func New(rootDir string, scheduler *orchestrator.Scheduler, processor ChangeProcessor, indexing IndexingFlag, idleStopWindow time.Duration, log *slog.Logger) (*Watcher, error) {
	if log == nil {
		log = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		rootDir:        rootDir,
		fsWatcher:      fw,
		pending:        newPendingMap(),
		scheduler:      scheduler,
		processor:      processor,
		indexing:       indexing,
		log:            log,
		idleStopWindow: idleStopWindow,
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}

	if err := w.addDirectoriesRecursively(rootDir); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// Start runs the watch loop in its own goroutine.
func (w *Watcher) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop signals the watch loop to exit and waits for it to finish.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		<-w.doneCh
		w.fsWatcher.Close()
	})
}

// Suspend pauses event handling for the duration of a full rebuild; events
// are still drained from fsnotify (so its internal buffer doesn't fill)
// but are dropped rather than enqueued.
func (w *Watcher) Suspend()  { w.suspended.Store(true) }
func (w *Watcher) Resume()   { w.suspended.Store(false) }

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	var debounceTimer *time.Timer
	fireC := make(chan struct{}, 1)
	idleTimer := time.NewTimer(w.idleStopWindow)
	defer idleTimer.Stop()

	resetIdle := func() {
		if w.idleStopWindow <= 0 {
			return
		}
		if !idleTimer.Stop() {
			select {
			case <-idleTimer.C:
			default:
			}
		}
		idleTimer.Reset(w.idleStopWindow)
	}

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case <-w.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case <-idleTimer.C:
			if w.idleStopWindow > 0 && w.pending.count() == 0 && w.indexing != nil && !w.indexing() {
				w.log.Info("watcher: idle auto-stop", "root", w.rootDir)
				return
			}
			resetIdle()

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			resetIdle()
			if w.suspended.Load() || (w.indexing != nil && w.indexing()) {
				continue // silently skipped; nothing is logged for a dropped event
			}
			if !w.handleEvent(event) {
				continue
			}

			count := w.pending.count()
			if debounceTimer != nil {
				if !debounceTimer.Stop() {
					select {
					case <-debounceTimer.C:
					default:
					}
				}
			}
			debounceTimer = time.AfterFunc(debounceFor(count), func() {
				select {
				case fireC <- struct{}{}:
				default:
				}
			})

		case <-fireC:
			w.drainAndSubmit(ctx)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher: fsnotify error", "error", err)
		}
	}
}

// handleEvent classifies, filters and enqueues one fsnotify event,
// returning whether it changed the pending set.
func (w *Watcher) handleEvent(event fsnotify.Event) bool {
	isCreate := event.Op&fsnotify.Create != 0
	isRemove := event.Op&(fsnotify.Remove|fsnotify.Rename) != 0
	isWrite := event.Op&fsnotify.Write != 0
	if !isCreate && !isRemove && !isWrite {
		return false
	}

	info, statErr := os.Stat(event.Name)
	isDir := statErr == nil && info.IsDir()

	if !isDir && !shouldProcessFile(event.Name) {
		return false
	}
	if shouldIgnorePath(event.Name) {
		return false
	}

	if isCreate && isDir {
		if err := w.addDirectoriesRecursively(event.Name); err != nil {
			w.log.Warn("watcher: failed to watch new directory", "path", event.Name, "error", err)
		}
	}

	kind := EventAdd
	if isRemove {
		kind = EventUnlink
	}

	fingerprint := ""
	if kind == EventAdd && !isDir {
		if fp, ok := Fingerprint(event.Name); ok {
			fingerprint = fp
		}
	}

	w.pending.enqueue(event.Name, kind, isDir, fingerprint)
	return true
}

func (w *Watcher) drainAndSubmit(ctx context.Context) {
	changes := w.pending.drain()
	if len(changes) == 0 {
		return
	}

	if len(changes) > RebuildEscalationThreshold {
		w.log.Info("watcher: drained set exceeds threshold, escalating to full rebuild", "count", len(changes))
		_ = w.scheduler.WithAdmission(ctx, orchestrator.AdmitIndexBatch, func(ctx context.Context) error {
			return w.processor.TriggerFullRebuild(ctx)
		})
		return
	}

	_ = w.scheduler.WithAdmission(ctx, orchestrator.AdmitIndexBatch, func(ctx context.Context) error {
		return w.processor.ProcessChanges(ctx, changes)
	})
}

func shouldProcessFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return mediaExtensions[ext]
}

func shouldIgnorePath(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == "" {
			continue
		}
		if strings.HasPrefix(part, ".") {
			return true
		}
		if ignoredDirNames[part] {
			return true
		}
	}
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".tmp", ".db", ".db-wal", ".db-shm", ".db-journal", ".m3u8", ".ts":
		return true
	}
	return false
}

func (w *Watcher) addDirectoriesRecursively(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			w.log.Warn("watcher: error accessing path", "path", path, "error", err)
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if shouldIgnorePath(path) && path != root {
			return filepath.SkipDir
		}
		if err := w.fsWatcher.Add(path); err != nil {
			w.log.Warn("watcher: failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}
