package watcher

import (
	"sync"
	"time"
)

// pendingMap is the per-path event log named by spec.md §4.3: "mapping
// from absolute path to an ordered list of events seen for that path since
// the last drain." It is the sole mutator of watcher scheduling state
// (alongside the debounce timer), guarded by a single mutex since its
// critical sections are all sub-microsecond map operations -- no need for
// a dedicated actor goroutine here, unlike the orchestrator's job queue.
type pendingMap struct {
	mu     sync.Mutex
	events map[string][]rawEvent
}

func newPendingMap() *pendingMap {
	return &pendingMap{events: make(map[string][]rawEvent)}
}

func (p *pendingMap) enqueue(path string, kind EventKind, isDir bool, fingerprint string) (count int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events[path] = append(p.events[path], rawEvent{kind: kind, isDir: isDir, fingerprint: fingerprint, at: time.Now()})
	return len(p.events)
}

func (p *pendingMap) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// drain consolidates and clears the pending map, returning one
// PendingChange per path that didn't cancel out under consolidate's
// rule 1.
func (p *pendingMap) drain() []PendingChange {
	p.mu.Lock()
	events := p.events
	p.events = make(map[string][]rawEvent)
	p.mu.Unlock()

	out := make([]PendingChange, 0, len(events))
	for path, history := range events {
		kind := consolidate(history)
		if kind == ChangeNone {
			continue
		}
		out = append(out, PendingChange{Path: path, Kind: kind, IsDir: history[len(history)-1].isDir})
	}
	return out
}
