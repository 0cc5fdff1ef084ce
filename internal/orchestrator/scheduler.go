package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mediavault/indexd/internal/lockkv"
)

// Scheduler is the orchestrator: a single actor goroutine draining a
// request channel, generalizing the teacher's one-watcher-goroutine
// pattern (internal/indexer/watcher.go's watch loop) from "one long-lived
// watch loop" to "a queue of short-lived named jobs run strictly one at a
// time" -- the "serial promise chain" named by spec becomes a single
// consumer goroutine instead of callback chaining.
type Scheduler struct {
	lock *lockkv.Registry
	idle *IdleGate
	log  *slog.Logger

	reqC   chan jobRequest
	stopC  chan struct{}
	doneC  chan struct{}
	stopOnce sync.Once

	mu       sync.Mutex
	inflight map[string][]chan error // dedup: jobs with waiters attached
	states   map[string]JobState
}

// NewScheduler wires the scheduler to its lock registry and idle gate.
func NewScheduler(lock *lockkv.Registry, idle *IdleGate, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		lock:     lock,
		idle:     idle,
		log:      log,
		reqC:     make(chan jobRequest),
		stopC:    make(chan struct{}),
		doneC:    make(chan struct{}),
		inflight: make(map[string][]chan error),
		states:   make(map[string]JobState),
	}
}

// Start launches the single-consumer actor goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	go s.run(ctx)
}

// Stop signals the actor to exit and waits for it to drain.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopC)
		<-s.doneC
	})
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneC)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopC:
			return
		case req := <-s.reqC:
			s.execute(ctx, req)
		}
	}
}

// RunWhenIdle schedules fn under jobName, deduplicating concurrent callers
// for the same name (they all observe the one execution's result), and
// blocks the calling goroutine until that execution completes -- the
// scheduler's internal actor still runs it strictly after any job ahead of
// it in reqC, preserving total serial order across names.
func (s *Scheduler) RunWhenIdle(ctx context.Context, name string, fn JobFunc, opts JobOptions) error {
	if opts.IdleCheckInterval <= 0 || opts.RetryInterval <= 0 {
		d := DefaultJobOptions()
		if opts.IdleCheckInterval <= 0 {
			opts.IdleCheckInterval = d.IdleCheckInterval
		}
		if opts.RetryInterval <= 0 {
			opts.RetryInterval = d.RetryInterval
		}
		if opts.MaxIdleWait <= 0 {
			opts.MaxIdleWait = d.MaxIdleWait
		}
		if opts.LockTTL <= 0 {
			opts.LockTTL = d.LockTTL
		}
	}

	resultC := make(chan error, 1)
	needsSubmit := false

	s.mu.Lock()
	if waiters, ok := s.inflight[name]; ok {
		s.inflight[name] = append(waiters, resultC)
	} else {
		s.inflight[name] = []chan error{resultC}
		s.states[name] = JobQueued
		needsSubmit = true
	}
	s.mu.Unlock()

	if needsSubmit {
		req := jobRequest{ctx: ctx, name: name, fn: fn, opts: opts}
		select {
		case s.reqC <- req:
		case <-ctx.Done():
			s.finish(name, ctx.Err())
			return ctx.Err()
		}
	}

	select {
	case err := <-resultC:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// execute runs the full job-execution loop named by spec: (1) sleep
// startDelay once; (2) wait for idle with maxIdleWait, and if not reached,
// sleep retryInterval and loop; (3) acquire the named lock, preferring the
// distributed backend, and on failure sleep retryInterval and loop; (4) run
// fn; (5) release the lock -- on success all waiters receive nil, on
// exception the failure is logged and the loop continues. The only escape
// hatch from a job that keeps failing is the submitting caller's own ctx
// cancellation (spec: "caller decides retry cap via cancellation"), or the
// scheduler stopping.
func (s *Scheduler) execute(ctx context.Context, req jobRequest) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(req.ctx, cancel)
	defer stop()

	name := req.name
	s.setState(name, JobWaitingIdle)

	if req.opts.StartDelay > 0 {
		select {
		case <-time.After(req.opts.StartDelay):
		case <-ctx.Done():
			s.finish(name, ctx.Err())
			return
		}
	}

	for {
		if ctx.Err() != nil {
			s.finish(name, ctx.Err())
			return
		}

		s.setState(name, JobWaitingIdle)
		if !s.idle.WaitIdle(ctx, req.opts.IdleCheckInterval, req.opts.MaxIdleWait) {
			s.setState(name, JobRetrying)
			if !s.sleepOrDone(ctx, name, req.opts.RetryInterval) {
				return
			}
			continue
		}

		s.setState(name, JobLocking)
		lockKey := "lock:job:" + name
		handle, err := s.lock.TryAcquire(ctx, lockKey, req.opts.LockTTL)
		if err != nil {
			s.log.Debug("orchestrator: lock not acquired, retrying", "job", name, "error", err)
			s.setState(name, JobRetrying)
			if !s.sleepOrDone(ctx, name, req.opts.RetryInterval) {
				return
			}
			continue
		}

		s.setState(name, JobRunning)
		runErr := req.fn(ctx)
		if relErr := handle.Release(context.Background()); relErr != nil {
			s.log.Warn("orchestrator: failed to release job lock", "job", name, "error", relErr)
		}

		if runErr != nil {
			s.log.Error("orchestrator: job failed, retrying", "job", name, "error", runErr)
			s.setState(name, JobRetrying)
			if !s.sleepOrDone(ctx, name, req.opts.RetryInterval) {
				return
			}
			continue
		}

		s.setState(name, JobDone)
		s.finish(name, nil)
		return
	}
}

// sleepOrDone waits for retryInterval, returning false (after finishing the
// job with ctx.Err()) if ctx is canceled first -- the shared "loop after
// retryIntervalMs, unless the caller gave up" step used by every retry path
// in execute.
func (s *Scheduler) sleepOrDone(ctx context.Context, name string, retryInterval time.Duration) bool {
	select {
	case <-time.After(retryInterval):
		return true
	case <-ctx.Done():
		s.finish(name, ctx.Err())
		return false
	}
}

func (s *Scheduler) finish(name string, err error) {
	s.mu.Lock()
	waiters := s.inflight[name]
	delete(s.inflight, name)
	s.mu.Unlock()

	for _, w := range waiters {
		w <- err
		close(w)
	}
}

func (s *Scheduler) setState(name string, st JobState) {
	s.mu.Lock()
	s.states[name] = st
	s.mu.Unlock()
}

// State reports the current state machine value for a named job, for
// health/status reporting.
func (s *Scheduler) State(name string) (JobState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[name]
	return st, ok
}

// Gate blocks until the idle window opens or maxIdleWait elapses,
// returning regardless -- the "gate(kind, opts)" admission primitive.
func (s *Scheduler) Gate(ctx context.Context, kind AdmissionKind, opts JobOptions) {
	if opts.IdleCheckInterval <= 0 {
		opts.IdleCheckInterval = DefaultJobOptions().IdleCheckInterval
	}
	if opts.MaxIdleWait <= 0 {
		opts.MaxIdleWait = DefaultJobOptions().MaxIdleWait
	}
	s.idle.WaitIdle(ctx, opts.IdleCheckInterval, opts.MaxIdleWait)
}

// WithAdmission waits for the idle window (like Gate) then runs fn
// directly, without the named-job lock/dedup machinery -- used for
// one-off admission-gated work that doesn't need cross-call dedup.
func (s *Scheduler) WithAdmission(ctx context.Context, kind AdmissionKind, fn JobFunc) error {
	s.Gate(ctx, kind, DefaultJobOptions())
	return fn(ctx)
}
