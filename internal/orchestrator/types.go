// Package orchestrator is the singleton background-job scheduler: it
// serializes named heavy jobs (full rebuild, incremental change batches,
// post-index backfills, WAL maintenance), each guarded by a lock from
// lockkv and an idle-window admission gate, mirroring the goroutine +
// channel lifecycle the teacher uses for its file watcher generalized from
// one long-lived watch loop to many short-lived named jobs.
package orchestrator

import (
	"context"
	"time"
)

// JobState is the per-job state machine named by spec: queued transitions
// to waiting_idle, which can loop on itself, then locking (also loopable),
// then running, ending in done or retrying (which re-enters waiting_idle).
type JobState string

const (
	JobQueued      JobState = "queued"
	JobWaitingIdle JobState = "waiting_idle"
	JobLocking     JobState = "locking"
	JobRunning     JobState = "running"
	JobDone        JobState = "done"
	JobRetrying    JobState = "retrying"
)

// JobCategory labels a job's kind (it selects the config-derived
// JobOptions). The scheduler itself does not read it: every category
// shares one idle predicate.
type JobCategory string

const (
	CategoryRebuild    JobCategory = "rebuild"
	CategoryIncremental JobCategory = "incremental"
	CategoryBackfill   JobCategory = "backfill"
	CategoryMaintenance JobCategory = "maintenance"
)

// JobOptions configures a single runWhenIdle call.
type JobOptions struct {
	StartDelay       time.Duration
	RetryInterval    time.Duration
	IdleCheckInterval time.Duration
	MaxIdleWait      time.Duration
	LockTTL          time.Duration
	Category         JobCategory
}

// DefaultJobOptions mirrors the INDEX_* environment defaults (spec §6).
func DefaultJobOptions() JobOptions {
	return JobOptions{
		StartDelay:        0,
		RetryInterval:     2 * time.Second,
		IdleCheckInterval: 500 * time.Millisecond,
		MaxIdleWait:       30 * time.Second,
		LockTTL:           10 * time.Minute,
		Category:          CategoryIncremental,
	}
}

// JobFunc is the body of a scheduled job. It receives a context that is
// canceled when the scheduler stops or the submitting caller's context is
// done; there is no per-job timeout.
type JobFunc func(ctx context.Context) error

// jobRequest is sent to the scheduler actor by RunWhenIdle.
type jobRequest struct {
	ctx  context.Context // the submitting caller's context
	name string
	fn   JobFunc
	opts JobOptions
}

// AdmissionKind distinguishes the two admission surfaces named by spec:
// gate (wait for idle, return regardless) and withAdmission (wait for
// idle, run fn, return its result).
type AdmissionKind string

const (
	AdmitIndexBatch AdmissionKind = "index-batch"
	AdmitThumbnail  AdmissionKind = "thumbnail"
)
