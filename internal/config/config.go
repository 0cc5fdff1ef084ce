// Package config loads indexd's runtime configuration from environment
// variables (with sensible defaults), grounded on the teacher's
// internal/config.Loader (viper-backed, defaults -> env, env wins).
// Unlike the teacher, indexd has no project-local YAML config file to
// layer underneath -- every knob in spec.md §6 is an environment
// variable, so Load only needs viper's env-binding half.
package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/mediavault/indexd/internal/catalog"
	"github.com/mediavault/indexd/internal/indexer"
	"github.com/mediavault/indexd/internal/orchestrator"
)

// Config is the complete set of environment-tunable knobs named in
// spec.md §6.
type Config struct {
	Index   IndexConfig
	Watch   WatchConfig
	DB      DBConfig
	SQLite  SQLiteConfig
	Hash    HashConfig
	Dim     BackfillConfig
	Mtime   BackfillConfig
	Post    PostBackfillConfig
	Maint   MaintConfig
	Disable DisableConfig
}

// IndexConfig configures the Indexing Worker and its scheduling.
type IndexConfig struct {
	BatchSize      int
	Concurrency    int
	StabilizeDelay time.Duration
	StartDelay     time.Duration
	RetryInterval  time.Duration
	Timeout        time.Duration
	LockTTL        time.Duration
}

// WatchConfig configures the filesystem watcher.
type WatchConfig struct {
	Depth              int
	UsePolling         bool
	PollInterval       time.Duration
	StabilityThreshold time.Duration
	IdleStop           time.Duration
}

// DBConfig configures connection supervision.
type DBConfig struct {
	HealthCheckInterval time.Duration
	ReconnectAttempts   int
}

// SQLiteConfig mirrors catalog.PragmaOptions' source environment, plus two
// knobs (SlowQueryMs, InterruptMs) the catalog package doesn't yet consume
// -- see DESIGN.md for why those stay unwired.
type SQLiteConfig struct {
	JournalMode  string
	Synchronous  string
	TempStore    string
	CacheSizeKB  int
	MmapSizeByte int64
	BusyTimeout  time.Duration
	QueryTimeout time.Duration
	SlowQueryMs  int
	InterruptMs  int
}

// HashConfig configures the watcher's add-event fingerprinting.
type HashConfig struct {
	SizeThreshold int64
	SampleBytes   int64
}

// BackfillConfig configures one of the two backfill passes (dimensions,
// mtime): a batch size and an inter-batch sleep.
type BackfillConfig struct {
	Batch int
	Sleep time.Duration
}

// PostBackfillConfig configures the post-index backfill job's scheduling
// (delay/retry/timeout), distinct from the backfill passes' own
// batch/sleep pacing.
type PostBackfillConfig struct {
	DelayMs   time.Duration
	RetryMs   time.Duration
	TimeoutMs time.Duration
}

// MaintConfig configures the periodic WAL-checkpoint + ANALYZE maintenance job.
type MaintConfig struct {
	IntervalMs   time.Duration
	RetryMs      time.Duration
	InitialDelay time.Duration
	DBDelayStep  time.Duration
}

// DisableConfig toggles entire subsystems off, for environments that run
// the catalog read-only or manage indexing externally.
type DisableConfig struct {
	StartupIndex bool
	Watch        bool
}

// Load reads the environment (via viper.AutomaticEnv) into a Config,
// falling back to spec.md §6's documented defaults for anything unset.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	bindDefaults(v)

	ms := func(key string) time.Duration { return time.Duration(v.GetInt64(key)) * time.Millisecond }
	sec := func(key string) time.Duration { return time.Duration(v.GetInt64(key)) * time.Second }

	cfg := &Config{
		Index: IndexConfig{
			BatchSize:      v.GetInt("INDEX_BATCH_SIZE"),
			Concurrency:    v.GetInt("INDEX_CONCURRENCY"),
			StabilizeDelay: ms("INDEX_STABILIZE_DELAY_MS"),
			StartDelay:     ms("INDEX_START_DELAY_MS"),
			RetryInterval:  ms("INDEX_RETRY_INTERVAL_MS"),
			Timeout:        ms("INDEX_TIMEOUT_MS"),
			LockTTL:        sec("INDEX_LOCK_TTL_SEC"),
		},
		Watch: WatchConfig{
			Depth:              v.GetInt("WATCH_DEPTH"),
			UsePolling:         v.GetBool("WATCH_USE_POLLING"),
			PollInterval:       ms("WATCH_POLL_INTERVAL"),
			StabilityThreshold: ms("WATCH_STABILITY_THRESHOLD"),
			IdleStop:           ms("WATCHER_IDLE_STOP_MS"),
		},
		DB: DBConfig{
			HealthCheckInterval: ms("DB_HEALTH_CHECK_INTERVAL"),
			ReconnectAttempts:   v.GetInt("DB_RECONNECT_ATTEMPTS"),
		},
		SQLite: SQLiteConfig{
			JournalMode:  v.GetString("SQLITE_JOURNAL_MODE"),
			Synchronous:  v.GetString("SQLITE_SYNCHRONOUS"),
			TempStore:    v.GetString("SQLITE_TEMP_STORE"),
			CacheSizeKB:  v.GetInt("SQLITE_CACHE_SIZE"),
			MmapSizeByte: v.GetInt64("SQLITE_MMAP_SIZE"),
			BusyTimeout:  ms("SQLITE_BUSY_TIMEOUT"),
			QueryTimeout: ms("SQLITE_QUERY_TIMEOUT"),
			SlowQueryMs:  v.GetInt("SQLITE_SLOW_QUERY_MS"),
			InterruptMs:  v.GetInt("SQLITE_INTERRUPT_MS"),
		},
		Hash: HashConfig{
			SizeThreshold: v.GetInt64("INDEX_HASH_SIZE_THRESHOLD"),
			SampleBytes:   v.GetInt64("INDEX_HASH_SAMPLE_BYTES"),
		},
		Dim: BackfillConfig{
			Batch: v.GetInt("DIM_BACKFILL_BATCH"),
			Sleep: ms("DIM_BACKFILL_SLEEP_MS"),
		},
		Mtime: BackfillConfig{
			Batch: v.GetInt("MTIME_BACKFILL_BATCH"),
			Sleep: ms("MTIME_BACKFILL_SLEEP_MS"),
		},
		Post: PostBackfillConfig{
			DelayMs:   ms("POST_INDEX_BACKFILL_DELAY_MS"),
			RetryMs:   ms("POST_INDEX_BACKFILL_RETRY_MS"),
			TimeoutMs: ms("POST_INDEX_BACKFILL_TIMEOUT_MS"),
		},
		Maint: MaintConfig{
			IntervalMs:   ms("DB_MAINT_INTERVAL_MS"),
			RetryMs:      ms("DB_MAINT_RETRY_MS"),
			InitialDelay: ms("DB_MAINT_INITIAL_DELAY_MS"),
			DBDelayStep:  ms("DB_MAINT_DB_DELAY_STEP_MS"),
		},
		Disable: DisableConfig{
			StartupIndex: v.GetBool("DISABLE_STARTUP_INDEX"),
			Watch:        v.GetBool("DISABLE_WATCH"),
		},
	}
	return cfg, nil
}

// bindDefaults mirrors the teacher's setDefaults(v), one SetDefault call
// per key, using spec.md §6's documented default values. Time values are
// plain integer counts (milliseconds for *_MS and the other interval keys,
// seconds for INDEX_LOCK_TTL_SEC) that Load reads with GetInt64 and
// multiplies out itself, rather than viper's GetDuration, which would
// read a bare integer as nanoseconds.
func bindDefaults(v *viper.Viper) {
	v.SetDefault("INDEX_BATCH_SIZE", 1000)
	v.SetDefault("INDEX_CONCURRENCY", 8)
	v.SetDefault("INDEX_STABILIZE_DELAY_MS", 3000)
	v.SetDefault("INDEX_START_DELAY_MS", 0)
	v.SetDefault("INDEX_RETRY_INTERVAL_MS", 2000)
	v.SetDefault("INDEX_TIMEOUT_MS", 0)
	v.SetDefault("INDEX_LOCK_TTL_SEC", 600)

	v.SetDefault("WATCH_DEPTH", 0)
	v.SetDefault("WATCH_USE_POLLING", false)
	v.SetDefault("WATCH_POLL_INTERVAL", 1000)
	v.SetDefault("WATCH_STABILITY_THRESHOLD", 2000)
	v.SetDefault("WATCHER_IDLE_STOP_MS", 0)

	v.SetDefault("DB_HEALTH_CHECK_INTERVAL", 30000)
	v.SetDefault("DB_RECONNECT_ATTEMPTS", 5)

	v.SetDefault("SQLITE_JOURNAL_MODE", "WAL")
	v.SetDefault("SQLITE_SYNCHRONOUS", "NORMAL")
	v.SetDefault("SQLITE_TEMP_STORE", "MEMORY")
	v.SetDefault("SQLITE_CACHE_SIZE", -20000)
	v.SetDefault("SQLITE_MMAP_SIZE", int64(256<<20))
	v.SetDefault("SQLITE_BUSY_TIMEOUT", 5000)
	v.SetDefault("SQLITE_QUERY_TIMEOUT", 30000)
	v.SetDefault("SQLITE_SLOW_QUERY_MS", 1000)
	v.SetDefault("SQLITE_INTERRUPT_MS", 0)

	v.SetDefault("INDEX_HASH_SIZE_THRESHOLD", int64(8<<20))
	v.SetDefault("INDEX_HASH_SAMPLE_BYTES", int64(64<<10))

	v.SetDefault("DIM_BACKFILL_BATCH", 200)
	v.SetDefault("DIM_BACKFILL_SLEEP_MS", 500)
	v.SetDefault("MTIME_BACKFILL_BATCH", 200)
	v.SetDefault("MTIME_BACKFILL_SLEEP_MS", 500)

	v.SetDefault("POST_INDEX_BACKFILL_DELAY_MS", 60000)
	v.SetDefault("POST_INDEX_BACKFILL_RETRY_MS", 30000)
	v.SetDefault("POST_INDEX_BACKFILL_TIMEOUT_MS", 0)

	v.SetDefault("DB_MAINT_INTERVAL_MS", 21600000) // 6h
	v.SetDefault("DB_MAINT_RETRY_MS", 60000)
	v.SetDefault("DB_MAINT_INITIAL_DELAY_MS", 60000)
	v.SetDefault("DB_MAINT_DB_DELAY_STEP_MS", 5000)

	v.SetDefault("DISABLE_STARTUP_INDEX", false)
	v.SetDefault("DISABLE_WATCH", false)
}

// IndexerOptions converts IndexConfig/BackfillConfig into the batching
// and pacing options internal/indexer.Worker consumes.
func (c Config) IndexerOptions() indexer.Options {
	opts := indexer.DefaultOptions()
	opts.BatchSize = c.Index.BatchSize
	opts.Concurrency = c.Index.Concurrency
	opts.DimBackfillBatch = c.Dim.Batch
	opts.DimBackfillSleep = c.Dim.Sleep
	opts.MtimeBackfillBatch = c.Mtime.Batch
	opts.MtimeBackfillSleep = c.Mtime.Sleep
	return opts
}

// JobOptions builds the orchestrator.JobOptions for category, applying
// the INDEX_*/POST_INDEX_BACKFILL_*/DB_MAINT_* scheduling knobs that
// apply to it.
func (c Config) JobOptions(category orchestrator.JobCategory) orchestrator.JobOptions {
	opts := orchestrator.DefaultJobOptions()
	opts.Category = category
	opts.LockTTL = c.Index.LockTTL

	switch category {
	case orchestrator.CategoryRebuild, orchestrator.CategoryIncremental:
		opts.StartDelay = c.Index.StartDelay
		opts.RetryInterval = c.Index.RetryInterval
	case orchestrator.CategoryBackfill:
		opts.StartDelay = c.Post.DelayMs
		opts.RetryInterval = c.Post.RetryMs
	case orchestrator.CategoryMaintenance:
		opts.StartDelay = c.Maint.InitialDelay
		opts.RetryInterval = c.Maint.RetryMs
	}
	return opts
}

// PragmaOptions converts SQLiteConfig into catalog.PragmaOptions. Kept
// here rather than in internal/catalog so catalog stays free of a
// dependency on this package's env-parsing.
func (c SQLiteConfig) PragmaOptions() catalog.PragmaOptions {
	return catalog.PragmaOptions{
		JournalMode:  c.JournalMode,
		Synchronous:  c.Synchronous,
		TempStore:    c.TempStore,
		CacheSizeKB:  c.CacheSizeKB,
		MmapSizeByte: c.MmapSizeByte,
		BusyTimeout:  c.BusyTimeout,
		QueryTimeout: c.QueryTimeout,
	}
}
