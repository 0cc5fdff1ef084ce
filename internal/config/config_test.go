package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mediavault/indexd/internal/orchestrator"
)

func TestLoad_DefaultsMatchSpecTable(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 1000, cfg.Index.BatchSize)
	require.Equal(t, 8, cfg.Index.Concurrency)
	require.Equal(t, 3*time.Second, cfg.Index.StabilizeDelay)
	require.Equal(t, 600*time.Second, cfg.Index.LockTTL)

	require.Equal(t, "WAL", cfg.SQLite.JournalMode)
	require.Equal(t, -20000, cfg.SQLite.CacheSizeKB)
	require.Equal(t, 5*time.Second, cfg.SQLite.BusyTimeout)

	require.Equal(t, int64(8<<20), cfg.Hash.SizeThreshold)
	require.Equal(t, int64(64<<10), cfg.Hash.SampleBytes)

	require.Equal(t, 200, cfg.Dim.Batch)
	require.Equal(t, 500*time.Millisecond, cfg.Dim.Sleep)

	require.False(t, cfg.Disable.StartupIndex)
	require.False(t, cfg.Disable.Watch)
}

func TestLoad_EnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("INDEX_BATCH_SIZE", "250")
	t.Setenv("INDEX_CONCURRENCY", "2")
	t.Setenv("DISABLE_WATCH", "true")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 250, cfg.Index.BatchSize)
	require.Equal(t, 2, cfg.Index.Concurrency)
	require.True(t, cfg.Disable.Watch)
}

func TestLoad_MillisecondEnvVarsConvertToDuration(t *testing.T) {
	t.Setenv("DIM_BACKFILL_SLEEP_MS", "1500")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 1500*time.Millisecond, cfg.Dim.Sleep)
}

func TestConfig_IndexerOptionsWiresBatchingAndBackfillPacing(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	opts := cfg.IndexerOptions()
	require.Equal(t, cfg.Index.BatchSize, opts.BatchSize)
	require.Equal(t, cfg.Index.Concurrency, opts.Concurrency)
	require.Equal(t, cfg.Dim.Batch, opts.DimBackfillBatch)
	require.Equal(t, cfg.Mtime.Sleep, opts.MtimeBackfillSleep)
}

func TestConfig_JobOptionsPicksScheduleByCategory(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	rebuild := cfg.JobOptions(orchestrator.CategoryRebuild)
	require.Equal(t, cfg.Index.RetryInterval, rebuild.RetryInterval)
	require.Equal(t, cfg.Index.LockTTL, rebuild.LockTTL)

	backfill := cfg.JobOptions(orchestrator.CategoryBackfill)
	require.Equal(t, cfg.Post.RetryMs, backfill.RetryInterval)

	maint := cfg.JobOptions(orchestrator.CategoryMaintenance)
	require.Equal(t, cfg.Maint.InitialDelay, maint.StartDelay)
}

func TestConfig_PragmaOptionsConverts(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	pragma := cfg.SQLite.PragmaOptions()
	require.Equal(t, cfg.SQLite.JournalMode, pragma.JournalMode)
	require.Equal(t, cfg.SQLite.MmapSizeByte, pragma.MmapSizeByte)
}

