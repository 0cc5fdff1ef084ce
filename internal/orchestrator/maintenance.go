package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/mediavault/indexd/internal/catalog"
)

// MaintenanceJobName is the name registered with the scheduler for the
// recurring WAL-checkpoint + ANALYZE pass.
const MaintenanceJobName = "db-maintenance"

// PostIndexBackfillJobName is the name used for the startup backfill chain
// (missing dimensions, then missing mtimes), scheduled via RunWhenIdle once
// at daemon startup.
const PostIndexBackfillJobName = "post-index-backfill"

// RunMaintenance checkpoints the WAL and runs ANALYZE against the main
// database, the periodic housekeeping spec.md's maintenance job performs so
// the WAL file doesn't grow unbounded between full rebuilds.
func RunMaintenance(ctx context.Context, store *catalog.Store) error {
	db := store.DB(catalog.DBMain)
	if _, err := db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("wal checkpoint: %w", err)
	}
	if _, err := db.ExecContext(ctx, "ANALYZE"); err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	return nil
}

// ScheduleMaintenanceLoop registers RunMaintenance with the scheduler on a
// fixed interval, stopping when ctx is canceled.
func ScheduleMaintenanceLoop(ctx context.Context, sched *Scheduler, store *catalog.Store, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				opts := DefaultJobOptions()
				opts.Category = CategoryMaintenance
				_ = sched.RunWhenIdle(ctx, MaintenanceJobName, func(ctx context.Context) error {
					return RunMaintenance(ctx, store)
				}, opts)
			}
		}
	}()
}
