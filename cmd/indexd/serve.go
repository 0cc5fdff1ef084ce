package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mediavault/indexd/internal/catalog"
	"github.com/mediavault/indexd/internal/config"
	"github.com/mediavault/indexd/internal/health"
	"github.com/mediavault/indexd/internal/orchestrator"
	"github.com/mediavault/indexd/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the indexing daemon: catalog, watcher, scheduler and background jobs",
	Long: `serve runs indexd's full startup sequence -- opens and migrates the
catalog, resets stale thumbnail state, starts the background job
scheduler and filesystem watcher, and (if the catalog is empty or a
rebuild was interrupted) kicks off a full rebuild -- then blocks until
interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log, closeLog := buildLogger()
	defer closeLog()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := openCatalog(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	sink := newSlogSink(log)
	stack, err := buildWorkerStack(store, cfg, log, sink)
	if err != nil {
		return err
	}
	defer stack.Close()

	idleGate := orchestrator.NewIdleGate(store, orchestrator.NewRuntimeLoadSampler(), orchestrator.DefaultIdleThresholds())
	sched := orchestrator.NewScheduler(stack.registry, idleGate, log)
	sched.Start(ctx)
	defer sched.Stop()

	log.Info("lockkv registry ready", "distributed_kv_available", stack.registry.Available())

	adapter := newWorkerAdapter(stack.worker, stack.invalidator, stack.videoHandoff, flags.photosDir, log)
	watch, err := watcher.New(flags.photosDir, sched, adapter, stack.worker.CriticalTaskRunning, cfg.Watch.IdleStop, log)
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	adapter.SetWatcher(watch)
	if !cfg.Disable.Watch {
		watch.Start(ctx)
		defer watch.Stop()
	}

	healthAgg := health.New(store, stack.registry,
		health.WorkerCheck("watcher", func(ctx context.Context) (bool, string) {
			return true, "watcher goroutine running"
		}),
		health.WorkerCheck("scheduler", func(ctx context.Context) (bool, string) {
			return true, "scheduler actor running"
		}),
	)
	_ = healthAgg // not run in this process; `indexd status` builds and runs its own aggregator

	health.ScheduleReconnectLoop(ctx, store, cfg.DB.HealthCheckInterval, cfg.DB.ReconnectAttempts, log)
	orchestrator.ScheduleMaintenanceLoop(ctx, sched, store, cfg.Maint.IntervalMs)

	if !cfg.Disable.StartupIndex {
		scheduleStartupWork(ctx, sched, stack, adapter, store, cfg, log)
	}

	log.Info("indexd started", "photos_dir", flags.photosDir, "data_dir", flags.dataDir, "thumb_dir", flags.thumbDir)
	<-ctx.Done()
	log.Info("shutdown signal received, draining")
	return nil
}

// scheduleStartupWork implements the last two steps of spec.md §4.6: if
// the catalog is empty or a rebuild was interrupted mid-run (a resume
// cursor survives a restart), queue a full rebuild; either way queue the
// post-index backfill chain so missing dimensions/mtimes from a prior
// partial run get filled in once the system goes idle.
func scheduleStartupWork(ctx context.Context, sched *orchestrator.Scheduler, stack *workerStack, adapter *workerAdapter, store *catalog.Store, cfg *config.Config, log *slog.Logger) {
	empty, err := catalogIsEmpty(ctx, store)
	if err != nil {
		log.Warn("startup: failed to check catalog emptiness", "error", err)
	}
	_, hasResume, err := store.GetResumeCursor(ctx)
	if err != nil {
		log.Warn("startup: failed to read resume cursor", "error", err)
	}

	if empty || hasResume {
		go func() {
			opts := cfg.JobOptions(orchestrator.CategoryRebuild)
			if err := sched.RunWhenIdle(ctx, "startup-rebuild", adapter.TriggerFullRebuild, opts); err != nil {
				log.Warn("startup rebuild failed", "error", err)
			}
		}()
	}

	go func() {
		opts := cfg.JobOptions(orchestrator.CategoryBackfill)
		if err := sched.RunWhenIdle(ctx, orchestrator.PostIndexBackfillJobName, func(ctx context.Context) error {
			if _, err := stack.worker.BackfillMissingDimensions(ctx, sched); err != nil {
				return err
			}
			_, err := stack.worker.BackfillMissingMtime(ctx, sched)
			return err
		}, opts); err != nil {
			log.Warn("startup backfill failed", "error", err)
		}
	}()
}

// catalogIsEmpty reports whether the items table has no rows, spec.md
// §4.6's trigger for a first-run full rebuild.
func catalogIsEmpty(ctx context.Context, store *catalog.Store) (bool, error) {
	var empty bool
	err := store.WithTransaction(ctx, catalog.DBMain, catalog.TxDeferred, func(ctx context.Context, tx *catalog.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&n); err != nil {
			return err
		}
		empty = n == 0
		return nil
	})
	return empty, err
}
