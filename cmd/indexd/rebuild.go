package main

import (
	"context"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/mediavault/indexd/internal/catalog"
	"github.com/mediavault/indexd/internal/config"
)

var rebuildProgress bool

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Run a full catalog rebuild synchronously, bypassing the idle scheduler",
	Long: `rebuild walks --photos-dir into the catalog right now, on the calling
goroutine, instead of going through the background scheduler's idle
gating -- an explicit operator action for restoring or repopulating a
catalog without waiting for the system to go idle.`,
	RunE: runRebuild,
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
	rebuildCmd.Flags().BoolVar(&rebuildProgress, "progress", false, "render a progress bar while rebuilding")
}

func runRebuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

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

	stack, err := buildWorkerStack(store, cfg, log, newSlogSink(log))
	if err != nil {
		return err
	}
	defer stack.Close()

	var stopProgress func()
	if rebuildProgress {
		stopProgress = runProgressBar(ctx, store)
	}

	stats, err := stack.worker.RebuildIndex(ctx)
	if stopProgress != nil {
		stopProgress()
	}
	if err != nil {
		return fmt.Errorf("rebuild: %w", err)
	}

	fmt.Printf("rebuild complete: %d/%d files processed\n", stats.ProcessedFiles, stats.TotalFiles)
	return nil
}

// runProgressBar polls index_status while a rebuild runs in another
// goroutine and renders a progressbar.v3 bar, grounded on the teacher's
// CLIProgressReporter.OnFileProcessingStart/OnFileProcessed (same
// options: width 40, show count/rate, throttled redraw, finish on
// completion) -- retargeted from a push callback to a poll loop since
// internal/indexer.Worker reports progress through index_status rows, not
// a per-file hook.
func runProgressBar(ctx context.Context, store *catalog.Store) func() {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("Rebuilding catalog"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files/s"),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() { fmt.Println() }),
	)

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(150 * time.Millisecond)
		defer ticker.Stop()
		lastProcessed := 0
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				status, err := store.GetIndexStatus(ctx)
				if err != nil {
					continue
				}
				if status.TotalFiles > 0 {
					bar.ChangeMax(status.TotalFiles)
				}
				if delta := status.ProcessedFiles - lastProcessed; delta > 0 {
					bar.Add(delta)
					lastProcessed = status.ProcessedFiles
				}
			}
		}
	}()

	return func() {
		close(done)
		bar.Finish()
	}
}
