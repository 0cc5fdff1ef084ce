package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mediavault/indexd/internal/config"
	"github.com/mediavault/indexd/internal/health"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show catalog index status and health checks",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
}

// statusOutput is what `indexd status` reports: index_status and the
// health aggregator's report. The watcher's pending-change backlog is not
// included; this command runs in its own process, with no watcher.
type statusOutput struct {
	Index  indexStatusView `json:"index"`
	Health health.Report   `json:"health"`
}

type indexStatusView struct {
	Status         string `json:"status"`
	ProcessedFiles int    `json:"processed_files"`
	TotalFiles     int    `json:"total_files"`
	LastUpdated    string `json:"last_updated"`
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	idxStatus, err := store.GetIndexStatus(ctx)
	if err != nil {
		return fmt.Errorf("read index status: %w", err)
	}

	healthAgg := health.New(store, stack.registry,
		health.WorkerCheck("indexer", func(ctx context.Context) (bool, string) {
			if stack.worker.CriticalTaskRunning() {
				return true, "a critical task (rebuild or process_changes) is in flight"
			}
			return true, "idle"
		}),
	)
	report := healthAgg.Run(ctx)

	out := statusOutput{
		Index: indexStatusView{
			Status:         string(idxStatus.Status),
			ProcessedFiles: idxStatus.ProcessedFiles,
			TotalFiles:     idxStatus.TotalFiles,
			LastUpdated:    formatMillis(idxStatus.LastUpdated),
		},
		Health: report,
	}

	if statusJSON {
		return printStatusJSON(out)
	}
	return printStatusTable(out)
}

func printStatusJSON(out statusOutput) error {
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	fmt.Println(string(b))
	return nil
}

// printStatusTable renders the same report as a text/tabwriter table,
// following the teacher's internal/cli/indexer_status.go formatStatus/
// formatProject layout (fixed-width labeled lines, not a true grid).
func printStatusTable(out statusOutput) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "Index Status:")
	fmt.Fprintf(w, "  status:\t%s\n", out.Index.Status)
	fmt.Fprintf(w, "  processed:\t%d / %d\n", out.Index.ProcessedFiles, out.Index.TotalFiles)
	fmt.Fprintf(w, "  last updated:\t%s\n", out.Index.LastUpdated)
	fmt.Fprintln(w)

	overall := "healthy"
	if !out.Health.Healthy {
		overall = "unhealthy"
	}
	fmt.Fprintf(w, "Health (%s):\n", overall)
	for name, res := range out.Health.Checks {
		state := "ok"
		if !res.Healthy {
			state = "FAIL"
		}
		fmt.Fprintf(w, "  %s:\t%s\t%s\n", name, state, res.Message)
	}
	return w.Flush()
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return "never"
	}
	return time.UnixMilli(ms).Format(time.RFC3339)
}
