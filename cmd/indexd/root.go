// Command indexd indexes a photo/video library into the catalog
// database, watches it for changes, and runs the background maintenance
// and backfill jobs that keep items, items_fts, thumb_status and
// album_covers consistent with the filesystem. Grounded on the teacher's
// internal/cli/root.go + indexer_start.go/indexer_status.go split, one
// cobra subcommand per file, generalized from cortex's config-file-backed
// root command to this module's env-var-only configuration.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mediavault/indexd/internal/logging"
)

// globalFlags holds the persistent flags every subcommand reads, set up
// once in init() rather than threaded through cobra.Command.Context to
// match the teacher's package-level cfgFile/verbose var pattern.
type globalFlags struct {
	photosDir string
	dataDir   string
	thumbDir  string

	logLevel string
	logJSON  bool
	logFile  string
}

var flags globalFlags

var rootCmd = &cobra.Command{
	Use:   "indexd",
	Short: "indexd indexes and watches a photo/video library",
	Long: `indexd is the indexing and orchestration daemon for a self-hosted
photo/video library: it walks the photo root into a SQLite catalog,
watches it for filesystem changes, and runs the background dimension,
mtime and maintenance jobs that keep the catalog consistent.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flags.photosDir, "photos-dir", "./photos", "root directory of the photo/video library")
	rootCmd.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "./data", "directory holding the catalog's SQLite databases")
	rootCmd.PersistentFlags().StringVar(&flags.thumbDir, "thumb-dir", "./thumbnails", "root directory the thumbnail pipeline writes into")

	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&flags.logJSON, "log-json", false, "emit logs as JSON instead of text")
	rootCmd.PersistentFlags().StringVar(&flags.logFile, "log-file", "", "rotate logs to this file in addition to stderr")
}

// Execute runs the root command. Called by main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildLogger constructs the *slog.Logger every subcommand shares, plus
// a close function for the lumberjack.Logger backing its optional file
// output (a no-op if --log-file wasn't set) to call on shutdown.
func buildLogger() (*slog.Logger, func()) {
	opts := logging.DefaultOptions()
	opts.Level = flags.logLevel
	opts.JSON = flags.logJSON
	opts.FilePath = flags.logFile

	log, lj := logging.New(opts)
	closeFn := func() {}
	if lj != nil {
		closeFn = func() { _ = lj.Close() }
	}
	return log, closeFn
}
