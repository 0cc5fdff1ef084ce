package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mediavault/indexd/internal/legacydb"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Detect a legacy single-database installation and report what migration is needed",
	Long: `migrate checks --data-dir for a pre-split photos.db installation. It
only detects and reports: the one-shot row-copy from the legacy single
database into main.db/settings.db/history.db/index.db is out of scope for
this module (see cmd/indexd-migrate).`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	status, err := legacydb.Detect(flags.dataDir)
	if err != nil {
		return fmt.Errorf("detect legacy database: %w", err)
	}

	switch {
	case !status.LegacyPresent && !status.MultiDBExists:
		fmt.Println("no database files found; nothing to migrate, a fresh catalog will be created on `indexd serve`")
	case status.MultiDBExists:
		fmt.Println("multi-database catalog already present; no migration needed")
	case status.NeedsMigration():
		fmt.Printf("legacy %s found with no multi-database catalog yet -- run cmd/indexd-migrate to perform the one-shot row copy\n", legacydb.LegacyFileName)
	}
	return nil
}
