// Command indexd-migrate is the one-shot legacy-database migration stub
// named in spec.md §4.6 step 2. It detects whether a pre-split photos.db
// installation exists and reports what would be migrated; the actual
// row-copy into main.db/settings.db/history.db/index.db is the
// "SQLite-to-multi-DB one-shot migration" spec.md §1 places out of scope
// for this module, so it stops at detection and documents the contract
// the real tool would need to satisfy.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mediavault/indexd/internal/legacydb"
)

func main() {
	dataDir := flag.String("data-dir", "./data", "directory to inspect for a legacy photos.db")
	flag.Parse()

	status, err := legacydb.Detect(*dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "indexd-migrate: %v\n", err)
		os.Exit(1)
	}

	if !status.NeedsMigration() {
		if status.MultiDBExists {
			fmt.Println("multi-database catalog already present; nothing to do")
		} else {
			fmt.Println("no legacy database found; nothing to do")
		}
		return
	}

	fmt.Printf(`legacy %s found in %s with no multi-database catalog yet.

This tool only detects the need for migration; it does not copy rows. A
full implementation would, inside one transaction per destination
database:
  1. open the legacy single-file database read-only
  2. create main.db/settings.db/history.db/index.db via
     catalog.CreateMainSchema / CreateIndexSchema
  3. copy each legacy table's rows into its new home database
  4. verify row counts match before removing (or archiving) the legacy
     file

`, legacydb.LegacyFileName, *dataDir)
	os.Exit(1)
}
