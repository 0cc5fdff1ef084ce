// Package legacydb detects a pre-multi-database installation: a single
// photos.db file from before the catalog was split into main/settings/
// history/index. Its row-copy migration logic is named out of scope in
// spec.md §1 ("the SQLite-to-multi-DB one-shot migration") -- this package
// only answers "is a migration needed", the detection half the startup
// sequence (spec.md §4.6 step 2) and `indexd-migrate` both depend on.
package legacydb

import (
	"fmt"
	"os"
	"path/filepath"
)

// LegacyFileName is the single-database file a pre-split installation
// left behind in the data directory.
const LegacyFileName = "photos.db"

// MultiDBFileNames are the four files a migrated (or fresh) installation
// has instead.
var MultiDBFileNames = []string{"main.db", "settings.db", "history.db", "index.db"}

// Status reports what legacydb.Detect found in a data directory.
type Status struct {
	LegacyPresent bool
	MultiDBExists bool
}

// NeedsMigration reports whether a one-shot legacy migration should run:
// the old single file is present and none of the new files exist yet. If
// both are present, a previous migration run is assumed to have completed
// (or been aborted after creating the new files) and no migration is
// attempted again -- re-running a partial migration over live data is
// exactly the "actual row-copy logic" spec.md excludes from this module's
// scope.
func (s Status) NeedsMigration() bool {
	return s.LegacyPresent && !s.MultiDBExists
}

// Detect inspects dataDir for the legacy single file and the multi-db
// files, per spec.md §4.6 step 2 ("if legacy single-DB present without
// multi-DB files, run a one-shot migration, otherwise skip").
func Detect(dataDir string) (Status, error) {
	legacyPresent, err := exists(filepath.Join(dataDir, LegacyFileName))
	if err != nil {
		return Status{}, fmt.Errorf("legacydb: stat legacy file: %w", err)
	}

	multiExists := false
	for _, name := range MultiDBFileNames {
		ok, err := exists(filepath.Join(dataDir, name))
		if err != nil {
			return Status{}, fmt.Errorf("legacydb: stat %s: %w", name, err)
		}
		if ok {
			multiExists = true
			break
		}
	}

	return Status{LegacyPresent: legacyPresent, MultiDBExists: multiExists}, nil
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
