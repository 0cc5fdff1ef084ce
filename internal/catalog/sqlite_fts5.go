//go:build fts5 || sqlite_fts5

// Package catalog requires FTS5 support for the items_fts virtual table.
// Build with -tags="fts5" or -tags="sqlite_fts5".
//
// Note: mattn/go-sqlite3 automatically enables FTS5 when these build tags
// are present. See: github.com/mattn/go-sqlite3/sqlite3_opt_fts5.go
package catalog

import (
	_ "github.com/mattn/go-sqlite3"
)
