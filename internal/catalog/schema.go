package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateMainSchema creates items/items_fts/thumb_status/album_covers in the
// main database. Tables are created inside a transaction; the FTS5 virtual
// table is created alongside them (SQLite allows this, unlike the
// teacher's vec0 extension which required a separate statement outside
// the transaction).
func (s *Store) CreateMainSchema(ctx context.Context) error {
	db := s.getConn(DBMain)
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return newErr(ErrConflict, "catalog.CreateMainSchema", err)
	}
	defer tx.Rollback()

	stmts := []string{
		createItemsTable,
		createItemsFTSTable,
		createThumbStatusTable,
		createAlbumCoversTable,
		createMigrationsTable,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_items_path ON items(path)`,
		`CREATE INDEX IF NOT EXISTS idx_items_type ON items(type)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_thumb_status_path ON thumb_status(path)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_album_covers_path ON album_covers(album_path)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create main schema: %w", err)
		}
	}

	if err := createFTSTriggers(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return newErr(ErrConflict, "catalog.CreateMainSchema.Commit", err)
	}
	return nil
}

// CreateIndexSchema creates index_status/index_progress in the index database.
func (s *Store) CreateIndexSchema(ctx context.Context) error {
	db := s.getConn(DBIndex)
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return newErr(ErrConflict, "catalog.CreateIndexSchema", err)
	}
	defer tx.Rollback()

	stmts := []string{
		createIndexStatusTable,
		createIndexProgressTable,
		createMigrationsTable,
		`INSERT OR IGNORE INTO index_status (id, status, processed_files, total_files, last_updated)
		 VALUES (1, 'idle', 0, 0, 0)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create index schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return newErr(ErrConflict, "catalog.CreateIndexSchema.Commit", err)
	}
	return nil
}

// Migrate applies CreateMainSchema/CreateIndexSchema idempotently and
// records the migration in the migrations ledger table, following the
// teacher's GetSchemaVersion/UpdateSchemaVersion pattern generalized to a
// multi-key ledger instead of a single version string.
func (s *Store) Migrate(ctx context.Context) error {
	applied, err := s.hasMigration(ctx, DBMain, "0001_main_schema")
	if err != nil {
		return err
	}
	if !applied {
		if err := s.CreateMainSchema(ctx); err != nil {
			return err
		}
		if err := s.recordMigration(ctx, DBMain, "0001_main_schema"); err != nil {
			return err
		}
	}

	applied, err = s.hasMigration(ctx, DBIndex, "0001_index_schema")
	if err != nil {
		return err
	}
	if !applied {
		if err := s.CreateIndexSchema(ctx); err != nil {
			return err
		}
		if err := s.recordMigration(ctx, DBIndex, "0001_index_schema"); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) hasMigration(ctx context.Context, name DBName, key string) (bool, error) {
	ok, err := s.HasTable(ctx, name, "migrations")
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	var n int
	err = s.getConn(name).QueryRowContext(ctx, `SELECT COUNT(*) FROM migrations WHERE key = ?`, key).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) recordMigration(ctx context.Context, name DBName, key string) error {
	_, err := s.getConn(name).ExecContext(ctx,
		`INSERT OR IGNORE INTO migrations (key, applied_at) VALUES (?, ?)`, key, time.Now().UnixMilli())
	return err
}

func createFTSTriggers(ctx context.Context, tx *sql.Tx) error {
	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS items_ad AFTER DELETE ON items BEGIN
			DELETE FROM items_fts WHERE rowid = old.id;
			DELETE FROM thumb_status WHERE path = old.path;
		END`,
	}
	for _, t := range triggers {
		if _, err := tx.ExecContext(ctx, t); err != nil {
			return fmt.Errorf("create fts triggers: %w", err)
		}
	}
	return nil
}

const createItemsTable = `
CREATE TABLE IF NOT EXISTS items (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	path TEXT NOT NULL,
	name TEXT NOT NULL,
	type TEXT NOT NULL,               -- album, photo, video
	mtime INTEGER NOT NULL,
	width INTEGER NOT NULL DEFAULT 0,
	height INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'ok',
	processing_state TEXT NOT NULL DEFAULT ''
)
`

const createItemsFTSTable = `
CREATE VIRTUAL TABLE IF NOT EXISTS items_fts USING fts5(
	name,
	tokenize = "unicode61 separators '._-/'"
)
`

const createThumbStatusTable = `
CREATE TABLE IF NOT EXISTS thumb_status (
	path TEXT NOT NULL,
	mtime INTEGER NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	last_checked INTEGER NOT NULL DEFAULT 0
)
`

const createAlbumCoversTable = `
CREATE TABLE IF NOT EXISTS album_covers (
	album_path TEXT NOT NULL,
	cover_path TEXT NOT NULL,
	width INTEGER NOT NULL DEFAULT 0,
	height INTEGER NOT NULL DEFAULT 0,
	mtime INTEGER NOT NULL DEFAULT 0
)
`

const createIndexStatusTable = `
CREATE TABLE IF NOT EXISTS index_status (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	status TEXT NOT NULL DEFAULT 'idle',
	processed_files INTEGER NOT NULL DEFAULT 0,
	total_files INTEGER NOT NULL DEFAULT 0,
	last_updated INTEGER NOT NULL DEFAULT 0
)
`

const createIndexProgressTable = `
CREATE TABLE IF NOT EXISTS index_progress (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
)
`

const createMigrationsTable = `
CREATE TABLE IF NOT EXISTS migrations (
	key TEXT PRIMARY KEY,
	applied_at INTEGER NOT NULL
)
`
