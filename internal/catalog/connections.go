package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DBName identifies one of the four logical databases.
type DBName string

const (
	DBMain     DBName = "main"
	DBSettings DBName = "settings"
	DBHistory  DBName = "history"
	DBIndex    DBName = "index"
)

// PragmaOptions controls the startup PRAGMAs applied to every connection,
// sourced from the SQLITE_* environment variables in spec.md §6.
type PragmaOptions struct {
	JournalMode  string        // default WAL
	Synchronous  string        // default NORMAL
	TempStore    string        // default MEMORY
	CacheSizeKB  int           // negative cache_size in KB, SQLite convention
	MmapSizeByte int64
	BusyTimeout  time.Duration // SQLITE_BUSY_TIMEOUT
	QueryTimeout time.Duration // SQLITE_QUERY_TIMEOUT, clamped [15s,60s]
}

// DefaultPragmaOptions mirrors the defaults named in spec.md §6.
func DefaultPragmaOptions() PragmaOptions {
	return PragmaOptions{
		JournalMode:  "WAL",
		Synchronous:  "NORMAL",
		TempStore:    "MEMORY",
		CacheSizeKB:  -20000,
		MmapSizeByte: 256 << 20,
		BusyTimeout:  5 * time.Second,
		QueryTimeout: 30 * time.Second,
	}
}

func (o PragmaOptions) clamp() PragmaOptions {
	if o.QueryTimeout < 15*time.Second {
		o.QueryTimeout = 15 * time.Second
	}
	if o.QueryTimeout > 60*time.Second {
		o.QueryTimeout = 60 * time.Second
	}
	return o
}

// Store owns the four logical SQLite connections and the primitives
// (transactions, batch writes, retry, busy-timeout handling) every caller
// in this module uses instead of touching *sql.DB directly.
type Store struct {
	dataDir string
	opts    PragmaOptions

	connsMu sync.RWMutex
	conns   map[DBName]*sql.DB
	depth   *txnDepth

	indexingInProgress func() bool // advisory flag consulted by the retry pre-delay

	metricsMu sync.Mutex
	metrics   BusyRetryCounters
}

// Open opens (creating if absent) the four logical database files under
// dataDir and applies the startup PRAGMAs to each connection.
func Open(dataDir string, opts PragmaOptions) (*Store, error) {
	opts = opts.clamp()
	s := &Store{
		dataDir: dataDir,
		opts:    opts,
		conns:   make(map[DBName]*sql.DB, 4),
		depth:   newTxnDepth(),
	}

	for _, name := range []DBName{DBMain, DBSettings, DBHistory, DBIndex} {
		db, err := s.openOne(name)
		if err != nil {
			s.Close()
			return nil, newErr(ErrSchemaMissing, "catalog.Open", fmt.Errorf("open %s: %w", name, err))
		}
		s.connsMu.Lock()
		s.conns[name] = db
		s.connsMu.Unlock()
	}
	return s, nil
}

func (s *Store) openOne(name DBName) (*sql.DB, error) {
	path := filepath.Join(s.dataDir, string(name)+".db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// Per-connection PRAGMAs only stick on the connection that ran them, so
	// the pool is pinned to exactly one connection: every call (direct
	// query or WithTransaction) shares it, matching spec.md's single-writer-
	// per-database invariant at the Go level too.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		fmt.Sprintf("PRAGMA journal_mode=%s", s.opts.JournalMode),
		fmt.Sprintf("PRAGMA synchronous=%s", s.opts.Synchronous),
		fmt.Sprintf("PRAGMA temp_store=%s", s.opts.TempStore),
		fmt.Sprintf("PRAGMA cache_size=%d", s.opts.CacheSizeKB),
		fmt.Sprintf("PRAGMA mmap_size=%d", s.opts.MmapSizeByte),
		fmt.Sprintf("PRAGMA busy_timeout=%d", s.opts.BusyTimeout.Milliseconds()),
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}
	return db, nil
}

// DB returns the raw handle for a logical database, for callers (e.g.
// settings/history external collaborators) that only need passthrough
// access, not the transaction/batch/retry machinery.
func (s *Store) DB(name DBName) *sql.DB { return s.getConn(name) }

// getConn returns the current connection for name, safe to call while
// reconnect is swapping it out on another goroutine.
func (s *Store) getConn(name DBName) *sql.DB {
	s.connsMu.RLock()
	defer s.connsMu.RUnlock()
	return s.conns[name]
}

// SetIndexingInProgress wires the advisory flag the retry wrapper consults
// for its first-attempt pre-delay (spec.md §4.1).
func (s *Store) SetIndexingInProgress(fn func() bool) { s.indexingInProgress = fn }

// Close closes all four connections, returning the first error encountered.
func (s *Store) Close() error {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	var first error
	for _, db := range s.conns {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// withQueryTimeout wraps ctx with the configured query deadline. It does
// not map the expiry itself: callers see the driver's context deadline
// error, which only WithTransaction's BEGIN/COMMIT classify as ErrTimeout.
func (s *Store) withQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.QueryTimeout)
}

// HasTable reports whether a table exists in the given logical database.
func (s *Store) HasTable(ctx context.Context, name DBName, table string) (bool, error) {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()
	var n int
	err := s.getConn(name).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type IN ('table','view') AND name = ?`, table).Scan(&n)
	if err != nil {
		return false, newErr(ErrSchemaMissing, "catalog.HasTable", err)
	}
	return n > 0, nil
}

// HasColumn reports whether a column exists on a table in the given logical database.
func (s *Store) HasColumn(ctx context.Context, name DBName, table, column string) (bool, error) {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()
	rows, err := s.getConn(name).QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, newErr(ErrSchemaMissing, "catalog.HasColumn", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid        int
			colName    string
			colType    string
			notNull    int
			dflt       sql.NullString
			primaryKey int
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &dflt, &primaryKey); err != nil {
			return false, err
		}
		if colName == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
