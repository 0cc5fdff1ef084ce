package catalog

import (
	"context"
	"fmt"
)

// DefaultBatchChunkSize matches spec.md §4.1's "chunks of N (default
// 500-800)" guidance for the batch executor.
const DefaultBatchChunkSize = 600

// BatchOptions controls how Batch streams rows.
type BatchOptions struct {
	ChunkSize         int
	ManageTransaction bool // if true, Batch opens its own IMMEDIATE transaction
}

// Batch prepares sql once per chunk and streams rows through it, matching
// the teacher's ChunkWriter.WriteChunks/BulkInsertRelationships shape
// (storage/chunk_writer.go, storage/query_helpers.go): prepare, loop
// Exec, finalize, chunk-at-a-time. On failure within a caller-managed
// transaction the caller is responsible for rollback; when
// ManageTransaction is true, Batch rolls back and rethrows itself.
func (s *Store) Batch(ctx context.Context, name DBName, sqlStmt string, rows [][]any, opts BatchOptions) error {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultBatchChunkSize
	}
	if len(rows) == 0 {
		return nil
	}

	run := func(ctx context.Context, tx *Tx) error {
		for start := 0; start < len(rows); start += opts.ChunkSize {
			end := start + opts.ChunkSize
			if end > len(rows) {
				end = len(rows)
			}
			if err := s.execChunk(ctx, tx, sqlStmt, rows[start:end]); err != nil {
				return err
			}
		}
		return nil
	}

	if !opts.ManageTransaction {
		db := s.getConn(name)
		conn, err := db.Conn(ctx)
		if err != nil {
			return newErr(ErrConflict, "catalog.Batch", err)
		}
		defer conn.Close()
		return run(ctx, &Tx{conn: conn})
	}

	return s.WithTransaction(ctx, name, TxImmediate, run)
}

func (s *Store) execChunk(ctx context.Context, tx *Tx, sqlStmt string, rows [][]any) error {
	stmt, err := tx.PrepareContext(ctx, sqlStmt)
	if err != nil {
		return fmt.Errorf("prepare batch statement: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("exec batch row: %w", err)
		}
	}
	return nil
}
