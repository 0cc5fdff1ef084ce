package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

func builder() sq.StatementBuilderType {
	return sq.StatementBuilderType{}.PlaceholderFormat(sq.Question)
}

// UpdateItemColumns builds and runs a dynamic "UPDATE items SET col=?,...
// WHERE path=?" for one row via squirrel, matching the teacher's
// storage/query_helpers.go use of a query builder instead of hand-joined
// SQL for statements whose column set varies by caller (the dimension and
// mtime backfills each touch a different subset of items' columns).
func (s *Store) UpdateItemColumns(ctx context.Context, tx *Tx, path string, cols map[string]any) error {
	b := builder().Update("items").Where(sq.Eq{"path": path})
	for col, val := range cols {
		b = b.Set(col, val)
	}
	sqlStr, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("catalog.UpdateItemColumns: build: %w", err)
	}
	if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("catalog.UpdateItemColumns %q: %w", path, err)
	}
	return nil
}

// InClause builds a safe "column IN (?, ?, ...)" fragment plus its
// argument list for a chunk of values. Centralizing this avoids the
// teacher's ad hoc string-join call sites and keeps the LIKE-alignment bug
// named in spec.md §9 from recurring: callers must pass one CHUNK of
// values at a time, never the full set, so the returned args line up with
// the chunk's own placeholders only.
func InClause(column string, values []string) (string, []any) {
	placeholders := make([]string, len(values))
	args := make([]any, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		args[i] = v
	}
	return column + " IN (" + strings.Join(placeholders, ",") + ")", args
}

// Chunks splits values into groups of at most size, used by both batch
// writes and chunked deletes so every caller honors the same cap.
func Chunks(values []string, size int) [][]string {
	if size <= 0 {
		size = 500
	}
	var out [][]string
	for i := 0; i < len(values); i += size {
		end := i + size
		if end > len(values) {
			end = len(values)
		}
		out = append(out, values[i:end])
	}
	return out
}

// GetItemByPath returns the item row for an exact path, or ErrNotFound.
func (s *Store) GetItemByPath(ctx context.Context, tx *Tx, path string) (*Item, error) {
	row := tx.QueryRowContext(ctx, `SELECT id, path, name, type, mtime, width, height FROM items WHERE path = ?`, path)
	it := &Item{}
	var typ string
	if err := row.Scan(&it.ID, &it.Path, &it.Name, &typ, &it.Mtime, &it.Width, &it.Height); err != nil {
		if err == sql.ErrNoRows {
			return nil, newErr(ErrNotFound, "catalog.GetItemByPath", err)
		}
		return nil, err
	}
	it.Type = ItemType(typ)
	return it, nil
}

// NewestDescendantMedia returns the path/width/height/mtime of the most
// recently modified photo/video whose path is a descendant of albumPath,
// or ErrNotFound if the album has no media descendants.
func (s *Store) NewestDescendantMedia(ctx context.Context, tx *Tx, albumPath string) (*Item, error) {
	prefix := albumPath + "/%"
	row := tx.QueryRowContext(ctx, `
		SELECT id, path, name, type, mtime, width, height
		FROM items
		WHERE path LIKE ? AND type IN ('photo','video')
		ORDER BY mtime DESC, path DESC
		LIMIT 1`, prefix)
	it := &Item{}
	var typ string
	if err := row.Scan(&it.ID, &it.Path, &it.Name, &typ, &it.Mtime, &it.Width, &it.Height); err != nil {
		if err == sql.ErrNoRows {
			return nil, newErr(ErrNotFound, "catalog.NewestDescendantMedia", err)
		}
		return nil, err
	}
	it.Type = ItemType(typ)
	return it, nil
}

// GetIndexStatus reads the singleton index_status row.
func (s *Store) GetIndexStatus(ctx context.Context) (*IndexStatus, error) {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()
	row := s.getConn(DBIndex).QueryRowContext(ctx,
		`SELECT status, processed_files, total_files, last_updated FROM index_status WHERE id = 1`)
	st := &IndexStatus{}
	var phase string
	if err := row.Scan(&phase, &st.ProcessedFiles, &st.TotalFiles, &st.LastUpdated); err != nil {
		return nil, err
	}
	st.Status = IndexPhase(phase)
	return st, nil
}

// GetResumeCursor reads index_progress's last_processed_path key, if present.
func (s *Store) GetResumeCursor(ctx context.Context) (string, bool, error) {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()
	var v string
	err := s.getConn(DBIndex).QueryRowContext(ctx,
		`SELECT value FROM index_progress WHERE key = ?`, ProgressKeyLastProcessedPath).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}
