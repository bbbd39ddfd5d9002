package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"strings"

	"github.com/fsintent/fsintent-server/internal/domain"
	"github.com/fsintent/fsintent-server/internal/store"
)

// watchColumns is the ordered list of columns selected in watch queries.
// Must match the scan order in scanWatch.
const watchColumns = `id, path, recursive, enabled, created_at, updated_at`

// scanWatch scans a sql.Row (or sql.Rows via its Scan method) into a
// domain.WatchRoot.
func scanWatch(scanner interface{ Scan(dest ...any) error }) (*domain.WatchRoot, error) {
	var w domain.WatchRoot

	var (
		recursive int
		enabled   int
		createdAt string
		updatedAt string
	)

	err := scanner.Scan(
		&w.ID,
		&w.Path,
		&recursive,
		&enabled,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	w.Recursive = recursive != 0
	w.Enabled = enabled != 0
	w.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	w.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}

	return &w, nil
}

// InsertWatch inserts a watch root into the snapshot.
// Returns store.ErrAlreadyExists if the ID or path is already present.
func (s *Store) InsertWatch(ctx context.Context, w *domain.WatchRoot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO watches (id, path, recursive, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		w.ID,
		w.Path,
		boolInt(w.Recursive),
		boolInt(w.Enabled),
		formatTime(w.CreatedAt),
		formatTime(w.UpdatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// ListWatches returns all snapshot watch roots.
func (s *Store) ListWatches(ctx context.Context) ([]*domain.WatchRoot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+watchColumns+` FROM watches ORDER BY path ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var watches []*domain.WatchRoot
	for rows.Next() {
		w, err := scanWatch(rows)
		if err != nil {
			return nil, err
		}
		watches = append(watches, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return watches, nil
}

// GetWatchByPath retrieves a snapshot watch root by path.
// Returns store.ErrNotFound if no such root exists.
func (s *Store) GetWatchByPath(ctx context.Context, path string) (*domain.WatchRoot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+watchColumns+` FROM watches WHERE path = ?`, path)

	w, err := scanWatch(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

// ImportWatches drains the source iterator into the snapshot.
// Returns the number of watch roots written.
func (s *Store) ImportWatches(ctx context.Context, src iter.Seq2[*domain.WatchRoot, error]) (int, error) {
	count := 0
	for w, err := range src {
		if err != nil {
			return count, fmt.Errorf("read watches: %w", err)
		}
		if err := s.InsertWatch(ctx, w); err != nil {
			return count, fmt.Errorf("insert watch %s: %w", w.ID, err)
		}
		count++
	}
	return count, nil
}

// boolInt converts a bool to the 0/1 form SQLite stores.
func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
