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

// apiKeyColumns is the ordered list of columns selected in API key queries.
// Must match the scan order in scanAPIKey.
const apiKeyColumns = `id, name, hash, created_at, last_used_at`

// scanAPIKey scans a sql.Row (or sql.Rows via its Scan method) into a
// domain.APIKey.
func scanAPIKey(scanner interface{ Scan(dest ...any) error }) (*domain.APIKey, error) {
	var k domain.APIKey

	var (
		createdAt  string
		lastUsedAt sql.NullString
	)

	err := scanner.Scan(
		&k.ID,
		&k.Name,
		&k.Hash,
		&createdAt,
		&lastUsedAt,
	)
	if err != nil {
		return nil, err
	}

	k.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	if lastUsedAt.Valid && lastUsedAt.String != "" {
		k.LastUsedAt, err = parseTime(lastUsedAt.String)
		if err != nil {
			return nil, err
		}
	}

	return &k, nil
}

// InsertAPIKey inserts an API key record into the snapshot.
// Returns store.ErrAlreadyExists if the ID or name is already present.
func (s *Store) InsertAPIKey(ctx context.Context, k *domain.APIKey) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_keys (id, name, hash, created_at, last_used_at)
		VALUES (?, ?, ?, ?, ?)`,
		k.ID,
		k.Name,
		k.Hash,
		formatTime(k.CreatedAt),
		nullTimeString(k.LastUsedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// ListAPIKeys returns all snapshot API key records.
func (s *Store) ListAPIKeys(ctx context.Context) ([]*domain.APIKey, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []*domain.APIKey
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// ImportAPIKeys drains the source iterator into the snapshot.
// Returns the number of key records written.
func (s *Store) ImportAPIKeys(ctx context.Context, src iter.Seq2[*domain.APIKey, error]) (int, error) {
	count := 0
	for k, err := range src {
		if err != nil {
			return count, fmt.Errorf("read api keys: %w", err)
		}
		if err := s.InsertAPIKey(ctx, k); err != nil {
			return count, fmt.Errorf("insert api key %s: %w", k.ID, err)
		}
		count++
	}
	return count, nil
}
