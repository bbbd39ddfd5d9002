package sqlite

import (
	"context"
	"database/sql"
	"encoding/json/v2"
	"fmt"
	"iter"
	"strings"

	"github.com/fsintent/fsintent-server/internal/domain"
	"github.com/fsintent/fsintent-server/internal/store"
)

// operationColumns is the ordered list of columns selected in operation
// queries. Must match the scan order in scanOperation.
const operationColumns = `id, batch_id, watch_root, type, primary_path, detector_name,
	affected_paths, matched_events, batch_size, detected_at`

// scanOperation scans a sql.Row (or sql.Rows via its Scan method) into a
// domain.OperationRecord.
func scanOperation(scanner interface{ Scan(dest ...any) error }) (*domain.OperationRecord, error) {
	var rec domain.OperationRecord

	var (
		watchRoot     sql.NullString
		typeName      string
		affectedPaths string
		matchedEvents string
		detectedAt    string
	)

	err := scanner.Scan(
		&rec.ID,
		&rec.BatchID,
		&watchRoot,
		&typeName,
		&rec.PrimaryPath,
		&rec.DetectorName,
		&affectedPaths,
		&matchedEvents,
		&rec.BatchSize,
		&detectedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Type, err = domain.ParseOperationType(typeName)
	if err != nil {
		return nil, err
	}
	rec.DetectedAt, err = parseTime(detectedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(affectedPaths), &rec.AffectedPaths); err != nil {
		return nil, fmt.Errorf("unmarshal affected paths: %w", err)
	}
	if err := json.Unmarshal([]byte(matchedEvents), &rec.MatchedEvents); err != nil {
		return nil, fmt.Errorf("unmarshal matched events: %w", err)
	}

	if watchRoot.Valid {
		rec.WatchRoot = watchRoot.String
	}

	return &rec, nil
}

// InsertOperation inserts one journaled operation into the snapshot.
// Returns store.ErrAlreadyExists if the ID is already present.
func (s *Store) InsertOperation(ctx context.Context, rec *domain.OperationRecord) error {
	pathsJSON, err := json.Marshal(rec.AffectedPaths)
	if err != nil {
		return fmt.Errorf("marshal affected paths: %w", err)
	}
	eventsJSON, err := json.Marshal(rec.MatchedEvents)
	if err != nil {
		return fmt.Errorf("marshal matched events: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO operations (
			id, batch_id, watch_root, type, primary_path, detector_name,
			affected_paths, matched_events, batch_size, detected_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.BatchID,
		nullString(rec.WatchRoot),
		rec.Type.String(),
		rec.PrimaryPath,
		rec.DetectorName,
		string(pathsJSON),
		string(eventsJSON),
		rec.BatchSize,
		formatTime(rec.DetectedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// GetOperation retrieves a snapshot operation by ID.
// Returns store.ErrNotFound if the operation does not exist.
func (s *Store) GetOperation(ctx context.Context, id string) (*domain.OperationRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+operationColumns+` FROM operations WHERE id = ?`, id)

	rec, err := scanOperation(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListOperations returns snapshot operations newest-first, up to limit.
func (s *Store) ListOperations(ctx context.Context, limit int) ([]*domain.OperationRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+operationColumns+` FROM operations ORDER BY detected_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.OperationRecord
	for rows.Next() {
		rec, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// CountOperations returns the number of operations in the snapshot.
func (s *Store) CountOperations(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM operations`).Scan(&n)
	return n, err
}

// CountByType returns operation counts grouped by classification name.
func (s *Store) CountByType(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT type, COUNT(*) FROM operations GROUP BY type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, err
		}
		counts[name] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

// ImportOperations drains the source iterator into the snapshot inside a
// single transaction. Returns the number of operations written.
func (s *Store) ImportOperations(ctx context.Context, src iter.Seq2[*domain.OperationRecord, error]) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO operations (
			id, batch_id, watch_root, type, primary_path, detector_name,
			affected_paths, matched_events, batch_size, detected_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	count := 0
	for rec, err := range src {
		if err != nil {
			return count, fmt.Errorf("read journal: %w", err)
		}
		if ctx.Err() != nil {
			return count, ctx.Err()
		}

		pathsJSON, err := json.Marshal(rec.AffectedPaths)
		if err != nil {
			return count, fmt.Errorf("marshal affected paths for %s: %w", rec.ID, err)
		}
		eventsJSON, err := json.Marshal(rec.MatchedEvents)
		if err != nil {
			return count, fmt.Errorf("marshal matched events for %s: %w", rec.ID, err)
		}

		if _, err := stmt.ExecContext(ctx,
			rec.ID,
			rec.BatchID,
			nullString(rec.WatchRoot),
			rec.Type.String(),
			rec.PrimaryPath,
			rec.DetectorName,
			string(pathsJSON),
			string(eventsJSON),
			rec.BatchSize,
			formatTime(rec.DetectedAt),
		); err != nil {
			return count, fmt.Errorf("insert operation %s: %w", rec.ID, err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("operations exported to snapshot", "count", count)
	}
	return count, nil
}
