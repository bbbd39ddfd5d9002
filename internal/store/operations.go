package store

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/fsintent/fsintent-server/internal/domain"
	"github.com/fsintent/fsintent-server/internal/sse"
)

// Key prefixes for the operation journal. Every index embeds a zero-padded
// capture timestamp so a plain prefix scan comes back in time order.
const (
	opPrefix           = "op:"
	opByTimePrefix     = "idx:ops:time:"
	opByTypePrefix     = "idx:ops:type:"
	opByDetectorPrefix = "idx:ops:detector:"
)

// opTimestampLen is the fixed width of the timestamp segment in index keys.
const opTimestampLen = 20

// opTimestamp renders a capture time as a fixed-width sortable string.
// Zero-padded nanoseconds keep lexicographic and chronological order aligned.
func opTimestamp(t time.Time) string {
	return fmt.Sprintf("%020d", t.UTC().UnixNano())
}

func opTimeKey(rec *domain.OperationRecord) []byte {
	return fmt.Appendf(nil, "%s%s:%s", opByTimePrefix, opTimestamp(rec.DetectedAt), rec.ID)
}

func opTypeKey(rec *domain.OperationRecord) []byte {
	return fmt.Appendf(nil, "%s%s:%s:%s", opByTypePrefix, rec.Type.String(), opTimestamp(rec.DetectedAt), rec.ID)
}

func opDetectorKey(rec *domain.OperationRecord) []byte {
	return fmt.Appendf(nil, "%s%s:%s:%s", opByDetectorPrefix, rec.DetectorName, opTimestamp(rec.DetectedAt), rec.ID)
}

// AppendOperation journals one classified operation.
// Returns ErrAlreadyExists if a record with the same ID is already journaled.
func (s *Store) AppendOperation(ctx context.Context, rec *domain.OperationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.ID == "" {
		return ErrInvalidInput.WithMessage("operation record needs an ID")
	}

	key := []byte(opPrefix + rec.ID)

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal operation record: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return ErrAlreadyExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check existing operation: %w", err)
		}

		if err := txn.Set(key, data); err != nil {
			return err
		}

		id := []byte(rec.ID)
		if err := txn.Set(opTimeKey(rec), id); err != nil {
			return err
		}
		if err := txn.Set(opTypeKey(rec), id); err != nil {
			return err
		}
		return txn.Set(opDetectorKey(rec), id)
	})
	if err != nil {
		return err
	}

	if s.eventEmitter != nil {
		s.eventEmitter.Emit(sse.NewOperationDetectedEvent(rec))
	}

	// Index for search asynchronously
	if s.searchIndexer != nil {
		go func() {
			if err := s.searchIndexer.IndexOperation(context.Background(), rec); err != nil {
				if s.logger != nil {
					s.logger.Warn("failed to index operation for search", "operation_id", rec.ID, "error", err)
				}
			}
		}()
	}

	return nil
}

// GetOperation retrieves a journaled operation by ID.
func (s *Store) GetOperation(ctx context.Context, id string) (*domain.OperationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := buildKey(opPrefix, id)
	defer releaseKey(key)

	var rec domain.OperationRecord
	if err := s.get(key, &rec); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get operation: %w", err)
	}

	return &rec, nil
}

// OperationFilter narrows a journal listing. Zero values mean "no filter".
type OperationFilter struct {
	// Since and Until bound the capture time, inclusive on Since and
	// exclusive on Until.
	Since time.Time
	Until time.Time

	// Type keeps only operations of one classification. The engine never
	// produces OpUnknown, so the zero value means unfiltered.
	Type domain.OperationType

	// Detector keeps only operations produced by the named detector.
	Detector string

	// PathContains keeps only operations whose affected paths contain the
	// substring.
	PathContains string
}

func (f OperationFilter) matches(rec *domain.OperationRecord) bool {
	if f.Type != domain.OpUnknown && rec.Type != f.Type {
		return false
	}
	if f.Detector != "" && rec.DetectorName != f.Detector {
		return false
	}
	if !f.Since.IsZero() && rec.DetectedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !rec.DetectedAt.Before(f.Until) {
		return false
	}
	if f.PathContains != "" {
		found := false
		for _, p := range rec.AffectedPaths {
			if strings.Contains(p, f.PathContains) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// scanPrefix picks the narrowest index for the filter. Every index is
// time-ordered past its prefix, so whichever one is chosen the scan comes
// back newest-first.
func (f OperationFilter) scanPrefix() string {
	switch {
	case f.Detector != "":
		return opByDetectorPrefix + f.Detector + ":"
	case f.Type != domain.OpUnknown:
		return opByTypePrefix + f.Type.String() + ":"
	default:
		return opByTimePrefix
	}
}

// ListOperations returns journaled operations newest-first.
func (s *Store) ListOperations(ctx context.Context, filter OperationFilter, params PaginationParams) (*PaginatedResult[*domain.OperationRecord], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	params.Validate()

	prefix := []byte(filter.scanPrefix())

	startKey, err := DecodeCursor(params.Cursor)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}

	// The reverse scan starts at the upper bound: the cursor key from the
	// previous page, or the newest key the Until bound allows.
	var seekKey []byte
	if startKey != "" {
		seekKey = []byte(startKey)
	} else if !filter.Until.IsZero() {
		seekKey = append(append([]byte{}, prefix...), opTimestamp(filter.Until)+"\xff"...)
	} else {
		seekKey = append(append([]byte{}, prefix...), 0xff)
	}

	var sinceTS string
	if !filter.Since.IsZero() {
		sinceTS = opTimestamp(filter.Since)
	}

	var records []*domain.OperationRecord
	var lastKey string
	var hasMore bool

	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = true
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(seekKey)
		// Skip the cursor key itself, already returned on the previous page.
		if startKey != "" && it.ValidForPrefix(prefix) && string(it.Item().Key()) == startKey {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			key := string(it.Item().Key())
			remainder := key[len(prefix):]
			if len(remainder) < opTimestampLen+2 {
				continue
			}

			// Scanning newest to oldest, everything past the Since bound
			// is older still.
			if sinceTS != "" && remainder[:opTimestampLen] < sinceTS {
				break
			}

			id := remainder[opTimestampLen+1:]

			item, err := txn.Get([]byte(opPrefix + id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("get operation %s: %w", id, err)
			}

			var rec domain.OperationRecord
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("unmarshal operation %s: %w", id, err)
			}

			if !filter.matches(&rec) {
				continue
			}

			if len(records) == params.Limit {
				// One more match past the limit proves another page exists.
				hasMore = true
				break
			}

			records = append(records, &rec)
			lastKey = key
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}

	result := &PaginatedResult[*domain.OperationRecord]{
		Items:   records,
		HasMore: hasMore,
	}
	if hasMore && lastKey != "" {
		result.NextCursor = EncodeCursor(lastKey)
	}

	return result, nil
}

// CountByType returns the number of journaled operations per classification.
func (s *Store) CountByType(ctx context.Context) (map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	prefix := []byte(opByTypePrefix)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			remainder := string(it.Item().Key())[len(opByTypePrefix):]
			typeName, _, ok := strings.Cut(remainder, ":")
			if !ok {
				continue
			}
			counts[typeName]++
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("count operations by type: %w", err)
	}

	return counts, nil
}

// PruneBefore removes journaled operations captured before the cutoff and
// returns how many were removed.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	cutoffTS := opTimestamp(cutoff)
	prefix := []byte(opByTimePrefix)
	var ids []string

	// First pass: collect IDs past retention from the time index.
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			remainder := string(it.Item().Key())[len(opByTimePrefix):]
			if len(remainder) < opTimestampLen+2 {
				continue
			}
			if remainder[:opTimestampLen] >= cutoffTS {
				break
			}

			ids = append(ids, remainder[opTimestampLen+1:])
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("find operations to prune: %w", err)
	}

	if len(ids) == 0 {
		return 0, nil
	}

	// Second pass: delete each record and its index keys. WriteBatch splits
	// oversized transactions on its own.
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	pruned := 0
	for _, id := range ids {
		rec, err := s.GetOperation(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return pruned, err
		}

		for _, key := range [][]byte{
			[]byte(opPrefix + id),
			opTimeKey(rec),
			opTypeKey(rec),
			opDetectorKey(rec),
		} {
			if err := wb.Delete(key); err != nil {
				return pruned, fmt.Errorf("prune operation %s: %w", id, err)
			}
		}
		pruned++
	}

	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("flush prune batch: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("journal pruned", "removed", pruned, "cutoff", cutoff)
	}
	if s.eventEmitter != nil && pruned > 0 {
		s.eventEmitter.Emit(sse.NewJournalPrunedEvent(pruned, cutoff))
	}

	// Drop pruned records from search asynchronously
	if s.searchIndexer != nil && pruned > 0 {
		go func() {
			for _, id := range ids {
				if err := s.searchIndexer.DeleteOperation(context.Background(), id); err != nil {
					if s.logger != nil {
						s.logger.Warn("failed to remove pruned operation from search", "operation_id", id, "error", err)
					}
				}
			}
		}()
	}

	return pruned, nil
}
