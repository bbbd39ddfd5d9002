package store

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/fsintent/fsintent-server/internal/domain"
)

// BatchWriter provides efficient bulk journal writes using BadgerDB's
// WriteBatch. Used by replay imports, where thousands of records land at
// once and the per-record duplicate check would only slow things down.
type BatchWriter struct {
	store     *Store
	batch     *badger.WriteBatch
	maxSize   int
	count     int
	autoFlush bool
}

// NewBatchWriter creates a new batch writer that will auto-flush when
// maxSize is reached. A maxSize of zero or less disables auto-flush; the
// caller commits with Flush.
func (s *Store) NewBatchWriter(maxSize int) *BatchWriter {
	return &BatchWriter{
		store:     s,
		batch:     s.db.NewWriteBatch(),
		maxSize:   maxSize,
		autoFlush: true,
	}
}

// AppendOperation adds a journal record to the batch.
// If autoFlush is enabled and the batch reaches maxSize, it flushes
// automatically.
func (b *BatchWriter) AppendOperation(ctx context.Context, rec *domain.OperationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal operation record: %w", err)
	}

	key := []byte(opPrefix + rec.ID)
	if err := b.batch.Set(key, data); err != nil {
		return fmt.Errorf("batch set operation: %w", err)
	}

	id := []byte(rec.ID)
	if err := b.batch.Set(opTimeKey(rec), id); err != nil {
		return fmt.Errorf("batch set time index: %w", err)
	}
	if err := b.batch.Set(opTypeKey(rec), id); err != nil {
		return fmt.Errorf("batch set type index: %w", err)
	}
	if err := b.batch.Set(opDetectorKey(rec), id); err != nil {
		return fmt.Errorf("batch set detector index: %w", err)
	}

	b.count++

	if b.autoFlush && b.maxSize > 0 && b.count >= b.maxSize {
		if err := b.Flush(); err != nil {
			return fmt.Errorf("auto flush: %w", err)
		}
	}

	return nil
}

// Flush commits all pending writes in the batch.
func (b *BatchWriter) Flush() error {
	if b.count == 0 {
		return nil // Nothing to flush
	}

	if err := b.batch.Flush(); err != nil {
		return fmt.Errorf("flush batch: %w", err)
	}

	if b.store.logger != nil {
		b.store.logger.LogAttrs(context.Background(), slog.LevelInfo, "batch flushed",
			slog.Int("count", b.count),
		)
	}

	// Reset for next batch
	b.count = 0
	b.batch = b.store.db.NewWriteBatch()

	return nil
}

// Cancel discards all pending writes in the batch.
func (b *BatchWriter) Cancel() {
	b.batch.Cancel()
	b.count = 0
}

// Count returns the number of records in the current batch.
func (b *BatchWriter) Count() int {
	return b.count
}
