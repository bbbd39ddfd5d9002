package store

import (
	"context"
	"encoding/json/v2"
	"iter"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/fsintent/fsintent-server/internal/domain"
)

// StreamOperations returns an iterator over the whole journal in capture
// order, for exports.
func (s *Store) StreamOperations(ctx context.Context) iter.Seq2[*domain.OperationRecord, error] {
	return func(yield func(*domain.OperationRecord, error) bool) {
		_ = s.db.View(func(txn *badger.Txn) error {
			prefix := []byte(opByTimePrefix)

			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			opts.PrefetchValues = false

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				if ctx.Err() != nil {
					yield(nil, ctx.Err())
					return ctx.Err()
				}

				remainder := string(it.Item().Key())[len(opByTimePrefix):]
				if len(remainder) < opTimestampLen+2 {
					continue
				}
				id := remainder[opTimestampLen+1:]

				item, err := txn.Get([]byte(opPrefix + id))
				if err != nil {
					if !yield(nil, err) {
						return nil
					}
					continue
				}

				var rec domain.OperationRecord
				err = item.Value(func(val []byte) error {
					return json.Unmarshal(val, &rec)
				})
				if err != nil {
					if !yield(nil, err) {
						return nil
					}
					continue
				}

				if !yield(&rec, nil) {
					return nil
				}
			}

			return nil
		})
	}
}

// StreamWatches returns an iterator over all watch roots.
func (s *Store) StreamWatches(ctx context.Context) iter.Seq2[*domain.WatchRoot, error] {
	return streamEntities[domain.WatchRoot](s.db, ctx, "watch:")
}

// StreamAPIKeys returns an iterator over all API key records.
func (s *Store) StreamAPIKeys(ctx context.Context) iter.Seq2[*domain.APIKey, error] {
	return streamEntities[domain.APIKey](s.db, ctx, "apikey:")
}

// streamEntities is a generic streaming iterator for any entity type.
func streamEntities[T any](db *badger.DB, ctx context.Context, prefix string) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		_ = db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(prefix)
			opts.PrefetchValues = true

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				if ctx.Err() != nil {
					yield(nil, ctx.Err())
					return ctx.Err()
				}

				// Skip index keys
				key := string(it.Item().Key())
				if strings.HasPrefix(key[len(prefix):], "idx:") {
					continue
				}

				var entity T
				err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &entity)
				})

				if err != nil {
					if !yield(nil, err) {
						return nil
					}
					continue
				}

				if !yield(&entity, nil) {
					return nil
				}
			}

			return nil
		})
	}
}
