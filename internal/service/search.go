package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fsintent/fsintent-server/internal/domain"
	"github.com/fsintent/fsintent-server/internal/search"
	"github.com/fsintent/fsintent-server/internal/store"
)

// SearchService bridges the search index with the operation journal.
// It satisfies the store's SearchIndexer interface so journal appends and
// prunes keep the index in step, and it can re-drain the whole journal
// after a mapping change.
type SearchService struct {
	index  *search.SearchIndex
	store  *store.Store
	logger *slog.Logger
}

// NewSearchService creates a new search service.
func NewSearchService(index *search.SearchIndex, st *store.Store, logger *slog.Logger) *SearchService {
	return &SearchService{
		index:  index,
		store:  st,
		logger: logger,
	}
}

// Search executes a query against the operation index.
func (s *SearchService) Search(ctx context.Context, params search.SearchParams) (*search.SearchResult, error) {
	return s.index.Search(ctx, params)
}

// IndexOperation indexes a single journal record.
// Call this when a record is appended.
func (s *SearchService) IndexOperation(_ context.Context, rec *domain.OperationRecord) error {
	doc := search.RecordToSearchDocument(rec)

	if err := s.index.IndexDocument(doc); err != nil {
		return fmt.Errorf("index document: %w", err)
	}

	s.logger.Debug("indexed operation", "id", rec.ID, "type", rec.Type.String())
	return nil
}

// DeleteOperation removes a journal record from the index.
func (s *SearchService) DeleteOperation(_ context.Context, id string) error {
	return s.index.DeleteDocument(id)
}

// DocumentCount returns the number of indexed operations.
func (s *SearchService) DocumentCount() (uint64, error) {
	return s.index.DocumentCount()
}

// ReindexAll rebuilds the search index from the journal.
// This is a heavy operation - use sparingly.
func (s *SearchService) ReindexAll(ctx context.Context) error {
	s.logger.Info("starting full reindex")

	// Rebuild index (drops existing)
	if err := s.index.Rebuild(); err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}

	// Drain the journal in chunks so a large history doesn't have to fit
	// in memory all at once.
	const chunkSize = 500

	docs := make([]*search.SearchDocument, 0, chunkSize)
	indexed := 0

	flush := func() error {
		if len(docs) == 0 {
			return nil
		}
		if err := s.index.IndexDocuments(docs); err != nil {
			return fmt.Errorf("index operations: %w", err)
		}
		indexed += len(docs)
		docs = docs[:0]
		return nil
	}

	for rec, err := range s.store.StreamOperations(ctx) {
		if err != nil {
			return fmt.Errorf("stream journal: %w", err)
		}
		docs = append(docs, search.RecordToSearchDocument(rec))
		if len(docs) >= chunkSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	s.logger.Info("full reindex complete", "total_documents", indexed)
	return nil
}
