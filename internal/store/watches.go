package store

import (
	"context"
	"fmt"

	"github.com/fsintent/fsintent-server/internal/domain"
	"github.com/fsintent/fsintent-server/internal/sse"
)

// CreateWatch persists a new watch root and announces it over SSE.
// Returns ErrAlreadyExists if the path is already covered by another root.
func (s *Store) CreateWatch(ctx context.Context, w *domain.WatchRoot) error {
	if err := s.Watches.Create(ctx, w.ID, w); err != nil {
		return err
	}

	s.eventEmitter.Emit(sse.NewWatchAddedEvent(w))
	return nil
}

// GetWatch retrieves a watch root by ID.
func (s *Store) GetWatch(ctx context.Context, id string) (*domain.WatchRoot, error) {
	return s.Watches.Get(ctx, id)
}

// GetWatchByPath retrieves a watch root by its directory path.
func (s *Store) GetWatchByPath(ctx context.Context, path string) (*domain.WatchRoot, error) {
	return s.Watches.GetByIndex(ctx, "path", path)
}

// ListWatches returns all watch roots.
func (s *Store) ListWatches(ctx context.Context) ([]*domain.WatchRoot, error) {
	var watches []*domain.WatchRoot

	for w, err := range s.Watches.List(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list watches: %w", err)
		}
		watches = append(watches, w)
	}

	return watches, nil
}

// UpdateWatch updates a watch root in place.
func (s *Store) UpdateWatch(ctx context.Context, w *domain.WatchRoot) error {
	w.Touch()
	return s.Watches.Update(ctx, w.ID, w)
}

// SetWatchEnabled pauses or resumes a watch root and announces the change.
func (s *Store) SetWatchEnabled(ctx context.Context, id string, enabled bool) (*domain.WatchRoot, error) {
	w, err := s.Watches.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if w.Enabled == enabled {
		return w, nil
	}

	w.Enabled = enabled
	w.Touch()
	if err := s.Watches.Update(ctx, id, w); err != nil {
		return nil, err
	}

	s.eventEmitter.Emit(sse.NewWatchToggledEvent(w))
	return w, nil
}

// DeleteWatch removes a watch root and announces the removal.
// Returns ErrNotFound if no such root exists.
func (s *Store) DeleteWatch(ctx context.Context, id string) error {
	w, err := s.Watches.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.Watches.Delete(ctx, id); err != nil {
		return err
	}

	s.eventEmitter.Emit(sse.NewWatchRemovedEvent(w.ID, w.Path))
	return nil
}
