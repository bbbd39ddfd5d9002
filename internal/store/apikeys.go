package store

import (
	"context"
	"fmt"
	"time"

	"github.com/fsintent/fsintent-server/internal/domain"
)

// CreateAPIKey persists a new API key record.
// Returns ErrAlreadyExists if the name is taken.
func (s *Store) CreateAPIKey(ctx context.Context, k *domain.APIKey) error {
	return s.APIKeys.Create(ctx, k.ID, k)
}

// GetAPIKey retrieves an API key record by ID.
func (s *Store) GetAPIKey(ctx context.Context, id string) (*domain.APIKey, error) {
	return s.APIKeys.Get(ctx, id)
}

// GetAPIKeyByName retrieves an API key record by its unique name.
func (s *Store) GetAPIKeyByName(ctx context.Context, name string) (*domain.APIKey, error) {
	return s.APIKeys.GetByIndex(ctx, "name", name)
}

// ListAPIKeys returns all API key records.
func (s *Store) ListAPIKeys(ctx context.Context) ([]*domain.APIKey, error) {
	var keys []*domain.APIKey

	for k, err := range s.APIKeys.List(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list api keys: %w", err)
		}
		keys = append(keys, k)
	}

	return keys, nil
}

// DeleteAPIKey removes an API key record. Idempotent.
func (s *Store) DeleteAPIKey(ctx context.Context, id string) error {
	return s.APIKeys.Delete(ctx, id)
}

// TouchAPIKey records that a key was just used to authenticate.
func (s *Store) TouchAPIKey(ctx context.Context, id string) error {
	k, err := s.APIKeys.Get(ctx, id)
	if err != nil {
		return err
	}

	k.LastUsedAt = time.Now()
	return s.APIKeys.Update(ctx, id, k)
}
