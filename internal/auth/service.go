package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fsintent/fsintent-server/internal/domain"
	"github.com/fsintent/fsintent-server/internal/id"
	"github.com/fsintent/fsintent-server/internal/store"
)

// ErrInvalidCredentials is returned for a bad key ID or secret. One error
// covers both so responses don't reveal which half was wrong.
var ErrInvalidCredentials = errors.New("invalid key or secret")

// Service owns the API key lifecycle: creation, secret verification, token
// issue, and the revocation check on every verified token.
type Service struct {
	store  *store.Store
	tokens *TokenService
	logger *slog.Logger

	// bootstrapKey, when non-empty, is accepted as a credential until the
	// first real key is provisioned.
	bootstrapKey string
}

// NewService creates the auth service.
func NewService(st *store.Store, tokens *TokenService, bootstrapKey string, logger *slog.Logger) *Service {
	return &Service{
		store:        st,
		tokens:       tokens,
		bootstrapKey: bootstrapKey,
		logger:       logger,
	}
}

// CreateKey mints a named API key. The returned secret is shown exactly
// once; only its argon2id hash is stored.
func (s *Service) CreateKey(ctx context.Context, name string) (*domain.APIKey, string, error) {
	keyID, err := id.Generate(id.PrefixAPIKey)
	if err != nil {
		return nil, "", fmt.Errorf("generate key ID: %w", err)
	}

	secret, err := GenerateSecret()
	if err != nil {
		return nil, "", err
	}

	hash, err := HashSecret(secret)
	if err != nil {
		return nil, "", fmt.Errorf("hash secret: %w", err)
	}

	key := &domain.APIKey{
		ID:        keyID,
		Name:      name,
		Hash:      hash,
		CreatedAt: time.Now(),
	}

	if err := s.store.CreateAPIKey(ctx, key); err != nil {
		return nil, "", err
	}

	s.logger.Info("api key created", "key_id", key.ID, "name", key.Name)
	return key, secret, nil
}

// IssueToken verifies a key secret and returns a fresh access token along
// with the key it belongs to.
func (s *Service) IssueToken(ctx context.Context, keyID, secret string) (string, *domain.APIKey, error) {
	key, err := s.store.GetAPIKey(ctx, keyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("load api key: %w", err)
	}

	match, err := VerifySecret(key.Hash, secret)
	if err != nil {
		return "", nil, fmt.Errorf("verify secret: %w", err)
	}
	if !match {
		s.logger.Warn("rejected credentials", "key_id", keyID)
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateToken(key)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}

	// LastUsedAt is advisory; a failed touch must not block the login.
	if err := s.store.TouchAPIKey(ctx, key.ID); err != nil {
		s.logger.Warn("failed to record key use", "key_id", key.ID, "error", err)
	}

	return token, key, nil
}

// VerifyToken validates an access token and confirms the backing key still
// exists, so revoking a key cuts off its outstanding tokens.
func (s *Service) VerifyToken(ctx context.Context, tokenString string) (*AccessClaims, error) {
	claims, err := s.tokens.VerifyToken(tokenString)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.GetAPIKey(ctx, claims.KeyID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load api key: %w", err)
	}

	return claims, nil
}

// VerifyBootstrap reports whether the presented secret matches the first-run
// bootstrap key. The bootstrap key stops working as soon as a real key
// exists; it is a provisioning tool, not a credential to keep.
func (s *Service) VerifyBootstrap(ctx context.Context, secret string) (bool, error) {
	if s.bootstrapKey == "" || secret == "" {
		return false, nil
	}
	if subtle.ConstantTimeCompare([]byte(secret), []byte(s.bootstrapKey)) != 1 {
		return false, nil
	}

	keys, err := s.store.ListAPIKeys(ctx)
	if err != nil {
		return false, err
	}
	return len(keys) == 0, nil
}

// RequiresAuth reports whether the API should demand credentials. With no
// keys provisioned and no bootstrap key the daemon runs open, the usual
// posture for a first run on a trusted LAN.
func (s *Service) RequiresAuth(ctx context.Context) (bool, error) {
	if s.bootstrapKey != "" {
		return true, nil
	}

	keys, err := s.store.ListAPIKeys(ctx)
	if err != nil {
		return false, err
	}
	return len(keys) > 0, nil
}

// TokenTTL returns the configured access token lifetime.
func (s *Service) TokenTTL() time.Duration {
	return s.tokens.TokenTTL()
}

// ListKeys returns every provisioned key. Hashes ride along; the transport
// layer decides what leaves the process.
func (s *Service) ListKeys(ctx context.Context) ([]*domain.APIKey, error) {
	return s.store.ListAPIKeys(ctx)
}

// GetKey returns one key by ID.
func (s *Service) GetKey(ctx context.Context, keyID string) (*domain.APIKey, error) {
	return s.store.GetAPIKey(ctx, keyID)
}

// DeleteKey revokes a key. Outstanding tokens for it fail verification from
// this point on.
func (s *Service) DeleteKey(ctx context.Context, keyID string) error {
	if err := s.store.DeleteAPIKey(ctx, keyID); err != nil {
		return err
	}
	s.logger.Info("api key revoked", "key_id", keyID)
	return nil
}
