package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/fsintent/fsintent-server/internal/auth"
	"github.com/fsintent/fsintent-server/internal/domain"
)

func (s *Server) registerAuthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "issueToken",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/token",
		Summary:     "Issue access token",
		Description: "Exchanges an API key secret for a short-lived PASETO access token",
		Tags:        []string{"Authentication"},
	}, s.handleIssueToken)

	huma.Register(s.api, huma.Operation{
		OperationID: "createAPIKey",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/keys",
		Summary:     "Create API key",
		Description: "Creates a named API key. The secret is returned once and never stored.",
		Tags:        []string{"Authentication"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCreateKey)

	huma.Register(s.api, huma.Operation{
		OperationID: "listAPIKeys",
		Method:      http.MethodGet,
		Path:        "/api/v1/auth/keys",
		Summary:     "List API keys",
		Description: "Returns all API keys without their secrets",
		Tags:        []string{"Authentication"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListKeys)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteAPIKey",
		Method:      http.MethodDelete,
		Path:        "/api/v1/auth/keys/{id}",
		Summary:     "Delete API key",
		Description: "Revokes an API key. Tokens issued against it stop verifying.",
		Tags:        []string{"Authentication"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteKey)
}

// === DTOs ===

// IssueTokenRequest is the request body for issuing a token.
type IssueTokenRequest struct {
	KeyID  string `json:"key_id" validate:"required" doc:"API key ID"`
	Secret string `json:"secret" validate:"required" doc:"API key secret"`
}

// IssueTokenInput wraps the token request for Huma.
type IssueTokenInput struct {
	Body IssueTokenRequest
}

// IssueTokenResponse contains the issued token.
type IssueTokenResponse struct {
	Token     string    `json:"token" doc:"PASETO v4.local access token"`
	ExpiresAt time.Time `json:"expires_at" doc:"Token expiry time"`
}

// IssueTokenOutput wraps the token response for Huma.
type IssueTokenOutput struct {
	Body IssueTokenResponse
}

// APIKeyResponse contains API key data in API responses. The secret never
// appears here; see CreateKeyResponse.
type APIKeyResponse struct {
	ID         string    `json:"id" doc:"Key ID"`
	Name       string    `json:"name" doc:"Key name"`
	CreatedAt  time.Time `json:"created_at" doc:"Creation time"`
	LastUsedAt time.Time `json:"last_used_at,omitzero" doc:"Last successful use"`
}

// CreateKeyRequest is the request body for creating an API key.
type CreateKeyRequest struct {
	Name string `json:"name" validate:"required,min=1,max=64" doc:"Key name, unique per server"`

	// BootstrapSecret provisions the first key on a locked-down server:
	// it is accepted only while the configured bootstrap key is active,
	// which ends the moment a real key exists.
	BootstrapSecret string `json:"bootstrap_secret,omitempty" doc:"First-run bootstrap secret"`
}

// CreateKeyInput wraps the create key request for Huma.
type CreateKeyInput struct {
	Body CreateKeyRequest
}

// CreateKeyResponse returns the new key and its secret, shown exactly once.
type CreateKeyResponse struct {
	Key    APIKeyResponse `json:"key" doc:"The created key"`
	Secret string         `json:"secret" doc:"Key secret; store it now, it is not retrievable"`
}

// CreateKeyOutput wraps the create key response for Huma.
type CreateKeyOutput struct {
	Body CreateKeyResponse
}

// ListKeysResponse contains all API keys.
type ListKeysResponse struct {
	Keys []APIKeyResponse `json:"keys" doc:"Registered API keys"`
}

// ListKeysOutput wraps the list keys response for Huma.
type ListKeysOutput struct {
	Body ListKeysResponse
}

// DeleteKeyInput identifies the key to delete.
type DeleteKeyInput struct {
	ID string `path:"id" doc:"Key ID"`
}

// === Handlers ===

func (s *Server) handleIssueToken(ctx context.Context, input *IssueTokenInput) (*IssueTokenOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	token, _, err := s.services.Auth.IssueToken(ctx, input.Body.KeyID, input.Body.Secret)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return nil, huma.Error401Unauthorized("Invalid key or secret")
		}
		s.logger.Error("token issue failed", "error", err)
		return nil, huma.Error500InternalServerError("failed to issue token")
	}

	return &IssueTokenOutput{Body: IssueTokenResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(s.services.Auth.TokenTTL()),
	}}, nil
}

func (s *Server) handleCreateKey(ctx context.Context, input *CreateKeyInput) (*CreateKeyOutput, error) {
	bootstrapped, err := s.services.Auth.VerifyBootstrap(ctx, input.Body.BootstrapSecret)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to check bootstrap state")
	}
	if !bootstrapped {
		if err := s.authorize(ctx); err != nil {
			return nil, err
		}
	}
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	key, secret, err := s.services.Auth.CreateKey(ctx, input.Body.Name)
	if err != nil {
		return nil, err
	}

	return &CreateKeyOutput{Body: CreateKeyResponse{
		Key:    toKeyResponse(key),
		Secret: secret,
	}}, nil
}

func (s *Server) handleListKeys(ctx context.Context, _ *struct{}) (*ListKeysOutput, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}

	keys, err := s.services.Auth.ListKeys(ctx)
	if err != nil {
		return nil, err
	}

	resp := ListKeysResponse{Keys: make([]APIKeyResponse, 0, len(keys))}
	for _, key := range keys {
		resp.Keys = append(resp.Keys, toKeyResponse(key))
	}
	return &ListKeysOutput{Body: resp}, nil
}

func (s *Server) handleDeleteKey(ctx context.Context, input *DeleteKeyInput) (*struct{}, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}

	if err := s.services.Auth.DeleteKey(ctx, input.ID); err != nil {
		return nil, err
	}
	return nil, nil
}

func toKeyResponse(key *domain.APIKey) APIKeyResponse {
	return APIKeyResponse{
		ID:         key.ID,
		Name:       key.Name,
		CreatedAt:  key.CreatedAt,
		LastUsedAt: key.LastUsedAt,
	}
}
