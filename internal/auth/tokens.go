package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json/v2"
	"fmt"
	"time"

	"aidanwoods.dev/go-paseto"

	"github.com/fsintent/fsintent-server/internal/domain"
	"github.com/fsintent/fsintent-server/internal/id"
)

const (
	tokenIssuer   = "fsintent-server"
	tokenAudience = "fsintent-client"

	// PASETO v4 symmetric key requirement.
	keyBytesSize = 32 // 256 bits

	// API key secrets carry 256 bits of entropy.
	secretSize = 32
)

// TokenService handles PASETO token generation and verification.
type TokenService struct {
	symmetricKey paseto.V4SymmetricKey
	tokenTTL     time.Duration
}

// NewTokenService creates a token service from a raw 32-byte symmetric key,
// normally the one LoadOrGenerateKey persisted under the data directory.
func NewTokenService(key []byte, tokenTTL time.Duration) (*TokenService, error) {
	if len(key) != keyBytesSize {
		return nil, fmt.Errorf("PASETO v4 key must be exactly %d bytes, got %d", keyBytesSize, len(key))
	}

	symKey, err := paseto.V4SymmetricKeyFromBytes(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create PASETO symmetric key: %w", err)
	}

	return &TokenService{
		symmetricKey: symKey,
		tokenTTL:     tokenTTL,
	}, nil
}

// GenerateToken creates a new PASETO v4.local access token for the API key.
// The token is encrypted and carries the key's identity as claims.
func (s *TokenService) GenerateToken(key *domain.APIKey) (string, error) {
	now := time.Now()

	token := paseto.NewToken()

	// Standard claims
	token.SetIssuer(tokenIssuer)
	token.SetSubject(key.ID)
	token.SetAudience(tokenAudience)
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(now.Add(s.tokenTTL))

	tokenID, err := id.Generate("token")
	if err != nil {
		return "", fmt.Errorf("generate token ID: %w", err)
	}
	token.SetJti(tokenID)

	// Our custom claims
	//nolint:errcheck // Token.Set only errors on invalid types, which we control
	_ = token.Set("key_id", key.ID)
	//nolint:errcheck // Token.Set only errors on invalid types, which we control
	_ = token.Set("key_name", key.Name)

	encrypted := token.V4Encrypt(s.symmetricKey, nil)
	return encrypted, nil
}

// VerifyToken verifies and parses a PASETO access token.
// Returns the claims if valid, or an error if the token is invalid or expired.
func (s *TokenService) VerifyToken(tokenString string) (*AccessClaims, error) {
	parser := paseto.NewParser()

	// Validation rules for the claims set in GenerateToken.
	parser.AddRule(paseto.ForAudience(tokenAudience))
	parser.AddRule(paseto.IssuedBy(tokenIssuer))
	parser.AddRule(paseto.NotExpired())
	parser.AddRule(paseto.ValidAt(time.Now()))

	token, err := parser.ParseV4Local(s.symmetricKey, tokenString, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	var claims AccessClaims
	if err := json.Unmarshal(token.ClaimsJSON(), &claims); err != nil {
		return nil, fmt.Errorf("parse claims: %w", err)
	}

	return &claims, nil
}

// GenerateSecret creates the cryptographically random secret half of an API
// key. NOTE: this is NOT a PASETO token, just random bytes; only the argon2id
// hash of this value is stored, and the plaintext is shown to the operator
// exactly once at creation.
// Returns the secret in a base64-urlencoded format.
func GenerateSecret() (string, error) {
	b := make([]byte, secretSize)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}

	return base64.URLEncoding.EncodeToString(b), nil
}

// TokenTTL returns the configured access token lifetime.
func (s *TokenService) TokenTTL() time.Duration {
	return s.tokenTTL
}
