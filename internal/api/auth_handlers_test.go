package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuth_OpenModeAllowsAnonymousAccess(t *testing.T) {
	ts := setupTestServer(t, testServerOptions{})

	// No API keys exist and no bootstrap key is configured, so protected
	// endpoints are open.
	resp := ts.api.Get("/api/v1/watches")
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestAuth_BootstrapProvisionsFirstKey(t *testing.T) {
	ts := setupTestServer(t, testServerOptions{bootstrapKey: "first-run-secret"})

	// Wrong bootstrap secret is rejected.
	resp := ts.api.Post("/api/v1/auth/keys", map[string]any{
		"name":             "ops",
		"bootstrap_secret": "not-the-secret",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	// Correct secret creates the key and returns the secret once.
	resp = ts.api.Post("/api/v1/auth/keys", map[string]any{
		"name":             "ops",
		"bootstrap_secret": "first-run-secret",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var created testEnvelope[CreateKeyResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))
	assert.True(t, created.Success)
	assert.NotEmpty(t, created.Data.Secret)
	assert.Equal(t, "ops", created.Data.Key.Name)

	// Once a real key exists the server is locked down and the bootstrap
	// secret stops working.
	resp = ts.api.Post("/api/v1/auth/keys", map[string]any{
		"name":             "second",
		"bootstrap_secret": "first-run-secret",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAuth_TokenExchange(t *testing.T) {
	ts := setupTestServer(t, testServerOptions{bootstrapKey: "first-run-secret"})
	token := ts.provisionKey(t, "first-run-secret")

	// A locked-down server rejects anonymous access to protected routes.
	resp := ts.api.Get("/api/v1/watches")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	// The issued token grants access.
	resp = ts.api.Get("/api/v1/watches", "Authorization: Bearer "+token)
	assert.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
}

func TestAuth_TokenRejectsBadCredentials(t *testing.T) {
	ts := setupTestServer(t, testServerOptions{bootstrapKey: "first-run-secret"})
	ts.provisionKey(t, "first-run-secret")

	resp := ts.api.Post("/api/v1/auth/token", map[string]any{
		"key_id": "key_nonexistent",
		"secret": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAuth_KeyLifecycle(t *testing.T) {
	ts := setupTestServer(t, testServerOptions{bootstrapKey: "first-run-secret"})
	token := ts.provisionKey(t, "first-run-secret")

	// Create a second key using the token.
	resp := ts.api.Post("/api/v1/auth/keys",
		"Authorization: Bearer "+token,
		map[string]any{"name": "ci"},
	)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var created testEnvelope[CreateKeyResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))

	// Both keys are listed, secrets never echoed.
	resp = ts.api.Get("/api/v1/auth/keys", "Authorization: Bearer "+token)
	require.Equal(t, http.StatusOK, resp.Code)

	var listed testEnvelope[ListKeysResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &listed))
	assert.Len(t, listed.Data.Keys, 2)

	// Revoke the second key.
	resp = ts.api.Delete("/api/v1/auth/keys/"+created.Data.Key.ID, "Authorization: Bearer "+token)
	assert.Equal(t, http.StatusNoContent, resp.Code)

	resp = ts.api.Get("/api/v1/auth/keys", "Authorization: Bearer "+token)
	require.Equal(t, http.StatusOK, resp.Code)
	listed = testEnvelope[ListKeysResponse]{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &listed))
	assert.Len(t, listed.Data.Keys, 1)
}
