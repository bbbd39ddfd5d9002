package api

import (
	"encoding/json/v2"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fsintent/fsintent-server/internal/http/response"
)

// TestEnvelopeContract_Success verifies the transformer wraps handler output
// in the {success, data} shape clients depend on.
func TestEnvelopeContract_Success(t *testing.T) {
	data := map[string]string{"id": "op_123", "type": "AtomicSave"}

	result, err := EnvelopeTransformer(nil, "200", data)
	require.NoError(t, err)

	env, ok := result.(response.Envelope)
	require.True(t, ok, "transformer must produce a response.Envelope")
	assert.True(t, env.Success)
	assert.Equal(t, data, env.Data)
}

func TestEnvelopeContract_NilPassthrough(t *testing.T) {
	result, err := EnvelopeTransformer(nil, "204", nil)
	require.NoError(t, err)
	assert.Nil(t, result)
}

// TestEnvelopeContract_ErrorsAreNotWrapped verifies error bodies keep their
// own shape: a code, a message, and no success/data wrapper.
func TestEnvelopeContract_ErrorsAreNotWrapped(t *testing.T) {
	ts := setupTestServer(t, testServerOptions{})

	resp := ts.api.Get("/api/v1/operations/op_missing")
	require.Equal(t, http.StatusNotFound, resp.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Contains(t, body, "code")
	assert.Contains(t, body, "message")
	assert.NotContains(t, body, "success")
	assert.NotContains(t, body, "data")
}
