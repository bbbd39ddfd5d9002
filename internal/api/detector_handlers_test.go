package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectors_ListInExecutionOrder(t *testing.T) {
	ts := setupTestServer(t, testServerOptions{})

	resp := ts.api.Get("/api/v1/detectors")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var env testEnvelope[ListDetectorsResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env))
	require.Len(t, env.Data.Detectors, 12)

	// Highest priority first; the fallback closes the list.
	assert.Equal(t, "temp_rename", env.Data.Detectors[0].Name)
	assert.Equal(t, 95, env.Data.Detectors[0].Priority)
	assert.Equal(t, "simple_operation", env.Data.Detectors[11].Name)

	for i := 1; i < len(env.Data.Detectors); i++ {
		assert.GreaterOrEqual(t,
			env.Data.Detectors[i-1].Priority,
			env.Data.Detectors[i].Priority,
		)
	}
}

func TestDetectors_GetByName(t *testing.T) {
	ts := setupTestServer(t, testServerOptions{})

	resp := ts.api.Get("/api/v1/detectors/atomic_save")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var env testEnvelope[DetectorResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env))
	assert.Equal(t, "atomic_save", env.Data.Name)
	assert.Equal(t, 85, env.Data.Priority)
	assert.True(t, env.Data.Enabled)

	resp = ts.api.Get("/api/v1/detectors/not_registered")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestDetectors_DisableChangesClassification(t *testing.T) {
	ts := setupTestServer(t, testServerOptions{})

	resp := ts.api.Post("/api/v1/detectors/temp_rename/disable")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var env testEnvelope[DetectorResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env))
	assert.False(t, env.Data.Enabled)

	// With temp_rename muted, the same batch falls through to atomic_save.
	resp = ts.api.Post("/api/v1/detect", map[string]any{
		"events": []map[string]any{
			{"path": "/home/user/.doc.txt.swp", "kind": "created", "timestamp": "2026-08-30T10:00:00Z"},
			{"path": "/home/user/.doc.txt.swp", "dest_path": "/home/user/doc.txt", "kind": "moved", "timestamp": "2026-08-30T10:00:01Z"},
		},
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var detected testEnvelope[DetectResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &detected))
	require.True(t, detected.Data.Matched)
	assert.NotEqual(t, "temp_rename", detected.Data.Operation.DetectorName)

	// Re-enabling restores the original winner.
	resp = ts.api.Post("/api/v1/detectors/temp_rename/enable")
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestDetectors_ToggleMissingReturns404(t *testing.T) {
	ts := setupTestServer(t, testServerOptions{})

	resp := ts.api.Post("/api/v1/detectors/not_registered/disable")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
