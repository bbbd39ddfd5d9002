package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatches_CreateAndList(t *testing.T) {
	ts := setupTestServer(t, testServerOptions{})
	dir := t.TempDir()

	resp := ts.api.Post("/api/v1/watches", map[string]any{"path": dir})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var created testEnvelope[struct {
		ID      string `json:"id"`
		Path    string `json:"path"`
		Enabled bool   `json:"enabled"`
	}]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))
	assert.True(t, created.Success)
	assert.NotEmpty(t, created.Data.ID)
	assert.Equal(t, dir, created.Data.Path)
	assert.True(t, created.Data.Enabled)

	// The backend is now watching the directory.
	assert.True(t, ts.watcher.watched[dir])

	resp = ts.api.Get("/api/v1/watches")
	require.Equal(t, http.StatusOK, resp.Code)

	var listed testEnvelope[WatchListResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &listed))
	require.Len(t, listed.Data.Watches, 1)
	assert.Equal(t, created.Data.ID, listed.Data.Watches[0].ID)
}

func TestWatches_CreateRejectsMissingDirectory(t *testing.T) {
	ts := setupTestServer(t, testServerOptions{})

	resp := ts.api.Post("/api/v1/watches", map[string]any{"path": "/no/such/dir"})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestWatches_CreateRejectsDuplicate(t *testing.T) {
	ts := setupTestServer(t, testServerOptions{})
	dir := t.TempDir()

	resp := ts.api.Post("/api/v1/watches", map[string]any{"path": dir})
	require.Equal(t, http.StatusCreated, resp.Code)

	resp = ts.api.Post("/api/v1/watches", map[string]any{"path": dir})
	assert.Equal(t, http.StatusConflict, resp.Code)
}

func TestWatches_GetAndDelete(t *testing.T) {
	ts := setupTestServer(t, testServerOptions{})
	dir := t.TempDir()

	resp := ts.api.Post("/api/v1/watches", map[string]any{"path": dir})
	require.Equal(t, http.StatusCreated, resp.Code)

	var created testEnvelope[struct {
		ID string `json:"id"`
	}]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))

	resp = ts.api.Get("/api/v1/watches/" + created.Data.ID)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Delete("/api/v1/watches/" + created.Data.ID)
	assert.Equal(t, http.StatusNoContent, resp.Code)
	assert.False(t, ts.watcher.watched[dir])

	resp = ts.api.Get("/api/v1/watches/" + created.Data.ID)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = ts.api.Delete("/api/v1/watches/" + created.Data.ID)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestWatches_DisableAndEnable(t *testing.T) {
	ts := setupTestServer(t, testServerOptions{})
	dir := t.TempDir()

	resp := ts.api.Post("/api/v1/watches", map[string]any{"path": dir})
	require.Equal(t, http.StatusCreated, resp.Code)

	var created testEnvelope[struct {
		ID string `json:"id"`
	}]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))

	resp = ts.api.Post("/api/v1/watches/"+created.Data.ID+"/disable")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.False(t, ts.watcher.watched[dir])

	var toggled testEnvelope[struct {
		Enabled bool `json:"enabled"`
	}]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &toggled))
	assert.False(t, toggled.Data.Enabled)

	resp = ts.api.Post("/api/v1/watches/"+created.Data.ID+"/enable")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, ts.watcher.watched[dir])
}

func TestWatches_ToggleMissingReturns404(t *testing.T) {
	ts := setupTestServer(t, testServerOptions{})

	resp := ts.api.Post("/api/v1/watches/wr_missing/enable")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
