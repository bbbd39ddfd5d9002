package api

import (
	"crypto/rand"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/fsintent/fsintent-server/internal/auth"
	"github.com/fsintent/fsintent-server/internal/correlate"
	"github.com/fsintent/fsintent-server/internal/detect"
	"github.com/fsintent/fsintent-server/internal/processor"
	"github.com/fsintent/fsintent-server/internal/sse"
	"github.com/fsintent/fsintent-server/internal/store"
	"github.com/fsintent/fsintent-server/internal/validation"
)

// testEnvelope mirrors the response envelope for decoding in tests.
type testEnvelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
}

// fakeRootWatcher satisfies processor.RootWatcher without touching inotify.
type fakeRootWatcher struct {
	watched map[string]bool
}

func newFakeRootWatcher() *fakeRootWatcher {
	return &fakeRootWatcher{watched: make(map[string]bool)}
}

func (f *fakeRootWatcher) Watch(path string) error {
	f.watched[path] = true
	return nil
}

func (f *fakeRootWatcher) Unwatch(path string) error {
	delete(f.watched, path)
	return nil
}

// testServer wraps the API server with its humatest client and the pieces
// tests reach into directly.
type testServer struct {
	*Server
	api     humatest.TestAPI
	store   *store.Store
	watcher *fakeRootWatcher
}

type testServerOptions struct {
	bootstrapKey string
	withSearch   bool
}

func setupTestServer(t *testing.T, opts testServerOptions) *testServer {
	t.Helper()

	tmpDir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	st, err := store.New(tmpDir+"/journal", logger, store.NewNoopEmitter())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	key := make([]byte, 32)
	_, err = rand.Read(key)
	require.NoError(t, err)

	tokens, err := auth.NewTokenService(key, 15*time.Minute)
	require.NoError(t, err)
	authService := auth.NewService(st, tokens, opts.bootstrapKey, logger)

	registry := detect.NewRegistry()
	require.NoError(t, detect.RegisterBuiltins(registry))
	engine := detect.NewEngine(registry, logger)

	correlator := correlate.New(logger, correlate.Options{})
	watchStreams := sse.NewWatchBroadcaster(logger)
	proc := processor.NewEventProcessor(correlator, engine, st, watchStreams, logger)

	watcher := newFakeRootWatcher()
	supervisor := processor.NewWatchSupervisor(st, watcher, proc, watchStreams, true, logger)

	manager := sse.NewManager(logger)

	services := &Services{
		Registry:  registry,
		Engine:    engine,
		Auth:      authService,
		Processor: proc,
		Watches:   supervisor,
	}

	streams := &Streams{
		Events:  sse.NewHandler(manager, logger),
		Manager: manager,
		Watch:   sse.NewWatchStreamHandler(watchStreams, logger),
	}

	router := chi.NewRouter()
	router.Use(authMiddleware(services.Auth))

	api := humachi.New(router, humaConfig())
	RegisterErrorHandler()

	s := &Server{
		store:     st,
		services:  services,
		streams:   streams,
		router:    router,
		api:       api,
		validator: validation.New(),
		logger:    logger,
	}
	s.setupRoutes()

	return &testServer{
		Server:  s,
		api:     humatest.Wrap(t, api),
		store:   st,
		watcher: watcher,
	}
}

// provisionKey creates the first API key through the bootstrap path and
// returns a bearer token for it.
func (ts *testServer) provisionKey(t *testing.T, bootstrapSecret string) string {
	t.Helper()

	resp := ts.api.Post("/api/v1/auth/keys", map[string]any{
		"name":             "test-key",
		"bootstrap_secret": bootstrapSecret,
	})
	require.Equal(t, 200, resp.Code, "key creation failed: %s", resp.Body.String())

	var created testEnvelope[CreateKeyResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))

	resp = ts.api.Post("/api/v1/auth/token", map[string]any{
		"key_id": created.Data.Key.ID,
		"secret": created.Data.Secret,
	})
	require.Equal(t, 200, resp.Code, "token issuance failed: %s", resp.Body.String())

	var issued testEnvelope[IssueTokenResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &issued))
	return issued.Data.Token
}
