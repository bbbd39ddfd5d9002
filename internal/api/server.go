// Package api provides the HTTP API server and handlers for the fsintent daemon.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/fsintent/fsintent-server/internal/config"
	"github.com/fsintent/fsintent-server/internal/ratelimit"
	"github.com/fsintent/fsintent-server/internal/store"
	"github.com/fsintent/fsintent-server/internal/validation"
)

// APITitle and APIVersion identify the server in the generated OpenAPI spec.
const (
	APITitle   = "fsintent API"
	APIVersion = "1.0.0"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	store     *store.Store
	services  *Services
	streams   *Streams
	router    *chi.Mux
	api       huma.API
	validator *validation.Validator
	limiter   *ratelimit.KeyedRateLimiter
	logger    *slog.Logger
}

// NewServer creates the HTTP server with all routes configured.
func NewServer(cfg *config.Config, st *store.Store, services *Services, streams *Streams, logger *slog.Logger) *Server {
	s := &Server{
		store:     st,
		services:  services,
		streams:   streams,
		router:    chi.NewRouter(),
		validator: validation.New(),
		limiter:   ratelimit.New(float64(cfg.Rate.RPS), cfg.Rate.Burst),
		logger:    logger,
	}

	s.setupMiddleware(cfg)
	s.api = humachi.New(s.router, humaConfig())
	RegisterErrorHandler()
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases server-owned resources (the rate limiter's cleanup loop).
func (s *Server) Close() {
	s.limiter.Stop()
}

// humaConfig builds the OpenAPI configuration shared by the server and its
// tests.
func humaConfig() huma.Config {
	cfg := huma.DefaultConfig(APITitle, APIVersion)
	cfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	cfg.Transformers = append(cfg.Transformers, EnvelopeTransformer)
	return cfg
}

// setupMiddleware configures the middleware stack.
func (s *Server) setupMiddleware(cfg *config.Config) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	s.router.Use(RateLimitMiddleware(s.limiter, s.logger))
	s.router.Use(s.requestLogger)
	s.router.Use(authMiddleware(s.services.Auth))
}

// requestLogger logs one line per request at debug level.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// setupRoutes registers the huma operations and the raw stream routes.
func (s *Server) setupRoutes() {
	s.registerHealthRoutes()
	s.registerAuthRoutes()
	s.registerDetectorRoutes()
	s.registerDetectRoutes()
	s.registerOperationRoutes()
	s.registerWatchRoutes()
	s.registerFilesystemRoutes()

	// SSE speaks its own wire protocol; mounted outside huma.
	if s.streams != nil {
		s.router.Get("/api/v1/events", s.streams.Events.ServeHTTP)
		s.router.Get("/api/v1/watches/{id}/stream", func(w http.ResponseWriter, r *http.Request) {
			s.streams.Watch.ServeHTTP(w, r, chi.URLParam(r, "id"))
		})
	}
}
