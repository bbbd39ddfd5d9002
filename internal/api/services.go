package api

import (
	"github.com/fsintent/fsintent-server/internal/auth"
	"github.com/fsintent/fsintent-server/internal/detect"
	"github.com/fsintent/fsintent-server/internal/processor"
	"github.com/fsintent/fsintent-server/internal/service"
	"github.com/fsintent/fsintent-server/internal/sse"
)

// Services groups the components the API server exposes. This reduces the
// parameter count for NewServer and improves testability.
type Services struct {
	Registry  *detect.Registry
	Engine    *detect.Engine
	Auth      *auth.Service
	Processor *processor.EventProcessor
	Watches   *processor.WatchSupervisor

	// Search is nil when full-text search is disabled by configuration;
	// the search endpoint reports 503 in that case.
	Search *service.SearchService
}

// Streams groups the live event surfaces mounted as raw chi routes, outside
// the huma-generated API.
type Streams struct {
	// Events serves the global operation stream.
	Events *sse.Handler
	// Manager backs the health check's client count.
	Manager *sse.Manager
	// Watch serves per-watch-root operation streams.
	Watch *sse.WatchStreamHandler
}
