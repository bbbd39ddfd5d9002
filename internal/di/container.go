// Package di provides dependency injection configuration for the fsintent daemon.
package di

import (
	"github.com/samber/do/v2"

	"github.com/fsintent/fsintent-server/internal/auth"
	"github.com/fsintent/fsintent-server/internal/config"
	"github.com/fsintent/fsintent-server/internal/detect"
	"github.com/fsintent/fsintent-server/internal/di/providers"
	"github.com/fsintent/fsintent-server/internal/logger"
	"github.com/fsintent/fsintent-server/internal/processor"
	"github.com/fsintent/fsintent-server/internal/service"
	"github.com/fsintent/fsintent-server/internal/sse"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideAuthKey)

	// Journal and streaming
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideWatchBroadcaster)
	do.Provide(injector, providers.ProvideStore)

	// Search
	do.Provide(injector, providers.ProvideSearchIndex)
	do.Provide(injector, providers.ProvideSearchService)

	// Detection
	do.Provide(injector, providers.ProvideDetectorRegistry)
	do.Provide(injector, providers.ProvideDetectionEngine)

	// Auth
	do.Provide(injector, providers.ProvideTokenService)
	do.Provide(injector, providers.ProvideAuthService)

	// Capture pipeline
	do.Provide(injector, providers.ProvidePipeline)
	do.Provide(injector, providers.ProvideWatchSupervisor)
	do.Provide(injector, providers.ProvideRetentionJob)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)
	do.Provide(injector, providers.ProvideMDNSService)

	return injector
}

// Bootstrap initializes all services and returns once the daemon is live.
// Invocation order decides shutdown order: do shuts services down in
// reverse, so the HTTP server and mDNS go first and the journal last.
func Bootstrap(injector *do.RootScope) error {
	// Invoke core services to trigger initialization
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[providers.AuthKey](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	_ = do.MustInvoke[*sse.WatchBroadcaster](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)
	_ = do.MustInvoke[*service.SearchService](injector)
	_ = do.MustInvoke[*detect.Registry](injector)
	_ = do.MustInvoke[*detect.Engine](injector)
	_ = do.MustInvoke[*auth.TokenService](injector)
	_ = do.MustInvoke[*auth.Service](injector)

	// Capture pipeline
	_ = do.MustInvoke[*providers.PipelineHandle](injector)
	_ = do.MustInvoke[*processor.WatchSupervisor](injector)
	_ = do.MustInvoke[*providers.RetentionJob](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)
	_ = do.MustInvoke[*providers.MDNSServiceHandle](injector)

	// Rebuild the search index from the journal if it came up empty.
	providers.TriggerSearchReindexIfNeeded(injector)

	return nil
}
