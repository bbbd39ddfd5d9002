package providers

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/samber/do/v2"
	"golang.org/x/net/netutil"

	"github.com/fsintent/fsintent-server/internal/api"
	"github.com/fsintent/fsintent-server/internal/auth"
	"github.com/fsintent/fsintent-server/internal/config"
	"github.com/fsintent/fsintent-server/internal/detect"
	"github.com/fsintent/fsintent-server/internal/logger"
	"github.com/fsintent/fsintent-server/internal/mdns"
	"github.com/fsintent/fsintent-server/internal/processor"
	"github.com/fsintent/fsintent-server/internal/service"
	"github.com/fsintent/fsintent-server/internal/sse"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	apiServer *api.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.Server.Shutdown(ctx)
	h.apiServer.Close()
	return err
}

// ProvideHTTPServer provides the HTTP server, already listening.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	watchStreams := do.MustInvoke[*sse.WatchBroadcaster](i)
	registry := do.MustInvoke[*detect.Registry](i)
	engine := do.MustInvoke[*detect.Engine](i)
	authService := do.MustInvoke[*auth.Service](i)
	pipeline := do.MustInvoke[*PipelineHandle](i)
	supervisor := do.MustInvoke[*processor.WatchSupervisor](i)
	searchService := do.MustInvoke[*service.SearchService](i)

	services := &api.Services{
		Registry:  registry,
		Engine:    engine,
		Auth:      authService,
		Processor: pipeline.Processor,
		Watches:   supervisor,
		Search:    searchService,
	}

	streams := &api.Streams{
		Events:  sse.NewHandler(sseHandle.Manager, log.Logger),
		Manager: sseHandle.Manager,
		Watch:   sse.NewWatchStreamHandler(watchStreams, log.Logger),
	}

	handler := api.NewServer(cfg, storeHandle.Store, services, streams, log.Logger)

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	listener, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return nil, err
	}
	if cfg.Server.MaxConns > 0 {
		listener = netutil.LimitListener(listener, cfg.Server.MaxConns)
	}

	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv, apiServer: handler}, nil
}

// MDNSServiceHandle wraps mdns.Service with Shutdownable.
type MDNSServiceHandle struct {
	*mdns.Service
	started bool
}

// Shutdown implements do.Shutdownable.
func (h *MDNSServiceHandle) Shutdown() error {
	if h.started && h.Service != nil {
		h.Stop()
	}
	return nil
}

// ProvideMDNSService provides the mDNS advertisement service.
func ProvideMDNSService(i do.Injector) (*MDNSServiceHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Server.AdvertiseMDNS {
		log.Info("mDNS advertisement disabled by configuration")
		return &MDNSServiceHandle{}, nil
	}

	svc := mdns.NewService(log.Logger)

	port, err := strconv.Atoi(cfg.Server.Port)
	if err != nil {
		log.Warn("Failed to parse server port for mDNS", "port", cfg.Server.Port)
		return &MDNSServiceHandle{Service: svc}, nil
	}

	if err := svc.Start(cfg.Server.Name, port); err != nil {
		// Non-fatal: the daemon works without mDNS (Docker, cloud).
		log.Warn("mDNS advertisement unavailable", "error", err)
		return &MDNSServiceHandle{Service: svc}, nil
	}

	return &MDNSServiceHandle{Service: svc, started: true}, nil
}
