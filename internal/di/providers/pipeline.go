package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/do/v2"

	"github.com/fsintent/fsintent-server/internal/config"
	"github.com/fsintent/fsintent-server/internal/correlate"
	"github.com/fsintent/fsintent-server/internal/detect"
	"github.com/fsintent/fsintent-server/internal/logger"
	"github.com/fsintent/fsintent-server/internal/processor"
	"github.com/fsintent/fsintent-server/internal/sse"
	"github.com/fsintent/fsintent-server/internal/watcher"
)

// PipelineHandle owns the capture pipeline: the filesystem watcher feeding
// the correlator feeding the event processor. One handle owns all three
// because their shutdown is a single ordered drain; stopping them through
// independent handles would race the final window against the store close.
type PipelineHandle struct {
	Watcher    *watcher.Watcher
	Correlator *correlate.Correlator
	Processor  *processor.EventProcessor

	cancel  context.CancelFunc
	runDone chan struct{}
	logger  *logger.Logger
}

// Shutdown implements do.Shutdownable. Order matters: stop the watcher so no
// new events arrive, flush the correlator's open window, then wait for the
// processor to journal the drained batches.
func (h *PipelineHandle) Shutdown() error {
	h.cancel()
	if err := h.Watcher.Stop(); err != nil {
		h.logger.Warn("watcher stop failed", "error", err)
	}
	if err := h.Correlator.Stop(); err != nil {
		h.logger.Warn("correlator stop failed", "error", err)
	}

	select {
	case <-h.runDone:
		return nil
	case <-time.After(shutdownTimeout):
		return fmt.Errorf("pipeline drain timed out after %s", shutdownTimeout)
	}
}

// ProvidePipeline provides the running capture pipeline.
func ProvidePipeline(i do.Injector) (*PipelineHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	engine := do.MustInvoke[*detect.Engine](i)
	watchStreams := do.MustInvoke[*sse.WatchBroadcaster](i)

	correlator := correlate.New(log.Logger, correlate.Options{
		IdleGap:   cfg.Correlate.IdleGap,
		MaxSpan:   cfg.Correlate.MaxSpan,
		MaxEvents: cfg.Correlate.MaxEvents,
	})

	eventProcessor := processor.NewEventProcessor(correlator, engine, storeHandle.Store, watchStreams, log.Logger)

	w, err := watcher.New(log.Logger, watcher.Options{
		Recursive: cfg.Watch.Recursive,
		// The daemon's own writes must not feed back into the pipeline.
		IgnorePaths: []string{cfg.Store.DataDir},
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	if err := correlator.Start(ctx); err != nil {
		cancel()
		return nil, err
	}

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		eventProcessor.Run(ctx)
	}()

	if err := w.Start(ctx); err != nil {
		cancel()
		return nil, err
	}

	// Forward raw watcher events into the correlator.
	go func() {
		for {
			select {
			case event := <-w.Events():
				if err := eventProcessor.ProcessEvent(ctx, event); err != nil {
					log.Warn("failed to process event",
						"error", err,
						"type", event.Type,
						"path", event.Path,
					)
				}
			case err := <-w.Errors():
				log.Warn("file watcher error", "error", err)
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info("Capture pipeline started",
		"idle_gap", cfg.Correlate.IdleGap,
		"max_span", cfg.Correlate.MaxSpan,
		"max_events", cfg.Correlate.MaxEvents,
		"recursive", cfg.Watch.Recursive,
	)

	return &PipelineHandle{
		Watcher:    w,
		Correlator: correlator,
		Processor:  eventProcessor,
		cancel:     cancel,
		runDone:    runDone,
		logger:     log,
	}, nil
}

// ProvideWatchSupervisor provides the supervisor bridging persisted watch
// roots and the live pipeline, with stored roots resumed and configured
// seed paths registered.
func ProvideWatchSupervisor(i do.Injector) (*processor.WatchSupervisor, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	pipeline := do.MustInvoke[*PipelineHandle](i)
	watchStreams := do.MustInvoke[*sse.WatchBroadcaster](i)

	supervisor := processor.NewWatchSupervisor(
		storeHandle.Store,
		pipeline.Watcher,
		pipeline.Processor,
		watchStreams,
		cfg.Watch.Recursive,
		log.Logger,
	)

	if err := supervisor.Resume(context.Background(), cfg.Watch.Paths); err != nil {
		return nil, err
	}

	roots, err := supervisor.ListWatches(context.Background())
	if err != nil {
		return nil, err
	}
	log.Info("Watch roots resumed", "count", len(roots))

	return supervisor, nil
}

// RetentionJob prunes old journal entries on a daily cadence.
type RetentionJob struct {
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (j *RetentionJob) Shutdown() error {
	j.cancel()
	return nil
}

// ProvideRetentionJob provides the periodic journal pruning job. With
// retention disabled the job is inert.
func ProvideRetentionJob(i do.Injector) (*RetentionJob, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)

	ctx, cancel := context.WithCancel(context.Background())

	if cfg.Store.RetentionDays <= 0 {
		log.Info("Journal retention disabled, keeping records forever")
		return &RetentionJob{cancel: cancel}, nil
	}

	retention := time.Duration(cfg.Store.RetentionDays) * 24 * time.Hour

	prune := func() {
		cutoff := time.Now().Add(-retention)
		removed, err := storeHandle.PruneBefore(ctx, cutoff)
		if err != nil {
			log.Warn("Journal prune failed", "error", err)
			return
		}
		if removed > 0 {
			log.Info("Journal pruned", "removed", removed, "cutoff", cutoff)
			sseHandle.Emit(sse.NewJournalPrunedEvent(removed, cutoff))
		}
	}

	go func() {
		// Prune once at startup, then daily.
		prune()

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				prune()
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info("Journal retention job started", "retention_days", cfg.Store.RetentionDays)

	return &RetentionJob{cancel: cancel}, nil
}
