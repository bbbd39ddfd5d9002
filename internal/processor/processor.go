// Package processor drives the capture pipeline. Raw watcher events are fed
// into the correlator, closed correlation windows run through the detection
// engine, and every match is journaled, indexed for search, and fanned out
// to streaming clients.
package processor

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/fsintent/fsintent-server/internal/correlate"
	"github.com/fsintent/fsintent-server/internal/detect"
	"github.com/fsintent/fsintent-server/internal/domain"
	"github.com/fsintent/fsintent-server/internal/id"
	"github.com/fsintent/fsintent-server/internal/normalize"
	"github.com/fsintent/fsintent-server/internal/sse"
	"github.com/fsintent/fsintent-server/internal/store"
	"github.com/fsintent/fsintent-server/internal/watcher"
)

// EventProcessor connects capture to classification.
//
// Key design principles:
//   - ProcessEvent only converts and enqueues; windowing belongs to the correlator
//   - Run consumes whole windows, so batches classify one at a time in arrival order
//   - An unclassified window is routine and logs at debug; a detector error is
//     a defect and logs at error
type EventProcessor struct {
	correlator   *correlate.Correlator
	engine       *detect.Engine
	store        *store.Store
	watchStreams *sse.WatchBroadcaster
	logger       *slog.Logger

	// roots maps a watched directory to its watch ID so a detection can be
	// attributed to the root that produced it.
	roots *SyncMap[string, string]

	eventsSeen    atomic.Int64
	batchesSeen   atomic.Int64
	detected      atomic.Int64
	unclassified  atomic.Int64
	detectErrors  atomic.Int64
	journalErrors atomic.Int64
}

// Stats is a point-in-time snapshot of the pipeline counters.
type Stats struct {
	EventsSeen    int64 `json:"events_seen"`
	BatchesSeen   int64 `json:"batches_seen"`
	Detected      int64 `json:"detected"`
	Unclassified  int64 `json:"unclassified"`
	DetectErrors  int64 `json:"detect_errors"`
	JournalErrors int64 `json:"journal_errors"`
	WatchRoots    int   `json:"watch_roots"`
}

// NewEventProcessor creates a new EventProcessor instance. The watch stream
// broadcaster may be nil when per-watch streaming is not wired up.
func NewEventProcessor(correlator *correlate.Correlator, engine *detect.Engine, st *store.Store, watchStreams *sse.WatchBroadcaster, logger *slog.Logger) *EventProcessor {
	return &EventProcessor{
		correlator:   correlator,
		engine:       engine,
		store:        st,
		watchStreams: watchStreams,
		logger:       logger,
		roots:        NewSyncMap[string, string](),
	}
}

// ProcessEvent converts one raw watcher event and hands it to the correlator.
// Classification happens later, when the correlation window closes. Events
// arriving after the context is cancelled are dropped.
func (ep *EventProcessor) ProcessEvent(ctx context.Context, event watcher.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	kind, ok := eventKind(event.Type)
	if !ok {
		ep.logger.Warn("unknown event type",
			"type", event.Type,
			"path", event.Path,
		)
		return nil
	}

	ep.eventsSeen.Add(1)
	ep.logger.Debug("event captured",
		"type", kind.String(),
		"path", event.Path,
	)

	ep.correlator.Add(domain.Event{
		Timestamp: event.Time,
		Path:      event.Path,
		DestPath:  event.DestPath,
		Kind:      kind,
	})
	return nil
}

// eventKind maps a watcher event type onto the classification vocabulary.
func eventKind(t watcher.EventType) (domain.EventKind, bool) {
	switch t {
	case watcher.EventCreated:
		return domain.EventCreated, true
	case watcher.EventModified:
		return domain.EventModified, true
	case watcher.EventDeleted:
		return domain.EventDeleted, true
	case watcher.EventMoved:
		return domain.EventMoved, true
	default:
		return 0, false
	}
}

// Run consumes closed correlation windows until the batch channel is closed.
// Intended to run as a single goroutine; shutdown order is cancel the
// watcher, stop the correlator, then wait for Run to return.
func (ep *EventProcessor) Run(ctx context.Context) {
	// Journal writes must outlive cancellation: shutdown drains the final
	// window through this loop after the run context is already cancelled.
	ctx = context.WithoutCancel(ctx)

	for batch := range ep.correlator.Batches() {
		ep.handleBatch(ctx, batch)
	}

	ep.logger.Info("pipeline drained",
		"events", ep.eventsSeen.Load(),
		"batches", ep.batchesSeen.Load(),
		"detected", ep.detected.Load(),
	)
}

// handleBatch classifies one window and journals the result.
func (ep *EventProcessor) handleBatch(ctx context.Context, batch correlate.Batch) {
	ep.batchesSeen.Add(1)

	op, err := ep.engine.Detect(batch.Events)
	if err != nil {
		ep.detectErrors.Add(1)
		ep.logger.Error("detection failed",
			"batch_id", batch.ID,
			"batch_size", len(batch.Events),
			"error", err,
		)
		return
	}
	if op == nil {
		ep.unclassified.Add(1)
		ep.logger.Debug("batch unclassified",
			"batch_id", batch.ID,
			"batch_size", len(batch.Events),
		)
		return
	}

	rootPath, watchID := ep.resolveRoot(op.PrimaryPath)

	opID, err := id.Generate(id.PrefixOperation)
	if err != nil {
		ep.journalErrors.Add(1)
		ep.logger.Error("failed to generate operation ID",
			"batch_id", batch.ID,
			"error", err,
		)
		return
	}

	rec := domain.NewOperationRecord(opID, batch.ID, rootPath, op, len(batch.Events))

	if err := ep.store.AppendOperation(ctx, rec); err != nil {
		ep.journalErrors.Add(1)
		ep.logger.Error("failed to journal operation",
			"operation_id", rec.ID,
			"batch_id", batch.ID,
			"error", err,
		)
		return
	}

	ep.detected.Add(1)
	ep.logger.Info("operation detected",
		"operation_id", rec.ID,
		"type", rec.Type.String(),
		"detector", rec.DetectorName,
		"path", rec.PrimaryPath,
		"batch_id", batch.ID,
		"batch_size", rec.BatchSize,
	)

	if ep.watchStreams != nil && watchID != "" {
		ep.watchStreams.NotifyOperation(watchID, rec)
	}
}

// SetRoot registers a watched directory so detections beneath it carry the
// owning watch. The path is normalized the same way event paths are, so the
// prefix comparison in resolveRoot sees both sides in the same form.
func (ep *EventProcessor) SetRoot(path, watchID string) {
	ep.roots.Store(normalize.Path(path), watchID)
}

// RemoveRoot forgets a watched directory. Operations already journaled keep
// their attribution.
func (ep *EventProcessor) RemoveRoot(path string) {
	ep.roots.Delete(normalize.Path(path))
}

// Stats returns a snapshot of the pipeline counters.
func (ep *EventProcessor) Stats() Stats {
	return Stats{
		EventsSeen:    ep.eventsSeen.Load(),
		BatchesSeen:   ep.batchesSeen.Load(),
		Detected:      ep.detected.Load(),
		Unclassified:  ep.unclassified.Load(),
		DetectErrors:  ep.detectErrors.Load(),
		JournalErrors: ep.journalErrors.Load(),
		WatchRoots:    ep.roots.Len(),
	}
}
