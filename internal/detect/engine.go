package detect

import (
	"fmt"
	"log/slog"

	"github.com/fsintent/fsintent-server/internal/domain"
)

// Engine turns one correlated event batch into at most one FileOperation by
// running the registry's detectors highest-priority-first and returning the
// first match.
//
// The registry is injected so tests and embedders can run isolated detector
// sets; the process-wide instance is owned by the DI container.
type Engine struct {
	registry *Registry
	log      *slog.Logger
}

// NewEngine creates an engine over the given registry.
func NewEngine(registry *Registry, log *slog.Logger) *Engine {
	return &Engine{
		registry: registry,
		log:      log,
	}
}

// Detect classifies a batch.
//
// The batch must be non-empty and ordered by timestamp; an empty batch
// returns ErrEmptyBatch. Disabled detectors are skipped without being
// invoked. A detector error aborts and propagates rather than falling
// through to the next detector, because a broken detector must not hide
// behind a wrong, lower-confidence match. When no detector claims the batch
// the result is (nil, nil); after RegisterBuiltins that only happens for
// multi-event batches, since the fallback claims every singleton.
func (e *Engine) Detect(batch []domain.Event) (*domain.FileOperation, error) {
	if len(batch) == 0 {
		return nil, ErrEmptyBatch
	}

	for _, entry := range e.registry.All() {
		if !entry.Enabled {
			continue
		}

		op, err := entry.Detector.Detect(batch)
		if err != nil {
			return nil, fmt.Errorf("detector %s: %w", entry.Name, err)
		}
		if op == nil {
			continue
		}

		op.DetectorName = entry.Name
		e.log.Debug("operation detected",
			slog.String("detector", entry.Name),
			slog.String("type", op.Type.String()),
			slog.String("primary_path", op.PrimaryPath),
			slog.Int("batch_size", len(batch)),
			slog.Int("matched", len(op.MatchedEvents)))
		return op, nil
	}

	e.log.Debug("no detector claimed batch", slog.Int("batch_size", len(batch)))
	return nil, nil
}

var _ Detector = (*Engine)(nil)
