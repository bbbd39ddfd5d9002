// Package correlate groups raw filesystem events into time-correlated
// batches. An editor save, a backup rotation, or a batch rename arrives from
// the watcher as a burst of individual events; the correlator collects a
// burst into one window and hands it downstream as a single Batch for
// classification.
package correlate

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fsintent/fsintent-server/internal/domain"
	"github.com/fsintent/fsintent-server/internal/normalize"
)

// Correlator windows a stream of events. A window opens on the first event
// and closes when the stream goes quiet for IdleGap, when the window has
// been open MaxSpan, or when it holds MaxEvents.
type Correlator struct {
	logger *slog.Logger
	opts   Options

	in      chan domain.Event
	flushc  chan struct{}
	batches chan Batch

	// Window state is owned by the run goroutine.
	window   []domain.Event
	batchID  string
	openedAt time.Time

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a correlator. Call Start before feeding it events.
func New(logger *slog.Logger, opts Options) *Correlator {
	opts.setDefaults()

	return &Correlator{
		logger:  logger,
		opts:    opts,
		in:      make(chan domain.Event, 256),
		flushc:  make(chan struct{}),
		batches: make(chan Batch, 16),
		done:    make(chan struct{}),
	}
}

// Add hands one event to the correlator. Safe for concurrent use; events
// added after Stop has begun are dropped.
func (c *Correlator) Add(event domain.Event) {
	select {
	case c.in <- event:
	case <-c.done:
	}
}

// Flush asks the loop to close the current window without waiting for the
// idle gap. An empty window is a no-op.
func (c *Correlator) Flush() {
	select {
	case c.flushc <- struct{}{}:
	case <-c.done:
	}
}

// Batches returns the channel closed windows are delivered on. It is closed
// by Stop after the final window has been flushed.
func (c *Correlator) Batches() <-chan Batch {
	return c.batches
}

// Start launches the windowing loop.
func (c *Correlator) Start(ctx context.Context) error {
	c.wg.Add(1)
	go c.run(ctx)
	return nil
}

// Stop drains queued events into a final window, flushes it, and closes
// the Batches channel. Safe to call more than once.
func (c *Correlator) Stop() error {
	c.stopOnce.Do(func() {
		close(c.done)
		c.wg.Wait()
		close(c.batches)
	})
	return nil
}

func (c *Correlator) run(ctx context.Context) {
	defer c.wg.Done()

	// A nil channel blocks forever in select, so a closed window is simply
	// a window with no armed timers.
	var (
		idleTimer *time.Timer
		spanTimer *time.Timer
		idle      <-chan time.Time
		span      <-chan time.Time
	)

	disarm := func() {
		if idleTimer != nil {
			idleTimer.Stop()
			idleTimer, idle = nil, nil
		}
		if spanTimer != nil {
			spanTimer.Stop()
			spanTimer, span = nil, nil
		}
	}

	closeWindow := func() {
		disarm()
		c.flushWindow()
	}

	for {
		select {
		case <-ctx.Done():
			closeWindow()
			return

		case <-c.done:
			// Drain anything already queued so a fast shutdown doesn't
			// drop captured events.
			for {
				select {
				case event := <-c.in:
					c.ingest(event)
					if len(c.window) >= c.opts.MaxEvents {
						closeWindow()
					}
				default:
					closeWindow()
					return
				}
			}

		case event := <-c.in:
			opened := len(c.window) == 0
			c.ingest(event)

			if opened {
				spanTimer = time.NewTimer(c.opts.MaxSpan)
				span = spanTimer.C
				idleTimer = time.NewTimer(c.opts.IdleGap)
				idle = idleTimer.C
				c.logger.Debug("window opened", "batch_id", c.batchID)
			} else {
				idleTimer.Reset(c.opts.IdleGap)
			}

			if len(c.window) >= c.opts.MaxEvents {
				closeWindow()
			}

		case <-idle:
			idleTimer, idle = nil, nil
			closeWindow()

		case <-span:
			spanTimer, span = nil, nil
			closeWindow()

		case <-c.flushc:
			closeWindow()
		}
	}
}

// ingest normalizes and appends one event, opening a window if none is open.
func (c *Correlator) ingest(event domain.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.Path = normalize.Path(event.Path)
	event.DestPath = normalize.Path(event.DestPath)

	if len(c.window) == 0 {
		c.batchID = uuid.NewString()
		c.openedAt = time.Now()
	}
	c.window = append(c.window, event)
}

func (c *Correlator) flushWindow() {
	if len(c.window) == 0 {
		return
	}

	events := c.window
	c.window = nil

	// Input arrives in capture order from a single goroutine, but replayed
	// histories may not, and downstream relies on the ordering.
	slices.SortStableFunc(events, func(a, b domain.Event) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	batch := Batch{
		ID:       c.batchID,
		OpenedAt: c.openedAt,
		ClosedAt: time.Now(),
		Events:   events,
	}

	c.logger.Debug("window closed",
		"batch_id", batch.ID,
		"batch_size", len(batch.Events),
		"span", batch.Span(),
	)

	c.emit(batch)
}

// emit hands a closed batch to the consumer. The blocking send is the
// backpressure path; once shutdown has begun the buffered channel almost
// always has room for the final window, and a consumer that is already gone
// costs a warning instead of a wedged Stop.
func (c *Correlator) emit(batch Batch) {
	select {
	case c.batches <- batch:
		return
	case <-c.done:
	}

	select {
	case c.batches <- batch:
	default:
		c.logger.Warn("dropping batch, no consumer",
			"batch_id", batch.ID,
			"batch_size", len(batch.Events),
		)
	}
}
