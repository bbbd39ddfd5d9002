package correlate

import "time"

const (
	defaultIdleGap   = 500 * time.Millisecond
	defaultMaxSpan   = 2 * time.Second
	defaultMaxEvents = 256
)

// Options tunes the windowing behavior.
type Options struct {
	// IdleGap closes the window after this much quiet. Editors fire their
	// whole save dance within tens of milliseconds, so half a second of
	// silence means the operation is over.
	IdleGap time.Duration

	// MaxSpan caps how long a window stays open regardless of activity, so
	// a steady drip of events (a long-running sync, a build) still produces
	// batches instead of one unbounded window.
	MaxSpan time.Duration

	// MaxEvents flushes the window immediately once it holds this many
	// events.
	MaxEvents int
}

func (o *Options) setDefaults() {
	if o.IdleGap <= 0 {
		o.IdleGap = defaultIdleGap
	}
	if o.MaxSpan <= 0 {
		o.MaxSpan = defaultMaxSpan
	}
	if o.MaxEvents <= 0 {
		o.MaxEvents = defaultMaxEvents
	}
}
