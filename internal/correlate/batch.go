package correlate

import (
	"time"

	"github.com/fsintent/fsintent-server/internal/domain"
)

// Batch is one correlation window's worth of events, ordered by timestamp
// ascending. The ID ties journal records, SSE payloads, and log lines back
// to the same window.
type Batch struct {
	OpenedAt time.Time
	ClosedAt time.Time
	ID       string
	Events   []domain.Event
}

// Span reports how long the window was open.
func (b Batch) Span() time.Duration {
	return b.ClosedAt.Sub(b.OpenedAt)
}
