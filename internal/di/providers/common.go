package providers

import "time"

const (
	// shutdownTimeout is how long each provider gets to shut down cleanly.
	shutdownTimeout = 30 * time.Second
)
