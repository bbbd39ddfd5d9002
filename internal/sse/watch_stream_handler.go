package sse

import (
	"encoding/json/v2"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// WatchStreamHandler handles SSE connections scoped to a single watch root.
// Endpoint: GET /api/v1/watches/{watch_id}/stream
//
// Unlike the global event stream, only operations detected under the chosen
// watch root flow through this connection.
type WatchStreamHandler struct {
	broadcaster *WatchBroadcaster
	logger      *slog.Logger
}

// NewWatchStreamHandler creates a new handler for per-watch operation SSE.
func NewWatchStreamHandler(broadcaster *WatchBroadcaster, logger *slog.Logger) *WatchStreamHandler {
	return &WatchStreamHandler{
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// ServeHTTP handles the SSE connection for a single watch root.
// The watchID must be provided via the request context (set by router).
func (h *WatchStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request, watchID string) {
	// Only accept GET requests.
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Check if request context is already canceled.
	if r.Context().Err() != nil {
		return
	}

	// Set SSE headers.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	rc := http.NewResponseController(w)

	// Flush headers immediately.
	if err := rc.Flush(); err != nil {
		h.logger.Error("failed to flush headers", slog.String("error", err.Error()))
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	// Subscribe to operations for this watch root.
	sub := h.broadcaster.Subscribe(watchID)
	defer h.broadcaster.Unsubscribe(sub)

	subLogger := h.logger.With(slog.String("watch_id", watchID))

	// Send initial connection message.
	if err := h.sendEvent(w, rc, "connected", map[string]string{
		"watch_id": watchID,
		"message":  "Watch stream established",
	}); err != nil {
		subLogger.Warn("failed to send initial message", slog.String("error", err.Error()))
		return
	}

	// Stream events until client disconnects.
	ctx := r.Context()

	// Send periodic heartbeat to keep connection alive.
	heartbeatTicker := time.NewTicker(30 * time.Second)
	defer heartbeatTicker.Stop()

	for {
		select {
		case event, ok := <-sub.EventChan:
			if !ok {
				return
			}
			if err := h.sendEvent(w, rc, string(EventOperationDetected), event); err != nil {
				subLogger.Info("client disconnected during send")
				return
			}

		case <-heartbeatTicker.C:
			heartbeat := NewHeartbeatEvent()
			if err := h.sendEvent(w, rc, string(heartbeat.Type), heartbeat); err != nil {
				subLogger.Info("client disconnected during heartbeat")
				return
			}

		case <-sub.Done:
			// Watch root removed or broadcaster shut down.
			subLogger.Info("subscriber closed by broadcaster")
			return

		case <-ctx.Done():
			// Client disconnected.
			subLogger.Info("client context canceled")
			return
		}
	}
}

// sendEvent writes an SSE event to the response writer.
func (h *WatchStreamHandler) sendEvent(w http.ResponseWriter, rc *http.ResponseController, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "data: %s\n\n", jsonData); err != nil {
		return err
	}

	if err := rc.Flush(); err != nil {
		return err
	}

	// Set write deadline for keepalive.
	if err := rc.SetWriteDeadline(time.Now().Add(60 * time.Second)); err != nil {
		h.logger.Debug("failed to set write deadline", slog.String("error", err.Error()))
	}

	return nil
}
