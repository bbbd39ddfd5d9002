package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns server health status with component checks",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status" doc:"Component status: healthy, degraded, or unhealthy"`
	Latency string `json:"latency,omitempty" doc:"Response time for this component"`
	Message string `json:"message,omitempty" doc:"Additional status information"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status" doc:"Overall status: healthy, degraded, or unhealthy"`
	Components map[string]ComponentHealth `json:"components" doc:"Individual component statuses"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

func (s *Server) handleHealthCheck(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	components := make(map[string]ComponentHealth)
	overall := "healthy"

	journal := s.checkJournal(ctx)
	components["journal"] = journal
	if journal.Status != "healthy" {
		overall = "unhealthy"
	}

	search := s.checkSearchIndex()
	components["search"] = search
	if search.Status == "unhealthy" {
		overall = "unhealthy"
	} else if search.Status == "degraded" && overall == "healthy" {
		overall = "degraded"
	}

	pipeline := s.checkPipeline()
	components["pipeline"] = pipeline
	if pipeline.Status == "degraded" && overall == "healthy" {
		overall = "degraded"
	}

	components["stream"] = s.checkStream()

	return &HealthOutput{Body: HealthResponse{
		Status:     overall,
		Components: components,
	}}, nil
}

// checkJournal verifies the Badger journal answers reads.
func (s *Server) checkJournal(ctx context.Context) ComponentHealth {
	start := time.Now()

	if _, err := s.store.ListWatches(ctx); err != nil {
		return ComponentHealth{
			Status:  "unhealthy",
			Latency: time.Since(start).String(),
			Message: err.Error(),
		}
	}

	return ComponentHealth{
		Status:  "healthy",
		Latency: time.Since(start).String(),
	}
}

// checkSearchIndex reports on the full-text index; disabled search is
// degraded, not unhealthy, because the journal remains queryable.
func (s *Server) checkSearchIndex() ComponentHealth {
	if s.services.Search == nil {
		return ComponentHealth{
			Status:  "degraded",
			Message: "search disabled by configuration",
		}
	}

	start := time.Now()
	count, err := s.services.Search.DocumentCount()
	if err != nil {
		return ComponentHealth{
			Status:  "unhealthy",
			Latency: time.Since(start).String(),
			Message: err.Error(),
		}
	}

	return ComponentHealth{
		Status:  "healthy",
		Latency: time.Since(start).String(),
		Message: "indexed " + strconv.FormatUint(count, 10) + " operations",
	}
}

// checkPipeline surfaces the capture pipeline counters. A pipeline with
// detector errors is degraded: detection still runs, but a deployed
// detector is misbehaving.
func (s *Server) checkPipeline() ComponentHealth {
	stats := s.services.Processor.Stats()

	status := "healthy"
	message := ""
	if stats.DetectErrors > 0 || stats.JournalErrors > 0 {
		status = "degraded"
		message = "pipeline reported errors; see logs"
	}

	return ComponentHealth{
		Status:  status,
		Message: message,
	}
}

// checkStream reports the live stream fan-out state.
func (s *Server) checkStream() ComponentHealth {
	if s.streams == nil || s.streams.Manager == nil {
		return ComponentHealth{
			Status:  "degraded",
			Message: "event stream not configured",
		}
	}
	return ComponentHealth{
		Status:  "healthy",
		Message: "serving " + strconv.Itoa(s.streams.Manager.ClientCount()) + " clients",
	}
}
