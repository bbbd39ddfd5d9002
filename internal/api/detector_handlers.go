package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/fsintent/fsintent-server/internal/detect"
)

func (s *Server) registerDetectorRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listDetectors",
		Method:      http.MethodGet,
		Path:        "/api/v1/detectors",
		Summary:     "List detectors",
		Description: "Returns all registered detectors in execution order (priority descending)",
		Tags:        []string{"Detectors"},
	}, s.handleListDetectors)

	huma.Register(s.api, huma.Operation{
		OperationID: "getDetector",
		Method:      http.MethodGet,
		Path:        "/api/v1/detectors/{name}",
		Summary:     "Get detector",
		Description: "Returns a registered detector by name",
		Tags:        []string{"Detectors"},
	}, s.handleGetDetector)

	huma.Register(s.api, huma.Operation{
		OperationID: "enableDetector",
		Method:      http.MethodPost,
		Path:        "/api/v1/detectors/{name}/enable",
		Summary:     "Enable detector",
		Description: "Resumes a muted detector",
		Tags:        []string{"Detectors"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleEnableDetector)

	huma.Register(s.api, huma.Operation{
		OperationID: "disableDetector",
		Method:      http.MethodPost,
		Path:        "/api/v1/detectors/{name}/disable",
		Summary:     "Disable detector",
		Description: "Mutes a detector without unregistering it; it is skipped until re-enabled",
		Tags:        []string{"Detectors"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDisableDetector)
}

// === DTOs ===

// DetectorResponse contains detector data in API responses.
type DetectorResponse struct {
	Name        string `json:"name" doc:"Unique detector name"`
	Priority    int    `json:"priority" doc:"Execution priority, highest runs first"`
	Description string `json:"description,omitempty" doc:"What the detector recognizes"`
	Enabled     bool   `json:"enabled" doc:"Disabled detectors are skipped"`
}

// ListDetectorsResponse contains all detectors in execution order.
type ListDetectorsResponse struct {
	Detectors []DetectorResponse `json:"detectors" doc:"Detectors in execution order"`
}

// ListDetectorsOutput wraps the list for Huma.
type ListDetectorsOutput struct {
	Body ListDetectorsResponse
}

// DetectorInput identifies a detector by name.
type DetectorInput struct {
	Name string `path:"name" doc:"Detector name"`
}

// DetectorOutput wraps one detector for Huma.
type DetectorOutput struct {
	Body DetectorResponse
}

// === Handlers ===

func (s *Server) handleListDetectors(_ context.Context, _ *struct{}) (*ListDetectorsOutput, error) {
	entries := s.services.Registry.All()

	resp := ListDetectorsResponse{Detectors: make([]DetectorResponse, 0, len(entries))}
	for _, entry := range entries {
		resp.Detectors = append(resp.Detectors, toDetectorResponse(entry))
	}
	return &ListDetectorsOutput{Body: resp}, nil
}

func (s *Server) handleGetDetector(_ context.Context, input *DetectorInput) (*DetectorOutput, error) {
	entry, ok := s.services.Registry.Get(input.Name)
	if !ok {
		return nil, huma.Error404NotFound("detector not found")
	}
	return &DetectorOutput{Body: toDetectorResponse(entry)}, nil
}

func (s *Server) handleEnableDetector(ctx context.Context, input *DetectorInput) (*DetectorOutput, error) {
	return s.toggleDetector(ctx, input.Name, true)
}

func (s *Server) handleDisableDetector(ctx context.Context, input *DetectorInput) (*DetectorOutput, error) {
	return s.toggleDetector(ctx, input.Name, false)
}

func (s *Server) toggleDetector(ctx context.Context, name string, enabled bool) (*DetectorOutput, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}

	if err := s.services.Registry.SetEnabled(name, enabled); err != nil {
		if errors.Is(err, detect.ErrUnknownDetector) {
			return nil, huma.Error404NotFound("detector not found")
		}
		return nil, err
	}

	s.logger.Info("detector toggled", "detector", name, "enabled", enabled)

	entry, _ := s.services.Registry.Get(name)
	return &DetectorOutput{Body: toDetectorResponse(entry)}, nil
}

func toDetectorResponse(entry detect.Entry) DetectorResponse {
	return DetectorResponse{
		Name:        entry.Name,
		Priority:    entry.Priority,
		Description: entry.Description,
		Enabled:     entry.Enabled,
	}
}
