package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/fsintent/fsintent-server/internal/domain"
)

func (s *Server) registerDetectRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "detectOperation",
		Method:      http.MethodPost,
		Path:        "/api/v1/detect",
		Summary:     "Classify an event batch",
		Description: "Runs the detection engine over a posted event batch without journaling the result. Intended for tooling and detector debugging.",
		Tags:        []string{"Detection"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDetect)
}

// === DTOs ===

// EventRequest is one filesystem event in a posted batch.
type EventRequest struct {
	Path      string   `json:"path" validate:"required" doc:"Absolute path the event concerns"`
	DestPath  string   `json:"dest_path,omitempty" doc:"Move destination; required for moved events"`
	Kind      string   `json:"kind" validate:"required,oneof=created modified deleted moved" doc:"Event kind"`
	Timestamp FlexTime `json:"timestamp,omitzero" doc:"Capture instant; RFC3339 or epoch milliseconds"`
}

// DetectRequest is the request body for classifying a batch.
type DetectRequest struct {
	Events []EventRequest `json:"events" validate:"required,min=1,dive" doc:"Ordered event batch"`
}

// DetectInput wraps the detect request for Huma.
type DetectInput struct {
	Body DetectRequest
}

// OperationResponse contains a classified operation in API responses.
type OperationResponse struct {
	Type          string         `json:"type" doc:"Operation type"`
	PrimaryPath   string         `json:"primary_path" doc:"Path the user conceptually acted on"`
	AffectedPaths []string       `json:"affected_paths" doc:"Every path the operation touched"`
	MatchedEvents []domain.Event `json:"matched_events" doc:"Events the winning detector claimed"`
	DetectorName  string         `json:"detector_name" doc:"Detector that produced the match"`
}

// DetectResponse is the classification result for a posted batch.
type DetectResponse struct {
	Matched   bool               `json:"matched" doc:"Whether any detector claimed the batch"`
	Operation *OperationResponse `json:"operation,omitempty" doc:"The classification, when matched"`
}

// DetectOutput wraps the detect response for Huma.
type DetectOutput struct {
	Body DetectResponse
}

// === Handler ===

func (s *Server) handleDetect(ctx context.Context, input *DetectInput) (*DetectOutput, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	batch, err := toBatch(input.Body.Events)
	if err != nil {
		return nil, err
	}

	op, err := s.services.Engine.Detect(batch)
	if err != nil {
		// A detector defect, surfaced loudly rather than hidden behind
		// a lower-confidence match.
		s.logger.Error("detection failed", "batch_size", len(batch), "error", err)
		return nil, huma.Error500InternalServerError("detection failed", err)
	}

	if op == nil {
		return &DetectOutput{Body: DetectResponse{Matched: false}}, nil
	}

	return &DetectOutput{Body: DetectResponse{
		Matched:   true,
		Operation: toOperationResponse(op),
	}}, nil
}

// toBatch converts posted events into a domain batch, enforcing the batch
// invariants the engine assumes: moved events carry a destination and
// timestamps ascend. Missing timestamps are synthesized in input order so
// hand-written batches stay convenient.
func toBatch(events []EventRequest) ([]domain.Event, error) {
	batch := make([]domain.Event, 0, len(events))
	base := time.Now()

	var prev time.Time
	for i, e := range events {
		var kind domain.EventKind
		if err := kind.UnmarshalText([]byte(e.Kind)); err != nil {
			return nil, huma.Error422UnprocessableEntity("invalid event kind", err)
		}

		if kind == domain.EventMoved && e.DestPath == "" {
			return nil, huma.Error422UnprocessableEntity("moved event missing dest_path")
		}
		if kind != domain.EventMoved && e.DestPath != "" {
			return nil, huma.Error422UnprocessableEntity("dest_path is only valid for moved events")
		}

		ts := e.Timestamp.Time
		if ts.IsZero() {
			ts = base.Add(time.Duration(i) * time.Millisecond)
		}
		if !prev.IsZero() && ts.Before(prev) {
			return nil, huma.Error422UnprocessableEntity("event timestamps must be ascending")
		}
		prev = ts

		batch = append(batch, domain.Event{
			Path:      e.Path,
			DestPath:  e.DestPath,
			Kind:      kind,
			Timestamp: ts,
		})
	}
	return batch, nil
}

func toOperationResponse(op *domain.FileOperation) *OperationResponse {
	return &OperationResponse{
		Type:          op.Type.String(),
		PrimaryPath:   op.PrimaryPath,
		AffectedPaths: op.AffectedPaths,
		MatchedEvents: op.MatchedEvents,
		DetectorName:  op.DetectorName,
	}
}
