package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/fsintent/fsintent-server/internal/domain"
	"github.com/fsintent/fsintent-server/internal/processor"
	"github.com/fsintent/fsintent-server/internal/search"
	"github.com/fsintent/fsintent-server/internal/store"
)

func (s *Server) registerOperationRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listOperations",
		Method:      http.MethodGet,
		Path:        "/api/v1/operations",
		Summary:     "List journaled operations",
		Description: "Returns classified operations newest-first with cursor pagination.",
		Tags:        []string{"Operations"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListOperations)

	huma.Register(s.api, huma.Operation{
		OperationID: "getOperation",
		Method:      http.MethodGet,
		Path:        "/api/v1/operations/{id}",
		Summary:     "Get one journaled operation",
		Tags:        []string{"Operations"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetOperation)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchOperations",
		Method:      http.MethodGet,
		Path:        "/api/v1/operations/search",
		Summary:     "Full-text search over the journal",
		Tags:        []string{"Operations"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleSearchOperations)

	huma.Register(s.api, huma.Operation{
		OperationID: "getOperationStats",
		Method:      http.MethodGet,
		Path:        "/api/v1/operations/stats",
		Summary:     "Journal and pipeline statistics",
		Tags:        []string{"Operations"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleOperationStats)
}

// === DTOs ===

// ListOperationsInput carries journal listing filters.
type ListOperationsInput struct {
	Type     string `query:"type" doc:"Filter to one operation type (e.g. AtomicSave)"`
	Detector string `query:"detector" doc:"Filter to one detector name"`
	Path     string `query:"path" doc:"Filter to operations whose affected paths contain this substring"`
	Since    string `query:"since" doc:"Lower bound on detection time, RFC3339, inclusive"`
	Until    string `query:"until" doc:"Upper bound on detection time, RFC3339, exclusive"`
	Limit    int    `query:"limit" minimum:"1" maximum:"1000" doc:"Page size, default 100"`
	Cursor   string `query:"cursor" doc:"Opaque cursor from a previous page"`
}

// OperationListResponse is one page of the journal.
type OperationListResponse struct {
	Operations []*domain.OperationRecord `json:"operations"`
	NextCursor string                    `json:"next_cursor,omitempty"`
	HasMore    bool                      `json:"has_more"`
}

// ListOperationsOutput wraps the journal page for Huma.
type ListOperationsOutput struct {
	Body OperationListResponse
}

// GetOperationInput identifies one journaled operation.
type GetOperationInput struct {
	ID string `path:"id" doc:"Operation record ID"`
}

// GetOperationOutput wraps a single operation record.
type GetOperationOutput struct {
	Body *domain.OperationRecord
}

// SearchOperationsInput carries full-text search parameters.
type SearchOperationsInput struct {
	Query     string `query:"q" required:"true" doc:"Search query; supports field prefixes and wildcards"`
	Types     string `query:"types" doc:"Comma-separated operation type names"`
	Detectors string `query:"detectors" doc:"Comma-separated detector names"`
	Dir       string `query:"dir" doc:"Restrict to operations under this directory"`
	WatchRoot string `query:"watch_root" doc:"Restrict to one watched tree"`
	Since     string `query:"since" doc:"Lower bound on detection time, RFC3339"`
	Until     string `query:"until" doc:"Upper bound on detection time, RFC3339"`
	Limit     int    `query:"limit" minimum:"1" maximum:"200" doc:"Page size, default 25"`
	Offset    int    `query:"offset" minimum:"0" doc:"Result offset"`
	SortBy    string `query:"sort" enum:"relevance,path,recent,batch_size" doc:"Sort order, default relevance"`
}

// SearchOperationsOutput wraps a search result page.
type SearchOperationsOutput struct {
	Body *search.SearchResult
}

// OperationStatsResponse combines journal counts with live pipeline counters.
type OperationStatsResponse struct {
	Total    int             `json:"total"`
	ByType   map[string]int  `json:"by_type"`
	Pipeline processor.Stats `json:"pipeline"`
}

// OperationStatsOutput wraps the stats response for Huma.
type OperationStatsOutput struct {
	Body OperationStatsResponse
}

// === Handlers ===

func (s *Server) handleListOperations(ctx context.Context, input *ListOperationsInput) (*ListOperationsOutput, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}

	filter := store.OperationFilter{
		Detector:     input.Detector,
		PathContains: input.Path,
	}

	if input.Type != "" {
		t, err := domain.ParseOperationType(input.Type)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity("invalid operation type", err)
		}
		filter.Type = t
	}

	var err error
	if filter.Since, err = parseTimeParam(input.Since, "since"); err != nil {
		return nil, err
	}
	if filter.Until, err = parseTimeParam(input.Until, "until"); err != nil {
		return nil, err
	}

	page, err := s.store.ListOperations(ctx, filter, store.PaginationParams{
		Limit:  input.Limit,
		Cursor: input.Cursor,
	})
	if err != nil {
		return nil, err
	}

	return &ListOperationsOutput{Body: OperationListResponse{
		Operations: page.Items,
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	}}, nil
}

func (s *Server) handleGetOperation(ctx context.Context, input *GetOperationInput) (*GetOperationOutput, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}

	rec, err := s.store.GetOperation(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &GetOperationOutput{Body: rec}, nil
}

func (s *Server) handleSearchOperations(ctx context.Context, input *SearchOperationsInput) (*SearchOperationsOutput, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}
	if s.services.Search == nil {
		return nil, huma.Error503ServiceUnavailable("search is disabled by configuration")
	}

	params := search.SearchParams{
		Query:     input.Query,
		Types:     splitCSV(input.Types),
		Detectors: splitCSV(input.Detectors),
		Dir:       input.Dir,
		WatchRoot: input.WatchRoot,
		Limit:     input.Limit,
		Offset:    input.Offset,
		SortBy:    input.SortBy,
	}

	var err error
	if params.Since, err = parseTimeParam(input.Since, "since"); err != nil {
		return nil, err
	}
	if params.Until, err = parseTimeParam(input.Until, "until"); err != nil {
		return nil, err
	}

	result, err := s.services.Search.Search(ctx, params)
	if err != nil {
		return nil, err
	}
	return &SearchOperationsOutput{Body: result}, nil
}

func (s *Server) handleOperationStats(ctx context.Context, input *struct{}) (*OperationStatsOutput, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}

	byType, err := s.store.CountByType(ctx)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, n := range byType {
		total += n
	}

	return &OperationStatsOutput{Body: OperationStatsResponse{
		Total:    total,
		ByType:   byType,
		Pipeline: s.services.Processor.Stats(),
	}}, nil
}

func parseTimeParam(value, name string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, huma.Error422UnprocessableEntity("invalid "+name+" timestamp", err)
	}
	return t, nil
}
