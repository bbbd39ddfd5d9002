package api

import (
	"context"
	"errors"
	"io/fs"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/fsintent/fsintent-server/internal/domain"
	"github.com/fsintent/fsintent-server/internal/processor"
)

func (s *Server) registerWatchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listWatches",
		Method:      http.MethodGet,
		Path:        "/api/v1/watches",
		Summary:     "List watched directories",
		Tags:        []string{"Watches"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListWatches)

	huma.Register(s.api, huma.Operation{
		OperationID: "createWatch",
		Method:      http.MethodPost,
		Path:        "/api/v1/watches",
		Summary:     "Watch a directory",
		Description: "Persists the watch root and starts delivering its events to the pipeline.",
		Tags:        []string{"Watches"},
		Security:    []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateWatch)

	huma.Register(s.api, huma.Operation{
		OperationID: "getWatch",
		Method:      http.MethodGet,
		Path:        "/api/v1/watches/{id}",
		Summary:     "Get one watch root",
		Tags:        []string{"Watches"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetWatch)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteWatch",
		Method:      http.MethodDelete,
		Path:        "/api/v1/watches/{id}",
		Summary:     "Stop watching a directory",
		Tags:        []string{"Watches"},
		Security:    []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteWatch)

	huma.Register(s.api, huma.Operation{
		OperationID: "enableWatch",
		Method:      http.MethodPost,
		Path:        "/api/v1/watches/{id}/enable",
		Summary:     "Resume a paused watch",
		Tags:        []string{"Watches"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleEnableWatch)

	huma.Register(s.api, huma.Operation{
		OperationID: "disableWatch",
		Method:      http.MethodPost,
		Path:        "/api/v1/watches/{id}/disable",
		Summary:     "Pause a watch without forgetting it",
		Tags:        []string{"Watches"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDisableWatch)
}

// === DTOs ===

// CreateWatchRequest asks the daemon to watch a directory.
type CreateWatchRequest struct {
	Path string `json:"path" validate:"required" doc:"Absolute path of an existing directory"`
}

// CreateWatchInput wraps the create request for Huma.
type CreateWatchInput struct {
	Body CreateWatchRequest
}

// WatchIDInput identifies one watch root.
type WatchIDInput struct {
	ID string `path:"id" doc:"Watch root ID"`
}

// WatchListResponse lists every persisted watch root.
type WatchListResponse struct {
	Watches []*domain.WatchRoot `json:"watches"`
}

// WatchListOutput wraps the watch listing for Huma.
type WatchListOutput struct {
	Body WatchListResponse
}

// WatchOutput wraps a single watch root.
type WatchOutput struct {
	Body *domain.WatchRoot
}

// === Handlers ===

func (s *Server) handleListWatches(ctx context.Context, input *struct{}) (*WatchListOutput, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}

	watches, err := s.services.Watches.ListWatches(ctx)
	if err != nil {
		return nil, err
	}
	return &WatchListOutput{Body: WatchListResponse{Watches: watches}}, nil
}

func (s *Server) handleCreateWatch(ctx context.Context, input *CreateWatchInput) (*WatchOutput, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	root, err := s.services.Watches.AddWatch(ctx, input.Body.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, huma.Error404NotFound("directory not found")
		}
		if errors.Is(err, processor.ErrNotDirectory) {
			return nil, huma.Error422UnprocessableEntity("path is not a directory")
		}
		return nil, err
	}

	s.logger.Info("watch added", "watch_id", root.ID, "path", root.Path)
	return &WatchOutput{Body: root}, nil
}

func (s *Server) handleGetWatch(ctx context.Context, input *WatchIDInput) (*WatchOutput, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}

	root, err := s.services.Watches.GetWatch(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &WatchOutput{Body: root}, nil
}

func (s *Server) handleDeleteWatch(ctx context.Context, input *WatchIDInput) (*struct{}, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}

	if err := s.services.Watches.RemoveWatch(ctx, input.ID); err != nil {
		return nil, err
	}

	s.logger.Info("watch removed", "watch_id", input.ID)
	return nil, nil
}

func (s *Server) handleEnableWatch(ctx context.Context, input *WatchIDInput) (*WatchOutput, error) {
	return s.toggleWatch(ctx, input.ID, true)
}

func (s *Server) handleDisableWatch(ctx context.Context, input *WatchIDInput) (*WatchOutput, error) {
	return s.toggleWatch(ctx, input.ID, false)
}

func (s *Server) toggleWatch(ctx context.Context, id string, enabled bool) (*WatchOutput, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}

	root, err := s.services.Watches.SetEnabled(ctx, id, enabled)
	if err != nil {
		return nil, err
	}

	s.logger.Info("watch toggled", "watch_id", id, "enabled", enabled)
	return &WatchOutput{Body: root}, nil
}
