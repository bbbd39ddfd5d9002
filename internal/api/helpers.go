package api

import (
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/fsintent/fsintent-server/internal/http/response"
)

// EnvelopeTransformer wraps successful response bodies in the standard
// {success, data} envelope. Error bodies already carry their own shape
// (APIError) and pass through untouched, as do empty 204 responses.
func EnvelopeTransformer(_ huma.Context, _ string, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if _, ok := v.(huma.StatusError); ok {
		return v, nil
	}
	return response.Envelope{Success: true, Data: v}, nil
}

// splitCSV splits a comma-separated query parameter, trimming whitespace and
// dropping empty segments. Returns nil for an empty input.
func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for part := range strings.SplitSeq(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
