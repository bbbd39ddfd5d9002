package validation_test

import (
	"errors"
	"net/http"
	"testing"

	domainerrors "github.com/fsintent/fsintent-server/internal/errors"
	"github.com/fsintent/fsintent-server/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type watchRequest struct {
	Path string `json:"path" validate:"required"`
	Name string `json:"name" validate:"max=64"`
}

type batchRequest struct {
	Events []eventRequest `json:"events" validate:"required,min=1,dive"`
}

type eventRequest struct {
	Path string `json:"path" validate:"required"`
	Kind string `json:"kind" validate:"required,oneof=created modified deleted moved"`
}

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()

	err := v.Validate(watchRequest{Path: "/home/dev/notes", Name: "notes"})
	assert.NoError(t, err)
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name       string
		req        any
		wantField  string
		wantErrMsg string
	}{
		{
			name:       "missing required field",
			req:        watchRequest{Path: ""},
			wantField:  "path",
			wantErrMsg: "is required",
		},
		{
			name:       "name too long",
			req:        watchRequest{Path: "/srv/data", Name: string(make([]byte, 65))},
			wantField:  "name",
			wantErrMsg: "must not exceed 64 characters",
		},
		{
			name:       "empty event batch",
			req:        batchRequest{Events: []eventRequest{}},
			wantField:  "events",
			wantErrMsg: "must contain at least 1 items",
		},
		{
			name:       "unknown event kind",
			req:        batchRequest{Events: []eventRequest{{Path: "/tmp/a", Kind: "touched"}}},
			wantField:  "kind",
			wantErrMsg: "must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			require.Error(t, err)

			var domainErr *domainerrors.Error
			require.True(t, errors.As(err, &domainErr))
			assert.Equal(t, domainerrors.CodeValidation, domainErr.Code)
			assert.Equal(t, http.StatusBadRequest, domainErr.HTTPStatus())

			fields, ok := domainErr.Details.(map[string]string)
			require.True(t, ok, "details should carry per-field messages")

			found := false
			for field, msg := range fields {
				if field == tt.wantField || len(field) > len(tt.wantField) {
					// dive produces nested names like events[0].kind
					if field == tt.wantField || hasSuffixField(field, tt.wantField) {
						found = true
						assert.Contains(t, msg, tt.wantErrMsg)
					}
				}
			}
			assert.True(t, found, "expected a message for field %q in %v", tt.wantField, fields)
		})
	}
}

func TestValidator_JSONFieldNames(t *testing.T) {
	v := validation.New()

	err := v.Validate(watchRequest{Path: ""})
	assert.Error(t, err)

	var domainErr *domainerrors.Error
	assert.True(t, errors.As(err, &domainErr))

	fields, ok := domainErr.Details.(map[string]string)
	assert.True(t, ok)

	// Field names come from the json tag, not the Go field name.
	_, hasJSONName := fields["path"]
	_, hasGoName := fields["Path"]
	assert.True(t, hasJSONName)
	assert.False(t, hasGoName)
}

func hasSuffixField(field, want string) bool {
	if len(field) <= len(want) {
		return false
	}
	return field[len(field)-len(want):] == want && field[len(field)-len(want)-1] == '.'
}
