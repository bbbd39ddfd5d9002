package errors

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		code Code
		want int
	}{
		{"not found", CodeNotFound, http.StatusNotFound},
		{"already exists", CodeAlreadyExists, http.StatusConflict},
		{"conflict", CodeConflict, http.StatusConflict},
		{"already configured", CodeAlreadyConfigured, http.StatusConflict},
		{"unauthorized", CodeUnauthorized, http.StatusUnauthorized},
		{"invalid credentials", CodeInvalidCredentials, http.StatusUnauthorized},
		{"token expired", CodeTokenExpired, http.StatusUnauthorized},
		{"forbidden", CodeForbidden, http.StatusForbidden},
		{"validation", CodeValidation, http.StatusBadRequest},
		{"unavailable", CodeUnavailable, http.StatusServiceUnavailable},
		{"internal", CodeInternal, http.StatusInternalServerError},
		{"unknown code falls back to 500", Code("BOGUS"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.HTTPStatus())
		})
	}
}

func TestErrorIs(t *testing.T) {
	err := NotFound("operation op-abc123 not found")

	assert.True(t, Is(err, ErrNotFound))
	assert.False(t, Is(err, ErrConflict))
}

func TestErrorIsThroughWrapping(t *testing.T) {
	inner := Unavailable("search disabled")
	outer := Wrap(inner, CodeInternal, "query failed")

	// The outer code wins for direct comparison, but the chain
	// still exposes the inner error.
	assert.True(t, Is(outer, ErrInternal))
	assert.True(t, Is(outer, ErrUnavailable))
}

func TestErrorMessageIncludesCause(t *testing.T) {
	cause := NotFound("no such watch")
	err := Wrap(cause, CodeInternal, "remove watch")

	assert.Equal(t, "remove watch: no such watch", err.Error())
	assert.Equal(t, cause, Unwrap(err))
}

func TestWithDetailsDoesNotMutate(t *testing.T) {
	base := Validation("priority out of range")
	detailed := base.WithDetails(map[string]any{"priority": 120})

	assert.Nil(t, base.Details)
	require.NotNil(t, detailed.Details)
	assert.Equal(t, base.Code, detailed.Code)
	assert.Equal(t, base.Message, detailed.Message)
}

func TestAsExtractsDomainError(t *testing.T) {
	err := Conflictf("detector %q already registered", "temp_rename")

	var domainErr *Error
	require.True(t, As(err, &domainErr))
	assert.Equal(t, CodeConflict, domainErr.Code)
	assert.Equal(t, http.StatusConflict, domainErr.HTTPStatus())
}
