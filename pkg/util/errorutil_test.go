package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorConstructorsCarryCodeAndStatus(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"validation", NewValidationError("bad input", nil), "VALIDATION_FAILED", http.StatusBadRequest},
		{"conflict", NewConflict("busy", nil), "CONFLICT", http.StatusConflict},
		{"persistence", NewPersistenceError("db down", errors.New("timeout")), "PERSISTENCE_FAILED", http.StatusBadGateway},
		{"not found", NewNotFound("ticket", nil), "NOT_FOUND", http.StatusNotFound},
		{"unauthorized", NewUnauthorized("no token"), "UNAUTHORIZED", http.StatusUnauthorized},
		{"internal", NewInternalError(errors.New("boom")), "INTERNAL_ERROR", http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var de *DomainError
			require.True(t, errors.As(tc.err, &de))
			assert.Equal(t, tc.code, de.Code)
			assert.Equal(t, tc.status, de.HTTPStatus)
			assert.True(t, IsCode(tc.err, tc.code))
		})
	}
}

func TestDomainErrorMessageIncludesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewPersistenceError("status update failed", cause)

	assert.Contains(t, err.Error(), "status update failed")
	assert.Contains(t, err.Error(), "connection refused")
	assert.ErrorIs(t, err, cause)
}

func TestToDomainErrorMapsNoRowsToNotFound(t *testing.T) {
	de := ToDomainError(fmt.Errorf("loading ticket: %w", pgx.ErrNoRows))
	require.NotNil(t, de)
	assert.Equal(t, "NOT_FOUND", de.Code)
	assert.Equal(t, http.StatusNotFound, de.HTTPStatus)
	assert.ErrorIs(t, de, pgx.ErrNoRows, "mapping must keep the cause for logs")
}

func TestToDomainErrorPassesThroughDomainErrors(t *testing.T) {
	original := NewConflict("busy", map[string]any{"ticket_id": "t1"})
	de := ToDomainError(fmt.Errorf("wrapped: %w", original))
	require.NotNil(t, de)
	assert.Equal(t, "CONFLICT", de.Code)
	assert.Equal(t, "t1", de.Details["ticket_id"])
}

func TestToDomainErrorDefaultsToInternal(t *testing.T) {
	de := ToDomainError(errors.New("something odd"))
	require.NotNil(t, de)
	assert.Equal(t, "INTERNAL_ERROR", de.Code)

	assert.Nil(t, ToDomainError(nil))
	assert.NoError(t, MapError(nil))
}

func TestIsCodeRejectsForeignErrors(t *testing.T) {
	assert.False(t, IsCode(errors.New("plain"), "CONFLICT"))
	assert.False(t, IsCode(nil, "CONFLICT"))
	assert.False(t, IsCode(NewConflict("busy", nil), "VALIDATION_FAILED"))
}
