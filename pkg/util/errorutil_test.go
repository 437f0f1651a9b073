package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"domain passthrough", NewValidationError("bad", nil), "VALIDATION_FAILED", http.StatusBadRequest},
		{"wrapped domain", fmt.Errorf("ctx: %w", NewForbidden("no")), "FORBIDDEN", http.StatusForbidden},
		{"no rows", fmt.Errorf("get incident: %w", pgx.ErrNoRows), "NOT_FOUND", http.StatusNotFound},
		{"fiber error", fiber.NewError(http.StatusForbidden, "insufficient role"), "FORBIDDEN", http.StatusForbidden},
		{"unknown", errors.New("boom"), "INTERNAL_ERROR", http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			de := ToDomainError(tc.err)
			require.NotNil(t, de)
			assert.Equal(t, tc.code, de.Code)
			assert.Equal(t, tc.status, de.HTTPStatus)
		})
	}
}

func TestInvalidTransitionKeepsCause(t *testing.T) {
	cause := errors.New("edge missing")
	err := NewInvalidTransition("NUEVO", "RESUELTO", cause)

	de := ToDomainError(err)
	assert.Equal(t, http.StatusUnprocessableEntity, de.HTTPStatus)
	assert.Equal(t, "NUEVO", de.Details["from"])
	assert.Equal(t, "RESUELTO", de.Details["to"])
	assert.ErrorIs(t, err, cause)
}

func TestMapErrorNil(t *testing.T) {
	assert.NoError(t, MapError(nil))
	assert.Nil(t, ToDomainError(nil))
}
