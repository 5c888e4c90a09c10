package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opsrelay/opsrelay/pkg/services"
)

func TestMapServiceError(t *testing.T) {
	t.Run("validation error maps to 400 with message", func(t *testing.T) {
		err := services.NewValidationError("status", "unknown status value")
		httpErr := mapServiceError(err)
		assert.Equal(t, http.StatusBadRequest, httpErr.Code)
		assert.Contains(t, httpErr.Message, "unknown status value")
	})

	t.Run("invalid transition maps to 400 naming both states", func(t *testing.T) {
		err := &services.InvalidTransitionError{From: "investigating", To: "open"}
		httpErr := mapServiceError(err)
		assert.Equal(t, http.StatusBadRequest, httpErr.Code)
		assert.Equal(t, "Invalid status transition from investigating to open", httpErr.Message)
	})

	t.Run("not found maps to 404", func(t *testing.T) {
		httpErr := mapServiceError(services.ErrNotFound)
		assert.Equal(t, http.StatusNotFound, httpErr.Code)
	})

	t.Run("already exists maps to 409", func(t *testing.T) {
		httpErr := mapServiceError(services.ErrAlreadyExists)
		assert.Equal(t, http.StatusConflict, httpErr.Code)
	})

	t.Run("unknown errors map to 500", func(t *testing.T) {
		httpErr := mapServiceError(errors.New("boom"))
		assert.Equal(t, http.StatusInternalServerError, httpErr.Code)
	})
}
