package shared

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAppError(t *testing.T) {
	appErr, ok := GetAppError(NewNotFoundError("App not found"))
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, appErr.StatusCode)
	assert.Equal(t, "App not found", appErr.Message)

	// Wrapped errors still unwrap to the AppError
	wrapped := fmt.Errorf("handler: %w", NewConflictError("taken"))
	appErr, ok = GetAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, http.StatusConflict, appErr.StatusCode)

	_, ok = GetAppError(errors.New("plain"))
	assert.False(t, ok)

	_, ok = GetAppError(nil)
	assert.False(t, ok)
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	appErr := NewInternalError(cause)

	assert.ErrorIs(t, appErr, cause)
	assert.Contains(t, appErr.Error(), "connection refused")
	assert.Equal(t, http.StatusInternalServerError, appErr.StatusCode)
}

func TestNewRateLimitError(t *testing.T) {
	err := NewRateLimitError("slow down", map[string]interface{}{"reset_at": int64(1234)})
	assert.Equal(t, http.StatusTooManyRequests, err.StatusCode)
	assert.Equal(t, "slow down", err.Message)
	assert.NotNil(t, err.Data)
}
