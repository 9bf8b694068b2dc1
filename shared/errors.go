package shared

import (
	"errors"
	"net/http"
)

// AppError carries an HTTP status code alongside the error so handlers can
// return errors directly and let the http layer render them.
type AppError struct {
	StatusCode int         `json:"code"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data,omitempty"`
	Err        error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func NewBadRequestError(err error, message string) *AppError {
	return &AppError{StatusCode: http.StatusBadRequest, Message: message, Err: err}
}

func NewValidationError(message string, data interface{}) *AppError {
	return &AppError{StatusCode: http.StatusBadRequest, Message: message, Data: data}
}

func NewNotFoundError(message string) *AppError {
	return &AppError{StatusCode: http.StatusNotFound, Message: message}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{StatusCode: http.StatusUnauthorized, Message: message}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{StatusCode: http.StatusForbidden, Message: message}
}

func NewConflictError(message string) *AppError {
	return &AppError{StatusCode: http.StatusConflict, Message: message}
}

// NewRateLimitError is the 429 surfaced by the rate limiter; data carries the
// reset timestamp so clients know how long to wait.
func NewRateLimitError(message string, data interface{}) *AppError {
	return &AppError{StatusCode: http.StatusTooManyRequests, Message: message, Data: data}
}

func NewInternalError(err error) *AppError {
	return &AppError{StatusCode: http.StatusInternalServerError, Message: "Internal Server Error", Err: err}
}
