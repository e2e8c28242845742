// Package errors defines the sentinel errors shared across the service and
// maps them to HTTP status codes at the transport boundary.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrDocumentNotFound     = errors.New("document not found")
	ErrInvalidInput         = errors.New("invalid input")
	ErrNoRelevantResults    = errors.New("no sufficiently relevant results")
	ErrQueryTimeout         = errors.New("query exceeded time budget")
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")
	ErrStoreUnavailable     = errors.New("document store unavailable")
	ErrInternal             = errors.New("internal error")
)

// AppError wraps a sentinel error with a caller-facing message and an HTTP
// status code.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New wraps a sentinel with a caller-facing message. The HTTP status is
// derived from the sentinel so call sites never pick codes ad hoc.
func New(sentinel error, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: sentinelStatus(sentinel),
	}
}

func Newf(sentinel error, format string, args ...any) *AppError {
	return New(sentinel, fmt.Sprintf(format, args...))
}

// HTTPStatusCode resolves an error to the status code it should be reported
// with. ErrNoRelevantResults is intentionally absent: it is an outcome, not a
// transport failure, and handlers report it with 200.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return sentinelStatus(err)
}

func sentinelStatus(err error) int {
	switch {
	case errors.Is(err, ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrQueryTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrEmbeddingUnavailable), errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
