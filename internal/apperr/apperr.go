package apperr

import (
	"context"
	"errors"
	"net"
	"net/http"
)

// #region sentinels
var (
	ErrProviderTransport = errors.New("provider transport failure")
	ErrValidation        = errors.New("validation failed")
	ErrVariantsExhausted = errors.New("no more variants available for this comment")
	ErrUsageLimit        = errors.New("usage limit exceeded")
	ErrQueueEnqueue      = errors.New("delivery enqueue failed")
	ErrNotFound          = errors.New("not found")
	ErrInvalidState      = errors.New("invalid state transition")
	ErrInternal          = errors.New("internal error")
)

// #endregion sentinels

// #region codes
// Code is the caller-facing error code attached to failed operations.
type Code string

const (
	CodeNone              Code = ""
	CodeProviderTransport Code = "PROVIDER_TRANSPORT"
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeVariantsExhausted Code = "VARIANTS_EXHAUSTED"
	CodeUsageLimit        Code = "USAGE_LIMIT_EXCEEDED"
	CodeQueueEnqueue      Code = "QUEUE_ENQUEUE_FAILED"
	CodeNotFound          Code = "NOT_FOUND"
	CodeInvalidState      Code = "INVALID_STATE"
	CodeInternal          Code = "INTERNAL_ERROR"
)

// #endregion codes

// #region classify
// Classify maps an error chain onto a Code. Only sentinels and standard
// error types are consulted, never message text.
func Classify(err error) Code {
	if err == nil {
		return CodeNone
	}
	switch {
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrVariantsExhausted):
		return CodeVariantsExhausted
	case errors.Is(err, ErrUsageLimit):
		return CodeUsageLimit
	case errors.Is(err, ErrQueueEnqueue):
		return CodeQueueEnqueue
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrInvalidState):
		return CodeInvalidState
	case errors.Is(err, ErrProviderTransport),
		errors.Is(err, context.DeadlineExceeded):
		return CodeProviderTransport
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return CodeProviderTransport
	}
	return CodeInternal
}

// #endregion classify

// #region http
// HTTPStatus returns the status code an HTTP adapter should use for err.
func HTTPStatus(err error) int {
	switch Classify(err) {
	case CodeNone:
		return http.StatusOK
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidState, CodeVariantsExhausted:
		return http.StatusConflict
	case CodeUsageLimit:
		return http.StatusTooManyRequests
	case CodeProviderTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Public returns a message safe to show to callers. Internal errors are
// reduced to a generic text.
func Public(err error) string {
	switch Classify(err) {
	case CodeNone:
		return ""
	case CodeInternal:
		return "an unexpected error occurred"
	case CodeQueueEnqueue:
		return "approval could not be scheduled for delivery; the response is still pending"
	case CodeProviderTransport:
		return "the generation provider is unavailable"
	default:
		return err.Error()
	}
}

// #endregion http
