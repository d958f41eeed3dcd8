package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"google.golang.org/genai"

	"github.com/roastr-ai/roast-engine/internal/apperr"
)

// #region sentinels
var (
	// ErrResponseInvalid means a provider returned a shape the normalizer cannot read.
	ErrResponseInvalid = errors.New("provider response invalid")
	// ErrNotConfigured means a transport was requested without credentials.
	ErrNotConfigured = errors.New("provider not configured")
)

// #endregion sentinels

// #region transport-error
// TransportError wraps any failure talking to a backend.
type TransportError struct {
	Provider string
	Op       string // "chat" | "embed"
	Status   int    // HTTP status when known, else 0
	Err      error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Provider, e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is makes every TransportError match apperr.ErrProviderTransport.
func (e *TransportError) Is(target error) bool {
	return target == apperr.ErrProviderTransport
}

// RateLimited reports whether the backend rejected the call for quota.
func (e *TransportError) RateLimited() bool {
	return e.Status == http.StatusTooManyRequests
}

// Timeout reports whether the call ran past its deadline.
func (e *TransportError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// #endregion transport-error

// #region classify
// wrapTransportError attaches provider, op and the HTTP status found in
// SDK error types.
func wrapTransportError(provider, op string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	status := 0
	var oaErr *openai.Error
	if errors.As(err, &oaErr) {
		status = oaErr.StatusCode
	}
	var gErr genai.APIError
	if errors.As(err, &gErr) {
		status = gErr.Code
	}
	return &TransportError{Provider: provider, Op: op, Status: status, Err: err}
}

// #endregion classify
