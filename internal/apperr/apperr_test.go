package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

// #region classify-tests
func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, CodeNone},
		{"validation", fmt.Errorf("bad text: %w", ErrValidation), CodeValidation},
		{"variants", fmt.Errorf("regenerate: %w", ErrVariantsExhausted), CodeVariantsExhausted},
		{"usage", ErrUsageLimit, CodeUsageLimit},
		{"enqueue", fmt.Errorf("approve: %w", ErrQueueEnqueue), CodeQueueEnqueue},
		{"not found", ErrNotFound, CodeNotFound},
		{"invalid state", ErrInvalidState, CodeInvalidState},
		{"transport", ErrProviderTransport, CodeProviderTransport},
		{"deadline", fmt.Errorf("chat: %w", context.DeadlineExceeded), CodeProviderTransport},
		{"unknown", errors.New("boom"), CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.want {
				t.Errorf("Classify(%v) = %q, want %q", tc.err, got, tc.want)
			}
		})
	}
}

// #endregion classify-tests

// #region public-tests
func TestPublic_HidesInternalDetail(t *testing.T) {
	err := errors.New("pq: relation responses does not exist")
	if got := Public(err); got != "an unexpected error occurred" {
		t.Errorf("expected generic message, got %q", got)
	}
}

func TestPublic_KeepsActionableDetail(t *testing.T) {
	err := fmt.Errorf("regenerate: %w", ErrVariantsExhausted)
	if got := Public(err); got != err.Error() {
		t.Errorf("expected %q, got %q", err.Error(), got)
	}
}

func TestHTTPStatus(t *testing.T) {
	if got := HTTPStatus(ErrUsageLimit); got != http.StatusTooManyRequests {
		t.Errorf("usage limit: got %d", got)
	}
	if got := HTTPStatus(ErrInvalidState); got != http.StatusConflict {
		t.Errorf("invalid state: got %d", got)
	}
	if got := HTTPStatus(errors.New("x")); got != http.StatusInternalServerError {
		t.Errorf("internal: got %d", got)
	}
}

// #endregion public-tests

// #region validate-tests
func TestValidate(t *testing.T) {
	type input struct {
		Text  string  `validate:"required,max=5"`
		Score float64 `validate:"gte=0,lte=1"`
	}

	if err := Validate(input{Text: "ok", Score: 0.5}); err != nil {
		t.Fatalf("expected valid input, got %v", err)
	}

	err := Validate(input{Text: "", Score: 2})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if Classify(err) != CodeValidation {
		t.Errorf("expected validation code, got %s", Classify(err))
	}
	if msg := err.Error(); !strings.Contains(msg, "Text failed required") || !strings.Contains(msg, "Score failed lte") {
		t.Errorf("expected field details, got %q", msg)
	}
}

// #endregion validate-tests
