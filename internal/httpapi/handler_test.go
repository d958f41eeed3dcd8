package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roastr-ai/roast-engine/internal/apperr"
	"github.com/roastr-ai/roast-engine/internal/approval"
	"github.com/roastr-ai/roast-engine/internal/store"
)

func init() { gin.SetMode(gin.TestMode) }

// #region fakes

type fakeApprovals struct {
	gotGenerate   approval.GenerateRequest
	gotApprove    approval.ApproveRequest
	gotRegenerate approval.RegenerateRequest
	err           error
}

func (f *fakeApprovals) Generate(_ context.Context, req approval.GenerateRequest) (approval.GenerateResult, error) {
	f.gotGenerate = req
	if f.err != nil {
		return approval.GenerateResult{}, f.err
	}
	return approval.GenerateResult{Success: true, ResponseID: "resp-1", AttemptNumber: 1, Roast: "roasted"}, nil
}

func (f *fakeApprovals) Approve(_ context.Context, req approval.ApproveRequest) (approval.ApproveResult, error) {
	f.gotApprove = req
	if f.err != nil {
		return approval.ApproveResult{}, f.err
	}
	return approval.ApproveResult{Success: true, ResponseID: req.ResponseID, Status: store.StatusApproved}, nil
}

func (f *fakeApprovals) Reject(_ context.Context, req approval.RejectRequest) (approval.RejectResult, error) {
	if f.err != nil {
		return approval.RejectResult{}, f.err
	}
	return approval.RejectResult{Success: true, ResponseID: req.ResponseID, Status: store.StatusRejected}, nil
}

func (f *fakeApprovals) Regenerate(_ context.Context, req approval.RegenerateRequest) (approval.RegenerateResult, error) {
	f.gotRegenerate = req
	if f.err != nil {
		return approval.RegenerateResult{}, f.err
	}
	return approval.RegenerateResult{Success: true, ResponseID: "resp-2", PreviousResponseID: req.ResponseID, AttemptNumber: 2}, nil
}

type fixedScorer float64

func (s fixedScorer) ScoreOr(context.Context, string, float64) float64 { return float64(s) }

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func do(t *testing.T, h *Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.Router().ServeHTTP(w, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w, out
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	s, _ := e["code"].(string)
	return s
}

// #endregion

// #region roast

func TestRoast_OK(t *testing.T) {
	fa := &fakeApprovals{}
	h := NewHandler(fa, nil, nil, nil, nil)

	w, body := do(t, h, http.MethodPost, "/api/roast",
		`{"organization_id":"org-1","user_id":"u1","text":"You are absolutely terrible at this","toxicity_score":0.85,"tone":"sarcastic"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "resp-1", body["response_id"])
	assert.InDelta(t, 0.85, fa.gotGenerate.ToxicityScore, 1e-9)
	assert.Equal(t, "sarcastic", fa.gotGenerate.Tone)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRoast_ScorerOverrides(t *testing.T) {
	fa := &fakeApprovals{}
	h := NewHandler(fa, fixedScorer(0.4), nil, nil, nil)

	w, _ := do(t, h, http.MethodPost, "/api/roast", `{"organization_id":"o","user_id":"u","text":"hi"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 0.4, fa.gotGenerate.ToxicityScore, 1e-9)
}

func TestRoast_BadJSON(t *testing.T) {
	h := NewHandler(&fakeApprovals{}, nil, nil, nil, nil)
	w, body := do(t, h, http.MethodPost, "/api/roast", `{"text":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(apperr.CodeValidation), errorCode(body))
}

// #endregion

// #region approval

func TestApprove_PathAndBody(t *testing.T) {
	fa := &fakeApprovals{}
	h := NewHandler(fa, nil, nil, nil, nil)

	w, body := do(t, h, http.MethodPost, "/api/approval/resp-9/approve", `{"edited_text":"better","actor":"mod"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "approved", body["status"])
	assert.Equal(t, "resp-9", fa.gotApprove.ResponseID)
	assert.Equal(t, "better", fa.gotApprove.EditedText)
}

func TestApprove_EmptyBody(t *testing.T) {
	fa := &fakeApprovals{}
	h := NewHandler(fa, nil, nil, nil, nil)

	w, _ := do(t, h, http.MethodPost, "/api/approval/resp-9/approve", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "resp-9", fa.gotApprove.ResponseID)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   apperr.Code
	}{
		{fmt.Errorf("x: %w", apperr.ErrVariantsExhausted), http.StatusConflict, apperr.CodeVariantsExhausted},
		{fmt.Errorf("x: %w", apperr.ErrUsageLimit), http.StatusTooManyRequests, apperr.CodeUsageLimit},
		{fmt.Errorf("x: %w", apperr.ErrInvalidState), http.StatusConflict, apperr.CodeInvalidState},
		{fmt.Errorf("x: %w", apperr.ErrNotFound), http.StatusNotFound, apperr.CodeNotFound},
		{fmt.Errorf("x: %w", apperr.ErrQueueEnqueue), http.StatusInternalServerError, apperr.CodeQueueEnqueue},
		{errors.New("secret db path /var/lib/x"), http.StatusInternalServerError, apperr.CodeInternal},
	}
	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			h := NewHandler(&fakeApprovals{err: tc.err}, nil, nil, nil, nil)
			w, body := do(t, h, http.MethodPost, "/api/approval/r1/regenerate", `{"user_id":"u"}`)
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, string(tc.code), errorCode(body))
			assert.Equal(t, false, body["success"])
			assert.NotContains(t, w.Body.String(), "/var/lib/x")
		})
	}
}

func TestReject_OK(t *testing.T) {
	h := NewHandler(&fakeApprovals{}, nil, nil, nil, nil)
	w, body := do(t, h, http.MethodPost, "/api/approval/r1/reject", `{"reason":"off-brand"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "rejected", body["status"])
}

// #endregion

// #region modes-health

func TestModes(t *testing.T) {
	h := NewHandler(&fakeApprovals{}, nil, nil, nil, nil)
	w, body := do(t, h, http.MethodGet, "/api/ai-modes", "")
	assert.Equal(t, http.StatusOK, w.Code)

	modes, ok := body["modes"].([]any)
	require.True(t, ok)
	found := false
	for _, m := range modes {
		info := m.(map[string]any)
		if info["mode"] == "nsfw" {
			found = true
			assert.Equal(t, "grok", info["provider"])
			assert.Equal(t, []any{"grok", "openai"}, info["fallback_chain"])
		}
	}
	assert.True(t, found)
}

func TestHealth(t *testing.T) {
	w, _ := do(t, NewHandler(&fakeApprovals{}, nil, nil, pinger{}, nil), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, body := do(t, NewHandler(&fakeApprovals{}, nil, nil, pinger{err: errors.New("closed")}, nil), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "unhealthy", body["status"])
}

// #endregion
