package httpapi

// #region imports
import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/roastr-ai/roast-engine/internal/apperr"
	"github.com/roastr-ai/roast-engine/internal/approval"
	"github.com/roastr-ai/roast-engine/internal/logging"
	"github.com/roastr-ai/roast-engine/internal/route"
)

// #endregion

// #region collaborators

// Approvals is the response lifecycle the API exposes.
type Approvals interface {
	Generate(ctx context.Context, req approval.GenerateRequest) (approval.GenerateResult, error)
	Approve(ctx context.Context, req approval.ApproveRequest) (approval.ApproveResult, error)
	Reject(ctx context.Context, req approval.RejectRequest) (approval.RejectResult, error)
	Regenerate(ctx context.Context, req approval.RegenerateRequest) (approval.RegenerateResult, error)
}

// Scorer rescores comment toxicity. A nil Scorer trusts the request.
type Scorer interface {
	ScoreOr(ctx context.Context, text string, fallback float64) float64
}

// Pinger reports storage health.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// #endregion

// #region handler

// Handler serves the roast API.
type Handler struct {
	approvals Approvals
	scorer    Scorer
	routes    *route.Table
	db        Pinger
	log       *logrus.Entry
}

// NewHandler creates a Handler. scorer and db may be nil.
func NewHandler(a Approvals, scorer Scorer, routes *route.Table, db Pinger, log *logrus.Entry) *Handler {
	if routes == nil {
		routes = route.DefaultTable()
	}
	return &Handler{approvals: a, scorer: scorer, routes: routes, db: db, log: logging.OrDiscard(log)}
}

// Router builds the gin engine with every route registered.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), AccessLog(h.log))

	r.GET("/healthz", h.Health)
	api := r.Group("/api")
	api.POST("/roast", h.Roast)
	api.GET("/ai-modes", h.Modes)
	api.POST("/approval/:id/approve", h.Approve)
	api.POST("/approval/:id/reject", h.Reject)
	api.POST("/approval/:id/regenerate", h.Regenerate)
	return r
}

// #endregion

// #region roast

// roastBody is POST /api/roast. A missing toxicity score is filled in by
// the scorer.
type roastBody struct {
	approval.GenerateRequest
	ToxicityScore *float64 `json:"toxicity_score"`
}

// Roast handles POST /api/roast.
func (h *Handler) Roast(c *gin.Context) {
	var body roastBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.fail(c, fmt.Errorf("parse body: %w: %w", apperr.ErrValidation, err))
		return
	}
	req := body.GenerateRequest
	if body.ToxicityScore != nil {
		req.ToxicityScore = *body.ToxicityScore
	}
	if h.scorer != nil {
		req.ToxicityScore = h.scorer.ScoreOr(c.Request.Context(), req.Text, req.ToxicityScore)
	}

	res, err := h.approvals.Generate(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// #endregion

// #region approval

// Approve handles POST /api/approval/:id/approve.
func (h *Handler) Approve(c *gin.Context) {
	var req approval.ApproveRequest
	if !h.bindOptional(c, &req) {
		return
	}
	req.ResponseID = c.Param("id")
	res, err := h.approvals.Approve(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Reject handles POST /api/approval/:id/reject.
func (h *Handler) Reject(c *gin.Context) {
	var req approval.RejectRequest
	if !h.bindOptional(c, &req) {
		return
	}
	req.ResponseID = c.Param("id")
	res, err := h.approvals.Reject(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Regenerate handles POST /api/approval/:id/regenerate.
func (h *Handler) Regenerate(c *gin.Context) {
	var req approval.RegenerateRequest
	if !h.bindOptional(c, &req) {
		return
	}
	req.ResponseID = c.Param("id")
	res, err := h.approvals.Regenerate(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// #endregion

// #region modes

type modeInfo struct {
	Mode          string   `json:"mode"`
	Provider      string   `json:"provider"`
	Model         string   `json:"model"`
	FallbackChain []string `json:"fallback_chain"`
}

// Modes handles GET /api/ai-modes.
func (h *Handler) Modes(c *gin.Context) {
	modes := h.routes.Modes()
	out := make([]modeInfo, 0, len(modes))
	for _, m := range modes {
		r := h.routes.Route(m)
		out = append(out, modeInfo{
			Mode:          m,
			Provider:      r.Provider,
			Model:         r.Model,
			FallbackChain: h.routes.FallbackChain(m),
		})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "modes": out})
}

// Health handles GET /healthz.
func (h *Handler) Health(c *gin.Context) {
	if h.db != nil {
		if err := h.db.PingContext(c.Request.Context()); err != nil {
			h.log.WithField("event", "health_failed").WithError(err).Error("database unreachable")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// #endregion

// #region helpers

// bindOptional binds a JSON body when one is present. An empty body is fine.
func (h *Handler) bindOptional(c *gin.Context, dst any) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		h.fail(c, fmt.Errorf("parse body: %w: %w", apperr.ErrValidation, err))
		return false
	}
	return true
}

// fail writes the error envelope. Internal errors are logged with full
// context; callers only see the public message.
func (h *Handler) fail(c *gin.Context, err error) {
	code := apperr.Classify(err)
	status := apperr.HTTPStatus(err)
	entry := h.log.WithFields(logrus.Fields{
		"event":      "request_failed",
		"request_id": c.GetString(requestIDKey),
		"code":       code,
		"status":     status,
	}).WithError(err)
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Warn("request rejected")
	}
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": apperr.Public(err),
		},
	})
}

// #endregion
