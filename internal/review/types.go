package review

// #region imports
import (
	"context"
	"strings"
	"time"

	"github.com/roastr-ai/roast-engine/internal/provider"
)

// #endregion

// #region decision

// Decision is the aggregate outcome of one review.
type Decision string

const (
	DecisionApproved   Decision = "approved"
	DecisionRejected   Decision = "rejected"
	DecisionRegenerate Decision = "regenerate"
)

// #endregion

// #region reviewer-names

const (
	Moderator = "moderator"
	Comedian  = "comedian"
	Style     = "style"
)

// #endregion

// #region input

// Input is one candidate roast submitted for review.
type Input struct {
	OriginalComment string
	RoastText       string
	Tone            string
	Plan            string
	StylePrompt     string
	Attempt         int
}

// #endregion

// #region verdict

// Verdict is one reviewer's pass/fail call.
type Verdict struct {
	Reviewer   string
	Pass       bool
	Reason     string
	TokensUsed int
}

// Result carries all three verdicts plus the aggregate decision.
type Result struct {
	ModeratorPass   bool
	ModeratorReason string
	ComedianPass    bool
	ComedianReason  string
	StylePass       bool
	StyleReason     string
	Decision        Decision
	TokensUsed      int
	CostCents       float64
	Duration        time.Duration
}

// Feedback joins the failing reasons, for the next attempt's prompt.
func (r Result) Feedback() string {
	var parts []string
	if !r.ModeratorPass && r.ModeratorReason != "" {
		parts = append(parts, "safety: "+r.ModeratorReason)
	}
	if !r.ComedianPass && r.ComedianReason != "" {
		parts = append(parts, "humor: "+r.ComedianReason)
	}
	if !r.StylePass && r.StyleReason != "" {
		parts = append(parts, "style: "+r.StyleReason)
	}
	return strings.Join(parts, "; ")
}

// #endregion

// #region interfaces

// Reviewer evaluates one candidate.
type Reviewer interface {
	Review(ctx context.Context, in Input) (Result, error)
}

// Chatter is the slice of provider.Client the panel needs.
type Chatter interface {
	ChatComplete(ctx context.Context, req provider.ChatRequest) (provider.Response, error)
}

// #endregion

// #region config

// Config tunes the panel.
type Config struct {
	CentsPer1KTokens float64
	MaxLength        int
}

// DefaultConfig returns the panel defaults.
func DefaultConfig() Config {
	return Config{
		CentsPer1KTokens: 0.5,
		MaxLength:        280,
	}
}

// #endregion
