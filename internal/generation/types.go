package generation

// #region imports
import (
	"context"
	"time"

	"github.com/roastr-ai/roast-engine/internal/logging"
	"github.com/roastr-ai/roast-engine/internal/provider"
	"github.com/roastr-ai/roast-engine/internal/review"
	"github.com/roastr-ai/roast-engine/internal/transparency"
)

// #endregion

// #region method

// Method names the path that produced a roast.
type Method string

const (
	MethodBasicModeration        Method = "basic_moderation"
	MethodQualityControl         Method = "quality_control"
	MethodQualityControlFallback Method = "quality_control_fallback"
	MethodSafetyFallback         Method = "safety_fallback"
	MethodOfflineMock            Method = "offline_mock"
)

// #endregion

// #region request

// Request is one roast generation call.
type Request struct {
	Text           string  `json:"text" validate:"required,max=2000"`
	ToxicityScore  float64 `json:"toxicity_score" validate:"gte=0,lte=1"`
	Tone           string  `json:"tone" validate:"max=32"`
	Mode           string  `json:"mode" validate:"max=32"`
	UserID         string  `json:"user_id"`
	OrganizationID string  `json:"organization_id"`
	Plan           string  `json:"plan"`
	Language       string  `json:"language" validate:"omitempty,oneof=es en"`
	Platform       string  `json:"platform"`
	PlatformLimit  int     `json:"platform_limit" validate:"gte=0"`
}

// #endregion

// #region attempt

// Attempt is one generate+review cycle of the quality-control loop.
type Attempt struct {
	Number     int           `json:"attempt"`
	RoastText  string        `json:"roast_text"`
	Review     review.Result `json:"review"`
	TokensUsed int           `json:"tokens_used"`
	CostCents  float64       `json:"cost_cents"`
}

// #endregion

// #region outcome

// Outcome is the result of GenerateRoast. Err is set only when Method is
// MethodSafetyFallback; RoastText is never empty.
type Outcome struct {
	RoastText          string         `json:"roast"`
	Plan               string         `json:"plan"`
	Mode               string         `json:"mode"`
	Method             Method         `json:"method"`
	QualityControlUsed bool           `json:"quality_control_used"`
	ProcessingTime     time.Duration  `json:"processing_time"`
	TokensUsed         int            `json:"tokens_used"`
	CostCents          float64        `json:"cost_cents"`
	Attempt            int            `json:"attempt,omitempty"`
	Review             *review.Result `json:"review,omitempty"`
	Attempts           []Attempt      `json:"attempts,omitempty"`
	Provider           string         `json:"provider,omitempty"`
	FallbackUsed       bool           `json:"fallback_used"`
	Disclaimer         string         `json:"disclaimer,omitempty"`
	DisclaimerType     string         `json:"disclaimer_type,omitempty"`
	TransparencyMode   string         `json:"transparency_mode,omitempty"`
	BioText            string         `json:"bio_text,omitempty"`
	Err                error          `json:"-"`
}

// #endregion

// #region collaborators

// ChatClient is the slice of provider.Client the generator uses.
type ChatClient interface {
	ChatComplete(ctx context.Context, req provider.ChatRequest) (provider.Response, error)
	Offline() bool
}

// ChatSource hands out a client per (mode, plan).
type ChatSource interface {
	Client(mode, plan string) (ChatClient, error)
}

// FactorySource adapts a provider.Factory to ChatSource.
type FactorySource struct {
	Factory *provider.Factory
}

// Client implements ChatSource.
func (f FactorySource) Client(mode, plan string) (ChatClient, error) {
	c, err := f.Factory.GetClient(mode, plan)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Disclaimer post-processes every roast before it leaves the generator.
type Disclaimer interface {
	Apply(ctx context.Context, in transparency.Input) (transparency.Result, error)
}

// ReviewLog receives one row per quality-control attempt.
type ReviewLog interface {
	LogReview(ctx context.Context, entry logging.ReviewEntry) error
}

// #endregion
