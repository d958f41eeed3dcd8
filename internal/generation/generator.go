package generation

// #region imports
import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/roastr-ai/roast-engine/internal/apperr"
	"github.com/roastr-ai/roast-engine/internal/logging"
	"github.com/roastr-ai/roast-engine/internal/provider"
	"github.com/roastr-ai/roast-engine/internal/review"
	"github.com/roastr-ai/roast-engine/internal/transparency"
)

// #endregion

// #region generator

// ErrEmptyRoast is returned when a provider answers with no usable text.
var ErrEmptyRoast = errors.New("provider returned an empty roast")

// Options are the process-wide generation switches.
type Options struct {
	RQCEnabled  bool          // global quality-control kill switch
	DefaultMode string        // used when the request names neither mode nor tone
	Review      review.Config // panel pricing and length limits
}

// Deps are the generator's collaborators. Only Chats is required.
type Deps struct {
	Chats      ChatSource
	Plans      PlanSource
	Disclaimer Disclaimer
	Reviews    ReviewLog
	Reviewer   review.Reviewer // fixed reviewer; nil builds a panel over each client
}

// Generator turns a comment into a roast. Every call yields text; provider
// failures degrade to the safety roast instead of surfacing.
type Generator struct {
	deps Deps
	opts Options
	log  *logrus.Entry
}

// NewGenerator wires a generator.
func NewGenerator(deps Deps, opts Options, log *logrus.Entry) *Generator {
	if deps.Plans == nil {
		deps.Plans = DefaultPlans()
	}
	if opts.Review == (review.Config{}) {
		opts.Review = review.DefaultConfig()
	}
	return &Generator{deps: deps, opts: opts, log: logging.OrDiscard(log)}
}

// #endregion

// #region generate-roast

// GenerateRoast runs the plan's generation path. The only error returned is
// a validation error; every other failure becomes MethodSafetyFallback with
// Outcome.Err set.
func (g *Generator) GenerateRoast(ctx context.Context, req Request) (Outcome, error) {
	start := time.Now()
	if err := apperr.Validate(req); err != nil {
		return Outcome{}, fmt.Errorf("generate roast: %w", err)
	}
	if strings.TrimSpace(req.Text) == "" {
		return Outcome{}, fmt.Errorf("generate roast: text is blank: %w", apperr.ErrValidation)
	}

	cfg := g.planConfig(ctx, req)
	mode := g.modeFor(req, cfg)

	out, err := g.run(ctx, req, cfg, mode)
	if err != nil {
		out = g.safetyFallback(ctx, req, cfg, mode, err, out)
	}
	out.Plan = cfg.Plan
	out.Mode = mode
	g.applyDisclaimer(ctx, req, cfg, &out)
	out.ProcessingTime = time.Since(start)

	g.log.WithFields(logrus.Fields{
		"event":       "roast_generated",
		"method":      out.Method,
		"plan":        out.Plan,
		"mode":        mode,
		"provider":    out.Provider,
		"tokens":      out.TokensUsed,
		"attempts":    len(out.Attempts),
		"duration_ms": out.ProcessingTime.Milliseconds(),
	}).Info("roast generated")
	return out, nil
}

// run picks the path for one request. On error the partial Outcome carries
// whatever tokens were already spent.
func (g *Generator) run(ctx context.Context, req Request, cfg PlanConfig, mode string) (Outcome, error) {
	client, err := g.deps.Chats.Client(mode, cfg.Plan)
	if err != nil {
		return Outcome{}, fmt.Errorf("client for %s: %w", mode, err)
	}

	switch {
	case client.Offline():
		return g.single(ctx, client, req, cfg, MethodOfflineMock)
	case !cfg.AdvancedReview || !g.opts.RQCEnabled:
		return g.single(ctx, client, req, cfg, MethodBasicModeration)
	default:
		return g.qualityControl(ctx, client, req, cfg)
	}
}

// #endregion

// #region single-pass

// single issues one basic-moderation call.
func (g *Generator) single(ctx context.Context, client ChatClient, req Request, cfg PlanConfig, method Method) (Outcome, error) {
	system, user := basicPrompt(req, cfg)
	resp, err := client.ChatComplete(ctx, provider.ChatRequest{
		Messages: []provider.Message{provider.System(system), provider.User(user)},
		User:     req.UserID,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("%s generation: %w", method, err)
	}
	if resp.Content == "" {
		return Outcome{}, fmt.Errorf("%s generation: %w", method, ErrEmptyRoast)
	}

	out := Outcome{
		RoastText:  resp.Content,
		Method:     method,
		TokensUsed: tokensFor(resp, system+user),
	}
	setProvenance(&out, &resp)
	return out, nil
}

// #endregion

// #region quality-control

// qualityControl runs the review loop and falls back to one safety roast,
// outside the loop's budget, when the loop ends without approval.
func (g *Generator) qualityControl(ctx context.Context, client ChatClient, req Request, cfg PlanConfig) (Outcome, error) {
	res, err := g.runQualityControl(ctx, client, req, cfg)
	out := Outcome{
		QualityControlUsed: true,
		TokensUsed:         res.tokens,
		CostCents:          res.cost,
		Attempt:            res.attempt,
		Attempts:           res.attempts,
	}
	if err != nil {
		return out, err
	}
	if len(res.attempts) > 0 {
		last := res.attempts[len(res.attempts)-1].Review
		out.Review = &last
	}

	if res.approved {
		out.RoastText = res.text
		out.Method = MethodQualityControl
		setProvenance(&out, res.resp)
		return out, nil
	}

	g.log.WithFields(logrus.Fields{
		"event":    "rqc_exhausted",
		"attempts": res.attempt,
		"decision": out.Review.Decision,
	}).Warn("quality control ended without approval")

	text, tokens, resp := g.safetyRoast(ctx, client, req)
	out.RoastText = text
	out.TokensUsed += tokens
	out.Method = MethodQualityControlFallback
	setProvenance(&out, resp)
	return out, nil
}

func (g *Generator) reviewerFor(client ChatClient) review.Reviewer {
	if g.deps.Reviewer != nil {
		return g.deps.Reviewer
	}
	return review.NewPanel(client, g.opts.Review, g.log.WithField("component", "rqc"))
}

// #endregion

// #region safety-fallback

// safetyFallback replaces a failed path with the conservative roast. partial
// keeps tokens already spent.
func (g *Generator) safetyFallback(ctx context.Context, req Request, cfg PlanConfig, mode string, cause error, partial Outcome) Outcome {
	g.log.WithFields(logrus.Fields{
		"event": "safety_fallback",
		"mode":  mode,
		"plan":  cfg.Plan,
		"code":  apperr.Classify(cause),
	}).WithError(cause).Error("generation failed, using safety roast")

	client, err := g.deps.Chats.Client(mode, cfg.Plan)
	if err != nil {
		client = nil
	}
	text, tokens, resp := g.safetyRoast(ctx, client, req)

	out := Outcome{
		RoastText:          text,
		Method:             MethodSafetyFallback,
		QualityControlUsed: partial.QualityControlUsed,
		TokensUsed:         partial.TokensUsed + tokens,
		CostCents:          partial.CostCents,
		Attempt:            partial.Attempt,
		Attempts:           partial.Attempts,
		Err:                cause,
	}
	setProvenance(&out, resp)
	return out
}

// safetyRoast asks for the most conservative roast. If that call fails too
// it returns the static last-resort roast. resp is nil in that case.
func (g *Generator) safetyRoast(ctx context.Context, client ChatClient, req Request) (string, int, *provider.Response) {
	if client != nil {
		system, user := safetyPrompt(req)
		resp, err := client.ChatComplete(ctx, provider.ChatRequest{
			Messages:    []provider.Message{provider.System(system), provider.User(user)},
			Temperature: provider.Float32(0.5),
			MaxTokens:   80,
			User:        req.UserID,
		})
		if err == nil && resp.Content != "" {
			return resp.Content, tokensFor(resp, system+user), &resp
		}
		g.log.WithField("event", "safety_roast_failed").WithError(err).Error("safety roast failed, using static roast")
	}
	return lastResortRoast, provider.EstimateTokens(req.Text + lastResortRoast), nil
}

// #endregion

// #region transparency

func (g *Generator) applyDisclaimer(ctx context.Context, req Request, cfg PlanConfig, out *Outcome) {
	if g.deps.Disclaimer == nil {
		return
	}
	res, err := g.deps.Disclaimer.Apply(ctx, transparency.Input{
		Text:            out.RoastText,
		UserID:          req.UserID,
		OrganizationID:  req.OrganizationID,
		Language:        req.Language,
		PlatformLimit:   req.PlatformLimit,
		OriginalComment: req.Text,
		Mode:            transparency.Mode(cfg.TransparencyMode),
	})
	if err != nil {
		g.log.WithField("event", "transparency_failed").WithError(err).Warn("disclaimer not applied")
		return
	}
	out.RoastText = res.FinalText
	out.Disclaimer = res.Disclaimer
	out.DisclaimerType = res.DisclaimerType
	out.TransparencyMode = res.TransparencyMode
	out.BioText = res.BioText
}

// #endregion

// #region helpers

func (g *Generator) planConfig(ctx context.Context, req Request) PlanConfig {
	cfg, err := g.deps.Plans.PlanConfig(ctx, req.UserID, req.Plan)
	if err != nil {
		g.log.WithFields(logrus.Fields{
			"event": "plan_lookup_failed",
			"user":  req.UserID,
			"plan":  req.Plan,
		}).WithError(err).Warn("using default plan config")
		return DefaultPlanConfig(req.UserID)
	}
	return cfg
}

// modeFor picks the route mode: explicit mode, then tone, then the plan's
// tone, then the configured default.
func (g *Generator) modeFor(req Request, cfg PlanConfig) string {
	for _, m := range []string{req.Mode, req.Tone, cfg.Tone, g.opts.DefaultMode} {
		if strings.TrimSpace(m) != "" {
			return m
		}
	}
	return "default"
}

// tokensFor prefers provider-reported usage and estimates otherwise.
func tokensFor(resp provider.Response, prompt string) int {
	if n := resp.Usage.Total(); n > 0 {
		return n
	}
	return provider.EstimateTokens(prompt + resp.Content)
}

func setProvenance(out *Outcome, resp *provider.Response) {
	if resp == nil {
		return
	}
	meta := provider.ExtractMetadata(*resp)
	out.Provider = meta.Provider
	out.FallbackUsed = meta.FallbackUsed
}

// #endregion
