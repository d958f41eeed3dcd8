package review

// #region imports
import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/roastr-ai/roast-engine/internal/logging"
	"github.com/roastr-ai/roast-engine/internal/provider"
)

// #endregion

// #region judges

type judge struct {
	name     string
	system   string
	precheck func(Input) (bool, string)
}

const verdictFormat = "Answer with exactly PASS or FAIL: <short reason>. Answer PASS or FAIL only."

func (p *Panel) judges() []judge {
	return []judge{
		{
			name: Moderator,
			system: "You are a content-safety moderator for a comedy bot. A roast may be rude and sarcastic, " +
				"but it must not threaten, harass a protected group, include slurs, or encourage self-harm. " + verdictFormat,
			precheck: moderatorCheck,
		},
		{
			name: Comedian,
			system: "You are a professional comedian judging whether a comeback is actually funny, " +
				"clever and on-topic for the comment it answers. " + verdictFormat,
			precheck: comedianCheck,
		},
		{
			name: Style,
			system: "You are a brand-voice editor. Check that the roast matches the requested tone and style " +
				"guidelines and reads as one short social-media reply. " + verdictFormat,
			precheck: func(in Input) (bool, string) { return styleCheck(in, p.cfg.MaxLength) },
		},
	}
}

// #endregion

// #region panel

// Panel runs the moderator, comedian and style reviewers concurrently and
// joins their verdicts before deciding.
type Panel struct {
	chat Chatter
	cfg  Config
	log  *logrus.Entry
}

// NewPanel creates a panel that consults chat for model-backed verdicts.
func NewPanel(chat Chatter, cfg Config, log *logrus.Entry) *Panel {
	if cfg.MaxLength == 0 {
		cfg.MaxLength = DefaultConfig().MaxLength
	}
	return &Panel{chat: chat, cfg: cfg, log: logging.OrDiscard(log)}
}

// #endregion

// #region review

// Review produces all three verdicts, then the aggregate decision. A
// reviewer error fails the whole review.
func (p *Panel) Review(ctx context.Context, in Input) (Result, error) {
	start := time.Now()
	judges := p.judges()
	verdicts := make([]Verdict, len(judges))

	g, gctx := errgroup.WithContext(ctx)
	for i, j := range judges {
		g.Go(func() error {
			v, err := p.evaluate(gctx, j, in)
			if err != nil {
				return fmt.Errorf("%s review: %w", j.name, err)
			}
			verdicts[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	mod, com, sty := verdicts[0], verdicts[1], verdicts[2]
	tokens := mod.TokensUsed + com.TokensUsed + sty.TokensUsed
	res := Result{
		ModeratorPass:   mod.Pass,
		ModeratorReason: mod.Reason,
		ComedianPass:    com.Pass,
		ComedianReason:  com.Reason,
		StylePass:       sty.Pass,
		StyleReason:     sty.Reason,
		Decision:        Decide(mod, com, sty),
		TokensUsed:      tokens,
		CostCents:       CostCents(tokens, p.cfg.CentsPer1KTokens),
		Duration:        time.Since(start),
	}

	p.log.WithFields(logrus.Fields{
		"event":     "rqc_review",
		"attempt":   in.Attempt,
		"moderator": mod.Pass,
		"comedian":  com.Pass,
		"style":     sty.Pass,
		"decision":  res.Decision,
		"tokens":    tokens,
	}).Debug("review complete")
	return res, nil
}

// evaluate applies the local precheck, then asks the model.
func (p *Panel) evaluate(ctx context.Context, j judge, in Input) (Verdict, error) {
	if ok, reason := j.precheck(in); !ok {
		return Verdict{Reviewer: j.name, Pass: false, Reason: reason}, nil
	}

	user := fmt.Sprintf("Original comment: %q\nRoast: %q\nRequested tone: %s", in.OriginalComment, in.RoastText, in.Tone)
	if in.StylePrompt != "" {
		user += "\nStyle guidelines: " + in.StylePrompt
	}
	resp, err := p.chat.ChatComplete(ctx, provider.ChatRequest{
		Messages:    []provider.Message{provider.System(j.system), provider.User(user)},
		Temperature: provider.Float32(0),
		MaxTokens:   40,
	})
	if err != nil {
		return Verdict{}, err
	}

	tokens := resp.Usage.Total()
	if tokens == 0 {
		tokens = provider.EstimateTokens(j.system+user) + provider.EstimateTokens(resp.Content)
	}
	pass, reason := ParseVerdict(resp.Content)
	return Verdict{Reviewer: j.name, Pass: pass, Reason: reason, TokensUsed: tokens}, nil
}

// #endregion

// #region decide

// Decide aggregates verdicts. A moderator failure is a hard veto.
func Decide(mod, com, sty Verdict) Decision {
	if !mod.Pass {
		return DecisionRejected
	}
	if com.Pass && sty.Pass {
		return DecisionApproved
	}
	return DecisionRegenerate
}

// ParseVerdict reads "PASS" or "FAIL: reason". Anything else fails.
func ParseVerdict(s string) (bool, string) {
	t := strings.TrimSpace(s)
	upper := strings.ToUpper(t)
	switch {
	case strings.HasPrefix(upper, "PASS"):
		return true, ""
	case strings.HasPrefix(upper, "FAIL"):
		reason := strings.TrimSpace(strings.TrimLeft(t[len("FAIL"):], ":- "))
		if reason == "" {
			reason = "failed review"
		}
		return false, reason
	}
	return false, "unparseable verdict"
}

// CostCents prices tokens at centsPer1K.
func CostCents(tokens int, centsPer1K float64) float64 {
	return float64(tokens) * centsPer1K / 1000
}

// #endregion
