package generation

// #region imports
import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/roastr-ai/roast-engine/internal/logging"
	"github.com/roastr-ai/roast-engine/internal/provider"
	"github.com/roastr-ai/roast-engine/internal/review"
)

// #endregion

// #region loop-state

// qcState is the quality-control loop position.
type qcState int

const (
	stateGenerating qcState = iota
	stateReviewing
	stateRegenerating
	stateApproved
	stateExhausted
)

// qcResult is what the loop hands back. resp is the approved candidate's
// response; it is nil unless approved is set.
type qcResult struct {
	text     string
	resp     *provider.Response
	approved bool
	tokens   int
	cost     float64
	attempt  int
	attempts []Attempt
}

// #endregion

// #region loop

// runQualityControl generates and reviews up to cfg.MaxAttempts candidates.
// A rejected verdict ends the loop at once; regenerate feeds the reviewers'
// reasons into the next prompt. On error the partial result is still
// returned so spent tokens are not lost.
func (g *Generator) runQualityControl(ctx context.Context, client ChatClient, req Request, cfg PlanConfig) (qcResult, error) {
	var (
		res      qcResult
		feedback string
		cand     provider.Response
		prompt   string
	)
	reviewer := g.reviewerFor(client)
	maxAttempts := cfg.MaxAttempts()
	state := stateGenerating

	for {
		switch state {
		case stateGenerating, stateRegenerating:
			res.attempt++
			system, user := advancedPrompt(req, cfg, feedback)
			resp, err := client.ChatComplete(ctx, provider.ChatRequest{
				Messages:    []provider.Message{provider.System(system), provider.User(user)},
				Temperature: provider.Float32(0.9),
				MaxTokens:   150,
				User:        req.UserID,
			})
			if err != nil {
				return res, fmt.Errorf("rqc attempt %d: %w", res.attempt, err)
			}
			if resp.Content == "" {
				return res, fmt.Errorf("rqc attempt %d: %w", res.attempt, ErrEmptyRoast)
			}
			cand, prompt = resp, system+user
			state = stateReviewing

		case stateReviewing:
			rv, err := reviewer.Review(ctx, review.Input{
				OriginalComment: req.Text,
				RoastText:       cand.Content,
				Tone:            toneOf(req, cfg),
				Plan:            cfg.Plan,
				StylePrompt:     cfg.StylePrompt,
				Attempt:         res.attempt,
			})
			genTokens := tokensFor(cand, prompt)
			if err != nil {
				res.tokens += genTokens
				return res, fmt.Errorf("rqc review %d: %w", res.attempt, err)
			}

			at := Attempt{
				Number:     res.attempt,
				RoastText:  cand.Content,
				Review:     rv,
				TokensUsed: genTokens + rv.TokensUsed,
				CostCents:  rv.CostCents,
			}
			res.attempts = append(res.attempts, at)
			res.tokens += at.TokensUsed
			res.cost += at.CostCents
			g.logReview(ctx, req, at)

			g.log.WithFields(logrus.Fields{
				"event":    "rqc_attempt",
				"attempt":  res.attempt,
				"max":      maxAttempts,
				"decision": rv.Decision,
			}).Debug("quality control attempt reviewed")

			switch {
			case rv.Decision == review.DecisionApproved:
				state = stateApproved
			case rv.Decision == review.DecisionRejected, res.attempt >= maxAttempts:
				state = stateExhausted
			default:
				feedback = rv.Feedback()
				state = stateRegenerating
			}

		case stateApproved:
			res.approved = true
			res.text = cand.Content
			res.resp = &cand
			return res, nil

		case stateExhausted:
			return res, nil
		}
	}
}

// logReview persists one attempt. Failures are logged, never returned.
func (g *Generator) logReview(ctx context.Context, req Request, at Attempt) {
	if g.deps.Reviews == nil {
		return
	}
	err := g.deps.Reviews.LogReview(ctx, logging.ReviewEntry{
		UserID:          req.UserID,
		OrganizationID:  req.OrganizationID,
		OriginalComment: req.Text,
		RoastText:       at.RoastText,
		Attempt:         at.Number,
		ModeratorPass:   at.Review.ModeratorPass,
		ModeratorReason: at.Review.ModeratorReason,
		ComedianPass:    at.Review.ComedianPass,
		ComedianReason:  at.Review.ComedianReason,
		StylePass:       at.Review.StylePass,
		StyleReason:     at.Review.StyleReason,
		Decision:        string(at.Review.Decision),
		TokensUsed:      at.TokensUsed,
		CostCents:       at.CostCents,
		DurationMS:      at.Review.Duration.Milliseconds(),
		CreatedAt:       time.Now().UTC(),
	})
	if err != nil {
		g.log.WithField("event", "rqc_log_failed").WithError(err).Warn("review not recorded")
	}
}

// #endregion
