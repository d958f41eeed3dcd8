package approval

// #region imports
import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/roastr-ai/roast-engine/internal/apperr"
	"github.com/roastr-ai/roast-engine/internal/generation"
	"github.com/roastr-ai/roast-engine/internal/logging"
	"github.com/roastr-ai/roast-engine/internal/queue"
	"github.com/roastr-ai/roast-engine/internal/store"
	"github.com/roastr-ai/roast-engine/internal/usage"
)

// #endregion

// #region service

// Service owns the response lifecycle: pending to approved, rejected or
// discarded. Every state change is a conditional write at the store; the
// service only sequences them and compensates when a later step fails.
type Service struct {
	store      ResponseStore
	credits    Credits
	gen        Generator
	queue      Enqueuer
	audit      AuditRecorder
	maxVariant int
	log        *logrus.Entry
	now        func() time.Time
}

// Deps are the service's collaborators. Audit may be nil.
type Deps struct {
	Store     ResponseStore
	Credits   Credits
	Generator Generator
	Queue     Enqueuer
	Audit     AuditRecorder
}

// NewService wires a Service. maxVariants <= 0 means MaxVariantsPerRoast.
func NewService(deps Deps, maxVariants int, log *logrus.Entry) *Service {
	if maxVariants <= 0 {
		maxVariants = MaxVariantsPerRoast
	}
	return &Service{
		store:      deps.Store,
		credits:    deps.Credits,
		gen:        deps.Generator,
		queue:      deps.Queue,
		audit:      deps.Audit,
		maxVariant: maxVariants,
		log:        logging.OrDiscard(log),
		now:        time.Now,
	}
}

// #endregion

// #region generate

// Generate creates a comment and its first pending response. The credit is
// refunded when nothing gets persisted.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	if err := apperr.Validate(req); err != nil {
		return GenerateResult{}, fmt.Errorf("generate: %w", err)
	}

	dec, err := s.credits.CanPerformOperation(ctx, req.OrganizationID, usage.OpGenerateReply, 1, req.Platform)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("generate: %w: %w", apperr.ErrInternal, err)
	}
	if !dec.Allowed {
		return GenerateResult{}, fmt.Errorf("generate: %s: %w", dec.Message, apperr.ErrUsageLimit)
	}
	credit, err := s.consume(ctx, req.UserID, req.Plan, usage.OpGenerateReply, "")
	if err != nil {
		return GenerateResult{}, fmt.Errorf("generate: %w", err)
	}

	comment, err := s.store.CreateComment(ctx, store.Comment{
		OrganizationID:    req.OrganizationID,
		Platform:          req.Platform,
		PlatformCommentID: req.PlatformCommentID,
		Author:            req.Author,
		Text:              req.Text,
		ToxicityScore:     req.ToxicityScore,
		Tone:              req.Tone,
	})
	if err != nil {
		s.refund(ctx, req.UserID, "comment_insert_failed")
		return GenerateResult{}, fmt.Errorf("generate: %w: %w", apperr.ErrInternal, err)
	}

	out, err := s.gen.GenerateRoast(ctx, generation.Request{
		Text:           req.Text,
		ToxicityScore:  req.ToxicityScore,
		Tone:           req.Tone,
		Mode:           req.Mode,
		UserID:         req.UserID,
		OrganizationID: req.OrganizationID,
		Plan:           req.Plan,
		Language:       req.Language,
		Platform:       req.Platform,
		PlatformLimit:  req.PlatformLimit,
	})
	if err != nil {
		s.refund(ctx, req.UserID, "generation_rejected")
		return GenerateResult{}, fmt.Errorf("generate: %w", err)
	}

	attempt, err := s.store.NextAttemptNumber(ctx, comment.ID)
	if err != nil {
		s.refund(ctx, req.UserID, "attempt_counter_failed")
		return GenerateResult{}, fmt.Errorf("generate: %w: %w", apperr.ErrInternal, err)
	}
	resp, err := s.store.InsertResponse(ctx, store.Response{
		CommentID:      comment.ID,
		OrganizationID: req.OrganizationID,
		Text:           out.RoastText,
		Tone:           req.Tone,
		Mode:           req.Mode,
		Status:         store.StatusPending,
		AttemptNumber:  attempt,
		Method:         string(out.Method),
		TokensUsed:     out.TokensUsed,
	})
	if err != nil {
		s.refund(ctx, req.UserID, "response_insert_failed")
		return GenerateResult{}, fmt.Errorf("generate: %w: %w", apperr.ErrInternal, err)
	}

	s.record(ctx, logging.AttemptEntry{
		CommentID:     comment.ID,
		ResponseID:    resp.ID,
		AttemptNumber: attempt,
		Status:        logging.AttemptPending,
		Actor:         req.UserID,
	})
	s.recordUsage(ctx, usage.Record{
		OrganizationID: req.OrganizationID,
		Platform:       req.Platform,
		OperationType:  usage.OpGenerateReply,
		TokensUsed:     out.TokensUsed,
		ActorID:        req.UserID,
		Metadata: map[string]any{
			"comment_id":  comment.ID,
			"response_id": resp.ID,
			"method":      string(out.Method),
			"plan":        out.Plan,
		},
	})

	return GenerateResult{
		Success:       true,
		CommentID:     comment.ID,
		ResponseID:    resp.ID,
		AttemptNumber: attempt,
		Roast:         resp.Text,
		Outcome:       out,
		Credits:       credit,
	}, nil
}

// #endregion

// #region approve

// Approve moves a pending response to approved and schedules its delivery.
// The two writes act as one: a failed enqueue reverts the approval and the
// caller gets ErrQueueEnqueue.
func (s *Service) Approve(ctx context.Context, req ApproveRequest) (ApproveResult, error) {
	if err := apperr.Validate(req); err != nil {
		return ApproveResult{}, fmt.Errorf("approve: %w", err)
	}
	resp, err := s.store.GetResponse(ctx, req.ResponseID)
	if err != nil {
		return ApproveResult{}, fmt.Errorf("approve: %w", err)
	}
	if resp.Status != store.StatusPending {
		return ApproveResult{}, fmt.Errorf("approve %s: status %s: %w", resp.ID, resp.Status, apperr.ErrInvalidState)
	}

	text := resp.Text
	if edited := strings.TrimSpace(req.EditedText); edited != "" {
		text = edited
	}
	at := s.now().UTC()
	if err := s.store.Approve(ctx, resp.ID, text, req.Actor, at); err != nil {
		return ApproveResult{}, fmt.Errorf("approve: %w", err)
	}

	priority := req.Priority
	if priority == 0 {
		priority = queue.PriorityHigh
	}
	jobID, err := s.queue.EnqueuePost(ctx, resp.OrganizationID, queue.PostPayload{
		ResponseID:   resp.ID,
		CommentID:    resp.CommentID,
		ResponseText: text,
	}, priority)
	if err != nil {
		return ApproveResult{}, s.rollbackApproval(ctx, resp, req.Actor, err)
	}

	s.record(ctx, logging.AttemptEntry{
		CommentID:     resp.CommentID,
		ResponseID:    resp.ID,
		AttemptNumber: resp.AttemptNumber,
		Status:        logging.AttemptAccepted,
		Actor:         req.Actor,
	})
	s.log.WithFields(logrus.Fields{
		"event":    "response_approved",
		"response": resp.ID,
		"job":      jobID,
		"edited":   text != resp.Text,
	}).Info("response approved")

	return ApproveResult{
		Success:    true,
		ResponseID: resp.ID,
		Status:     store.StatusApproved,
		Text:       text,
		JobID:      jobID,
		ApprovedAt: at,
	}, nil
}

// rollbackApproval reverts a committed approval after its enqueue failed.
func (s *Service) rollbackApproval(ctx context.Context, resp store.Response, actor string, cause error) error {
	entry := s.log.WithFields(logrus.Fields{
		"event":    "approval_rollback",
		"response": resp.ID,
	}).WithError(cause)

	if err := s.store.RevertApproval(ctx, resp.ID, resp.Text); err != nil {
		entry.WithField("revert_error", err.Error()).Error("approval rollback failed")
		// The approval is still committed, so history says so.
		s.record(ctx, logging.AttemptEntry{
			CommentID:     resp.CommentID,
			ResponseID:    resp.ID,
			AttemptNumber: resp.AttemptNumber,
			Status:        logging.AttemptAccepted,
			Actor:         actor,
			Reason:        "delivery enqueue failed; approval revert failed: " + err.Error(),
		})
		return fmt.Errorf("approve %s: rollback failed: %w: %w", resp.ID, apperr.ErrInternal, errors.Join(cause, err))
	}
	entry.Warn("delivery enqueue failed, approval reverted")

	s.record(ctx, logging.AttemptEntry{
		CommentID:     resp.CommentID,
		ResponseID:    resp.ID,
		AttemptNumber: resp.AttemptNumber,
		Status:        logging.AttemptPending,
		Actor:         actor,
		Reason:        "approval reverted: delivery enqueue failed",
	})
	if errors.Is(cause, apperr.ErrQueueEnqueue) {
		return fmt.Errorf("approve %s: %w", resp.ID, cause)
	}
	return fmt.Errorf("approve %s: %w: %w", resp.ID, apperr.ErrQueueEnqueue, cause)
}

// #endregion

// #region reject

// Reject moves a pending response to rejected.
func (s *Service) Reject(ctx context.Context, req RejectRequest) (RejectResult, error) {
	if err := apperr.Validate(req); err != nil {
		return RejectResult{}, fmt.Errorf("reject: %w", err)
	}
	resp, err := s.store.GetResponse(ctx, req.ResponseID)
	if err != nil {
		return RejectResult{}, fmt.Errorf("reject: %w", err)
	}

	reason := strings.TrimSpace(req.Reason)
	if err := s.store.Reject(ctx, resp.ID, reason, req.Actor); err != nil {
		return RejectResult{}, fmt.Errorf("reject: %w", err)
	}

	s.record(ctx, logging.AttemptEntry{
		CommentID:     resp.CommentID,
		ResponseID:    resp.ID,
		AttemptNumber: resp.AttemptNumber,
		Status:        logging.AttemptDiscarded,
		Actor:         req.Actor,
		Reason:        reason,
	})
	return RejectResult{Success: true, ResponseID: resp.ID, Status: store.StatusRejected, Reason: reason}, nil
}

// #endregion

// #region regenerate

// Regenerate discards a pending response and stores a freshly generated
// successor. Checks run in order: pending, variant cap, credit. The attempt
// number comes from the store counter together with the variant slot.
func (s *Service) Regenerate(ctx context.Context, req RegenerateRequest) (RegenerateResult, error) {
	if err := apperr.Validate(req); err != nil {
		return RegenerateResult{}, fmt.Errorf("regenerate: %w", err)
	}
	orig, err := s.store.GetResponse(ctx, req.ResponseID)
	if err != nil {
		return RegenerateResult{}, fmt.Errorf("regenerate: %w", err)
	}
	if orig.Status != store.StatusPending {
		return RegenerateResult{}, fmt.Errorf("regenerate %s: status %s: %w", orig.ID, orig.Status, apperr.ErrInvalidState)
	}

	used, err := s.store.CountRegenerations(ctx, orig.CommentID)
	if err != nil {
		return RegenerateResult{}, fmt.Errorf("regenerate: %w: %w", apperr.ErrInternal, err)
	}
	if used >= s.maxVariant {
		return RegenerateResult{}, fmt.Errorf("regenerate %s: %d variants: %w", orig.CommentID, used, apperr.ErrVariantsExhausted)
	}

	credit, err := s.consume(ctx, req.UserID, req.Plan, usage.OpRegeneration, orig.CommentID)
	if err != nil {
		return RegenerateResult{}, fmt.Errorf("regenerate: %w", err)
	}

	attempt, err := s.store.ReserveRegeneration(ctx, orig.CommentID, s.maxVariant)
	if err != nil {
		s.refund(ctx, req.UserID, "reservation_failed")
		if errors.Is(err, apperr.ErrVariantsExhausted) {
			return RegenerateResult{}, fmt.Errorf("regenerate: %w", err)
		}
		return RegenerateResult{}, fmt.Errorf("regenerate: %w: %w", apperr.ErrInternal, err)
	}

	comment, err := s.store.GetComment(ctx, orig.CommentID)
	if err != nil {
		s.release(ctx, orig.CommentID)
		s.refund(ctx, req.UserID, "comment_lookup_failed")
		return RegenerateResult{}, fmt.Errorf("regenerate: %w", err)
	}

	orgID := req.OrganizationID
	if orgID == "" {
		orgID = orig.OrganizationID
	}
	tone := orig.Tone
	if tone == "" {
		tone = comment.Tone
	}
	out, err := s.gen.GenerateRoast(ctx, generation.Request{
		Text:           comment.Text,
		ToxicityScore:  comment.ToxicityScore,
		Tone:           tone,
		Mode:           orig.Mode,
		UserID:         req.UserID,
		OrganizationID: orgID,
		Plan:           req.Plan,
		Language:       req.Language,
		Platform:       req.Platform,
		PlatformLimit:  req.PlatformLimit,
	})
	if err != nil {
		s.release(ctx, orig.CommentID)
		s.refund(ctx, req.UserID, "generation_rejected")
		return RegenerateResult{}, fmt.Errorf("regenerate: %w", err)
	}

	variant, err := s.store.ReplaceWithVariant(ctx, orig.ID, store.Response{
		CommentID:      orig.CommentID,
		OrganizationID: orig.OrganizationID,
		Text:           out.RoastText,
		Tone:           tone,
		Mode:           orig.Mode,
		AttemptNumber:  attempt,
		Actor:          req.Actor,
		Method:         string(out.Method),
		TokensUsed:     out.TokensUsed,
	})
	if err != nil {
		s.release(ctx, orig.CommentID)
		s.refund(ctx, req.UserID, "variant_insert_failed")
		if errors.Is(err, apperr.ErrInvalidState) {
			return RegenerateResult{}, fmt.Errorf("regenerate: %w", err)
		}
		return RegenerateResult{}, fmt.Errorf("regenerate: %w: %w", apperr.ErrInternal, err)
	}

	s.record(ctx, logging.AttemptEntry{
		CommentID:     orig.CommentID,
		ResponseID:    orig.ID,
		AttemptNumber: orig.AttemptNumber,
		Status:        logging.AttemptRegenerated,
		Actor:         req.Actor,
	})
	s.record(ctx, logging.AttemptEntry{
		CommentID:     variant.CommentID,
		ResponseID:    variant.ID,
		AttemptNumber: variant.AttemptNumber,
		Status:        logging.AttemptPending,
		Actor:         req.Actor,
	})
	s.recordUsage(ctx, usage.Record{
		OrganizationID: orgID,
		Platform:       req.Platform,
		OperationType:  usage.OpRegeneration,
		TokensUsed:     out.TokensUsed,
		ActorID:        req.UserID,
		Metadata: map[string]any{
			"comment_id":           orig.CommentID,
			"response_id":          variant.ID,
			"previous_response_id": orig.ID,
			"attempt_number":       attempt,
			"method":               string(out.Method),
		},
	})

	s.log.WithFields(logrus.Fields{
		"event":    "response_regenerated",
		"comment":  orig.CommentID,
		"previous": orig.ID,
		"response": variant.ID,
		"attempt":  attempt,
	}).Info("response regenerated")

	remaining := s.maxVariant - (used + 1)
	if remaining < 0 {
		remaining = 0
	}
	return RegenerateResult{
		Success:            true,
		ResponseID:         variant.ID,
		PreviousResponseID: orig.ID,
		AttemptNumber:      attempt,
		Text:               variant.Text,
		Method:             out.Method,
		RemainingVariants:  remaining,
		Credits:            credit,
	}, nil
}

// #endregion

// #region helpers

// consume takes one credit or fails with ErrUsageLimit.
func (s *Service) consume(ctx context.Context, userID, plan, op, commentID string) (usage.ConsumeResult, error) {
	meta := map[string]any{"operation": op}
	if commentID != "" {
		meta["comment_id"] = commentID
	}
	res, err := s.credits.ConsumeCredits(ctx, userID, plan, meta)
	if err != nil {
		return usage.ConsumeResult{}, fmt.Errorf("consume credit: %w: %w", apperr.ErrInternal, err)
	}
	if !res.Success {
		return res, fmt.Errorf("consume credit for %s: %s: %w", userID, res.Error, apperr.ErrUsageLimit)
	}
	return res, nil
}

func (s *Service) refund(ctx context.Context, userID, reason string) {
	if err := s.credits.Refund(ctx, userID); err != nil {
		s.log.WithFields(logrus.Fields{
			"event":  "refund_failed",
			"user":   userID,
			"reason": reason,
		}).WithError(err).Error("credit refund failed")
		return
	}
	s.log.WithFields(logrus.Fields{
		"event":  "credit_refunded",
		"user":   userID,
		"reason": reason,
	}).Info("credit refunded")
}

func (s *Service) release(ctx context.Context, commentID string) {
	if err := s.store.ReleaseRegeneration(ctx, commentID); err != nil {
		s.log.WithField("event", "release_failed").WithError(err).Error("regeneration slot not released")
	}
}

// record appends an audit row. Failures are logged only.
func (s *Service) record(ctx context.Context, entry logging.AttemptEntry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.RecordAttempt(ctx, entry); err != nil {
		s.log.WithFields(logrus.Fields{
			"event":    "audit_write_failed",
			"response": entry.ResponseID,
			"status":   entry.Status,
		}).WithError(err).Warn("audit record not written")
	}
}

func (s *Service) recordUsage(ctx context.Context, r usage.Record) {
	if _, err := s.credits.RecordUsage(ctx, r); err != nil {
		s.log.WithFields(logrus.Fields{
			"event":     "usage_record_failed",
			"operation": r.OperationType,
		}).WithError(err).Warn("usage not recorded")
	}
}

// #endregion
