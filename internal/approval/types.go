package approval

// #region imports
import (
	"context"
	"time"

	"github.com/roastr-ai/roast-engine/internal/generation"
	"github.com/roastr-ai/roast-engine/internal/logging"
	"github.com/roastr-ai/roast-engine/internal/queue"
	"github.com/roastr-ai/roast-engine/internal/store"
	"github.com/roastr-ai/roast-engine/internal/usage"
)

// #endregion

// #region limits

// MaxVariantsPerRoast is the number of regenerations allowed per comment.
const MaxVariantsPerRoast = 5

// #endregion

// #region requests

// GenerateRequest is a fresh roast for a new comment.
type GenerateRequest struct {
	OrganizationID    string  `json:"organization_id" validate:"required"`
	UserID            string  `json:"user_id" validate:"required"`
	Plan              string  `json:"plan"`
	Platform          string  `json:"platform"`
	PlatformCommentID string  `json:"platform_comment_id"`
	Author            string  `json:"author"`
	Text              string  `json:"text" validate:"required,max=2000"`
	ToxicityScore     float64 `json:"toxicity_score" validate:"gte=0,lte=1"`
	Tone              string  `json:"tone" validate:"max=32"`
	Mode              string  `json:"mode" validate:"max=32"`
	Language          string  `json:"language" validate:"omitempty,oneof=es en"`
	PlatformLimit     int     `json:"platform_limit" validate:"gte=0"`
}

// ApproveRequest approves a pending response. EditedText replaces the
// stored text when it is non-blank after trimming.
type ApproveRequest struct {
	ResponseID string `json:"response_id" validate:"required"`
	EditedText string `json:"edited_text" validate:"max=2000"`
	Actor      string `json:"actor"`
	Priority   int    `json:"priority" validate:"gte=0,lte=5"`
}

// RejectRequest rejects a pending response.
type RejectRequest struct {
	ResponseID string `json:"response_id" validate:"required"`
	Reason     string `json:"reason" validate:"max=500"`
	Actor      string `json:"actor"`
}

// RegenerateRequest replaces a pending response with a new variant.
type RegenerateRequest struct {
	ResponseID     string `json:"response_id" validate:"required"`
	UserID         string `json:"user_id" validate:"required"`
	OrganizationID string `json:"organization_id"`
	Plan           string `json:"plan"`
	Platform       string `json:"platform"`
	Language       string `json:"language" validate:"omitempty,oneof=es en"`
	PlatformLimit  int    `json:"platform_limit" validate:"gte=0"`
	Actor          string `json:"actor"`
}

// #endregion

// #region results

// GenerateResult is the persisted outcome of a fresh generation.
type GenerateResult struct {
	Success       bool                `json:"success"`
	CommentID     string              `json:"comment_id"`
	ResponseID    string              `json:"response_id"`
	AttemptNumber int                 `json:"attempt_number"`
	Roast         string              `json:"roast"`
	Outcome       generation.Outcome  `json:"generation"`
	Credits       usage.ConsumeResult `json:"credits"`
}

// ApproveResult reports an approval and its delivery job.
type ApproveResult struct {
	Success    bool         `json:"success"`
	ResponseID string       `json:"response_id"`
	Status     store.Status `json:"status"`
	Text       string       `json:"text"`
	JobID      string       `json:"job_id"`
	ApprovedAt time.Time    `json:"approved_at"`
}

// RejectResult reports a rejection.
type RejectResult struct {
	Success    bool         `json:"success"`
	ResponseID string       `json:"response_id"`
	Status     store.Status `json:"status"`
	Reason     string       `json:"reason,omitempty"`
}

// RegenerateResult carries the new variant.
type RegenerateResult struct {
	Success            bool                `json:"success"`
	ResponseID         string              `json:"response_id"`
	PreviousResponseID string              `json:"previous_response_id"`
	AttemptNumber      int                 `json:"attempt_number"`
	Text               string              `json:"text"`
	Method             generation.Method   `json:"method"`
	RemainingVariants  int                 `json:"remaining_variants"`
	Credits            usage.ConsumeResult `json:"credits"`
}

// #endregion

// #region collaborators

// ResponseStore is the slice of store.Store the service needs.
type ResponseStore interface {
	CreateComment(ctx context.Context, c store.Comment) (store.Comment, error)
	GetComment(ctx context.Context, id string) (store.Comment, error)
	GetResponse(ctx context.Context, id string) (store.Response, error)
	InsertResponse(ctx context.Context, r store.Response) (store.Response, error)
	NextAttemptNumber(ctx context.Context, commentID string) (int, error)
	CountRegenerations(ctx context.Context, commentID string) (int, error)
	ReserveRegeneration(ctx context.Context, commentID string, max int) (int, error)
	ReleaseRegeneration(ctx context.Context, commentID string) error
	Approve(ctx context.Context, id, text, actor string, at time.Time) error
	RevertApproval(ctx context.Context, id, previousText string) error
	Reject(ctx context.Context, id, reason, actor string) error
	ReplaceWithVariant(ctx context.Context, originalID string, variant store.Response) (store.Response, error)
}

// Credits is the plan and usage ledger.
type Credits interface {
	CanPerformOperation(ctx context.Context, orgID, opType string, qty int, platform string) (usage.Decision, error)
	ConsumeCredits(ctx context.Context, userID, plan string, meta map[string]any) (usage.ConsumeResult, error)
	Refund(ctx context.Context, userID string) error
	RecordUsage(ctx context.Context, r usage.Record) (usage.Record, error)
}

// Generator produces roast text.
type Generator interface {
	GenerateRoast(ctx context.Context, req generation.Request) (generation.Outcome, error)
}

// Enqueuer schedules delivery of an approved roast.
type Enqueuer interface {
	EnqueuePost(ctx context.Context, orgID string, p queue.PostPayload, priority int) (string, error)
}

// AuditRecorder appends attempt history rows.
type AuditRecorder interface {
	RecordAttempt(ctx context.Context, entry logging.AttemptEntry) error
}

// #endregion
