package logging

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// #region schema
const auditSchema = `
CREATE TABLE IF NOT EXISTS roast_attempt_history (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	comment_id     TEXT NOT NULL,
	response_id    TEXT NOT NULL,
	attempt_number INTEGER NOT NULL,
	status         TEXT NOT NULL,
	actor          TEXT,
	reason         TEXT,
	created_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_attempt_history_comment ON roast_attempt_history(comment_id);

CREATE TABLE IF NOT EXISTS rqc_reviews (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id          TEXT,
	organization_id  TEXT,
	original_comment TEXT NOT NULL,
	roast_text       TEXT NOT NULL,
	attempt          INTEGER NOT NULL,
	moderator_pass   INTEGER NOT NULL,
	moderator_reason TEXT,
	comedian_pass    INTEGER NOT NULL,
	comedian_reason  TEXT,
	style_pass       INTEGER NOT NULL,
	style_reason     TEXT,
	decision         TEXT NOT NULL,
	tokens_used      INTEGER NOT NULL,
	cost_cents       REAL NOT NULL,
	duration_ms      INTEGER NOT NULL,
	created_at       TEXT NOT NULL
);
`

// #endregion schema

// #region audit-log
// AuditLog appends attempt-history and quality-control review rows.
// Callers treat every write as best-effort.
type AuditLog struct {
	db *sql.DB
}

// NewAuditLog creates the audit tables if needed.
func NewAuditLog(db *sql.DB) (*AuditLog, error) {
	if _, err := db.Exec(auditSchema); err != nil {
		return nil, fmt.Errorf("migrate audit: %w", err)
	}
	return &AuditLog{db: db}, nil
}

// #endregion audit-log

// #region record-attempt
// RecordAttempt writes one row to roast_attempt_history.
func (a *AuditLog) RecordAttempt(ctx context.Context, entry AttemptEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := a.db.ExecContext(ctx,
		`INSERT INTO roast_attempt_history (comment_id, response_id, attempt_number, status, actor, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.CommentID,
		entry.ResponseID,
		entry.AttemptNumber,
		string(entry.Status),
		nullIfEmpty(entry.Actor),
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

// #endregion record-attempt

// #region history
// History returns the attempt history for a comment, oldest first.
func (a *AuditLog) History(ctx context.Context, commentID string) ([]AttemptEntry, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT comment_id, response_id, attempt_number, status, actor, reason, created_at
		 FROM roast_attempt_history WHERE comment_id = ? ORDER BY id`,
		commentID,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []AttemptEntry
	for rows.Next() {
		var e AttemptEntry
		var status, createdAt string
		var actor, reason sql.NullString
		if err := rows.Scan(&e.CommentID, &e.ResponseID, &e.AttemptNumber, &status, &actor, &reason, &createdAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.Status = AttemptStatus(status)
		e.Actor = actor.String
		e.Reason = reason.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion history

// #region log-review
// LogReview writes one quality-control attempt to rqc_reviews.
func (a *AuditLog) LogReview(ctx context.Context, entry ReviewEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := a.db.ExecContext(ctx,
		`INSERT INTO rqc_reviews (user_id, organization_id, original_comment, roast_text, attempt,
			moderator_pass, moderator_reason, comedian_pass, comedian_reason, style_pass, style_reason,
			decision, tokens_used, cost_cents, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullIfEmpty(entry.UserID),
		nullIfEmpty(entry.OrganizationID),
		entry.OriginalComment,
		entry.RoastText,
		entry.Attempt,
		boolToInt(entry.ModeratorPass),
		nullIfEmpty(entry.ModeratorReason),
		boolToInt(entry.ComedianPass),
		nullIfEmpty(entry.ComedianReason),
		boolToInt(entry.StylePass),
		nullIfEmpty(entry.StyleReason),
		entry.Decision,
		entry.TokensUsed,
		entry.CostCents,
		entry.DurationMS,
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log review: %w", err)
	}
	return nil
}

// CountReviews returns how many review rows exist for a user.
func (a *AuditLog) CountReviews(ctx context.Context, userID string) (int, error) {
	var n int
	err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rqc_reviews WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count reviews: %w", err)
	}
	return n, nil
}

// #endregion log-review

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers
