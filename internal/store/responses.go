package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roastr-ai/roast-engine/internal/apperr"
)

// #region execer
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// #endregion execer

// #region insert
// InsertResponse inserts a response. ID, timestamps and status default when empty.
func (s *Store) InsertResponse(ctx context.Context, r Response) (Response, error) {
	r = prepareResponse(r)
	if err := insertResponse(ctx, s.db, r); err != nil {
		return Response{}, err
	}
	return r, nil
}

func prepareResponse(r Response) Response {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Status == "" {
		r.Status = StatusPending
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = r.CreatedAt
	return r
}

func insertResponse(ctx context.Context, ex execer, r Response) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO responses (id, comment_id, organization_id, response_text, tone, mode, humor_type, post_status,
			attempt_number, parent_response_id, actor, rejected_reason, generation_method, tokens_used,
			approved_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.CommentID, r.OrganizationID, r.Text, nullIfEmpty(r.Tone), nullIfEmpty(r.Mode), nullIfEmpty(r.HumorType),
		string(r.Status), r.AttemptNumber, nullIfEmpty(r.ParentResponseID), nullIfEmpty(r.Actor),
		nullIfEmpty(r.RejectReason), nullIfEmpty(r.Method), r.TokensUsed, nullTime(r.ApprovedAt),
		r.CreatedAt.Format(time.RFC3339Nano), r.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert response: %w", err)
	}
	return nil
}

// #endregion insert

// #region get
const responseColumns = `id, comment_id, organization_id, response_text, tone, mode, humor_type, post_status,
	attempt_number, parent_response_id, actor, rejected_reason, generation_method, tokens_used,
	approved_at, created_at, updated_at`

// GetResponse reads a response by ID.
func (s *Store) GetResponse(ctx context.Context, id string) (Response, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+responseColumns+` FROM responses WHERE id = ?`, id)
	r, err := scanResponse(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Response{}, fmt.Errorf("response %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return Response{}, fmt.Errorf("get response %s: %w", id, err)
	}
	return r, nil
}

// ListResponses returns every response for a comment in attempt order.
func (s *Store) ListResponses(ctx context.Context, commentID string) ([]Response, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+responseColumns+` FROM responses WHERE comment_id = ? ORDER BY attempt_number`, commentID)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	defer rows.Close()

	var out []Response
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanResponse(row rowScanner) (Response, error) {
	var r Response
	var tone, mode, humor, parent, actor, reason, method, approved sql.NullString
	var status, created, updated string
	err := row.Scan(&r.ID, &r.CommentID, &r.OrganizationID, &r.Text, &tone, &mode, &humor, &status,
		&r.AttemptNumber, &parent, &actor, &reason, &method, &r.TokensUsed,
		&approved, &created, &updated)
	if err != nil {
		return Response{}, err
	}
	r.Tone = tone.String
	r.Mode = mode.String
	r.HumorType = humor.String
	r.Status = Status(status)
	r.ParentResponseID = parent.String
	r.Actor = actor.String
	r.RejectReason = reason.String
	r.Method = method.String
	if approved.Valid {
		if t, err := time.Parse(time.RFC3339Nano, approved.String); err == nil {
			r.ApprovedAt = &t
		}
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	r.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return r, nil
}

// #endregion get

// #region transitions
// Approve moves a pending response to approved, storing text as the final
// roast. Only one caller can win the pending → approved transition.
func (s *Store) Approve(ctx context.Context, id, text, actor string, at time.Time) error {
	at = at.UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE responses SET post_status = 'approved', response_text = ?, approved_at = ?, actor = ?, updated_at = ?
		 WHERE id = ? AND post_status = 'pending'`,
		text, at.Format(time.RFC3339Nano), nullIfEmpty(actor), at.Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("approve %s: %w", id, err)
	}
	return s.checkTransition(ctx, res, id, StatusPending)
}

// RevertApproval undoes Approve: back to pending, approval time cleared and
// the pre-approval text restored.
func (s *Store) RevertApproval(ctx context.Context, id, previousText string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE responses SET post_status = 'pending', approved_at = NULL, response_text = ?, updated_at = ?
		 WHERE id = ? AND post_status = 'approved'`,
		previousText, time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("revert approval %s: %w", id, err)
	}
	return s.checkTransition(ctx, res, id, StatusApproved)
}

// Reject moves a pending response to rejected with an optional reason.
func (s *Store) Reject(ctx context.Context, id, reason, actor string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE responses SET post_status = 'rejected', rejected_reason = ?, actor = ?, updated_at = ?
		 WHERE id = ? AND post_status = 'pending'`,
		nullIfEmpty(reason), nullIfEmpty(actor), time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("reject %s: %w", id, err)
	}
	return s.checkTransition(ctx, res, id, StatusPending)
}

// ReplaceWithVariant discards a pending original and inserts its successor in
// one transaction. If either write fails neither is applied.
func (s *Store) ReplaceWithVariant(ctx context.Context, originalID string, variant Response) (Response, error) {
	variant.ParentResponseID = originalID
	variant.Status = StatusPending
	variant = prepareResponse(variant)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Response{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE responses SET post_status = 'discarded', updated_at = ?
		 WHERE id = ? AND post_status = 'pending'`,
		variant.CreatedAt.Format(time.RFC3339Nano), originalID,
	)
	if err != nil {
		return Response{}, fmt.Errorf("discard %s: %w", originalID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Response{}, fmt.Errorf("discard %s: not pending: %w", originalID, apperr.ErrInvalidState)
	}

	if err := insertResponse(ctx, tx, variant); err != nil {
		return Response{}, err
	}
	if err := tx.Commit(); err != nil {
		return Response{}, fmt.Errorf("commit: %w", err)
	}
	return variant, nil
}

// checkTransition turns a zero-row conditional update into ErrNotFound or
// ErrInvalidState.
func (s *Store) checkTransition(ctx context.Context, res sql.Result, id string, from Status) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	cur, err := s.GetResponse(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("response %s is %s, expected %s: %w", id, cur.Status, from, apperr.ErrInvalidState)
}

// #endregion transitions
