package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roastr-ai/roast-engine/internal/apperr"
)

// #region next-attempt
// NextAttemptNumber increments and returns the comment's attempt counter in
// one statement. Concurrent callers never observe the same value.
func (s *Store) NextAttemptNumber(ctx context.Context, commentID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO comment_attempt_counters (comment_id, last_attempt, regenerations) VALUES (?, 1, 0)
		 ON CONFLICT(comment_id) DO UPDATE SET last_attempt = last_attempt + 1
		 RETURNING last_attempt`,
		commentID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("next attempt %s: %w", commentID, err)
	}
	return n, nil
}

// CountAttempts returns the last attempt number handed out for a comment.
func (s *Store) CountAttempts(ctx context.Context, commentID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT last_attempt FROM comment_attempt_counters WHERE comment_id = ?`, commentID,
	).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("count attempts %s: %w", commentID, err)
	}
	return n, nil
}

// #endregion next-attempt

// #region regenerations
// CountRegenerations returns how many responses for the comment were
// produced by regeneration.
func (s *Store) CountRegenerations(ctx context.Context, commentID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM responses WHERE comment_id = ? AND parent_response_id IS NOT NULL`, commentID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count regenerations %s: %w", commentID, err)
	}
	return n, nil
}

// ReserveRegeneration takes the next attempt number and one regeneration
// slot together. Once max slots are taken it returns ErrVariantsExhausted
// and leaves the counter unchanged.
func (s *Store) ReserveRegeneration(ctx context.Context, commentID string, max int) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Seed from existing rows when the counter was never initialized.
	_, err = tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO comment_attempt_counters (comment_id, last_attempt, regenerations)
		 SELECT ?, COALESCE(MAX(attempt_number), 0), COUNT(parent_response_id)
		 FROM responses WHERE comment_id = ?`,
		commentID, commentID,
	)
	if err != nil {
		return 0, fmt.Errorf("seed counter %s: %w", commentID, err)
	}

	var n int
	err = tx.QueryRowContext(ctx,
		`UPDATE comment_attempt_counters
		 SET last_attempt = last_attempt + 1, regenerations = regenerations + 1
		 WHERE comment_id = ? AND regenerations < ?
		 RETURNING last_attempt`,
		commentID, max,
	).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("comment %s: %w", commentID, apperr.ErrVariantsExhausted)
	}
	if err != nil {
		return 0, fmt.Errorf("reserve regeneration %s: %w", commentID, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// ReleaseRegeneration returns a regeneration slot taken by a call that
// produced no variant. The attempt number stays consumed.
func (s *Store) ReleaseRegeneration(ctx context.Context, commentID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE comment_attempt_counters SET regenerations = regenerations - 1
		 WHERE comment_id = ? AND regenerations > 0`,
		commentID,
	)
	if err != nil {
		return fmt.Errorf("release regeneration %s: %w", commentID, err)
	}
	return nil
}

// #endregion regenerations
