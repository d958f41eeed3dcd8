package logging

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// #region helpers
func setupAudit(t *testing.T) (*AuditLog, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	a, err := NewAuditLog(db)
	if err != nil {
		t.Fatalf("new audit log: %v", err)
	}
	return a, db
}

// #endregion helpers

// #region record-attempt-tests
func TestRecordAttempt_Success(t *testing.T) {
	a, db := setupAudit(t)
	ctx := context.Background()

	entry := AttemptEntry{
		CommentID:     "c1",
		ResponseID:    "r1",
		AttemptNumber: 2,
		Status:        AttemptRegenerated,
		Actor:         "moderator-7",
		CreatedAt:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := a.RecordAttempt(ctx, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM roast_attempt_history").Scan(&count)
	if count != 1 {
		t.Errorf("expected 1 row, got %d", count)
	}

	history, err := a.History(ctx, "c1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(history))
	}
	if history[0].Status != AttemptRegenerated || history[0].AttemptNumber != 2 {
		t.Errorf("unexpected entry: %+v", history[0])
	}
	if history[0].Actor != "moderator-7" {
		t.Errorf("expected actor, got %q", history[0].Actor)
	}
}

func TestRecordAttempt_ZeroCreatedAt(t *testing.T) {
	a, _ := setupAudit(t)
	ctx := context.Background()

	before := time.Now().UTC()
	if err := a.RecordAttempt(ctx, AttemptEntry{CommentID: "c2", ResponseID: "r2", AttemptNumber: 1, Status: AttemptPending}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	history, _ := a.History(ctx, "c2")
	if len(history) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(history))
	}
	if history[0].CreatedAt.Before(before) {
		t.Error("expected auto-filled created_at to be >= test start time")
	}
}

func TestRecordAttempt_EmptyOptionalFields(t *testing.T) {
	a, db := setupAudit(t)

	if err := a.RecordAttempt(context.Background(), AttemptEntry{CommentID: "c3", ResponseID: "r3", AttemptNumber: 1, Status: AttemptPending}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var actor, reason sql.NullString
	db.QueryRow("SELECT actor, reason FROM roast_attempt_history").Scan(&actor, &reason)
	if actor.Valid {
		t.Error("expected NULL actor for empty string")
	}
	if reason.Valid {
		t.Error("expected NULL reason for empty string")
	}
}

func TestRecordAttempt_Error(t *testing.T) {
	a, db := setupAudit(t)
	db.Close() // close to force error

	err := a.RecordAttempt(context.Background(), AttemptEntry{CommentID: "c4", ResponseID: "r4", AttemptNumber: 1, Status: AttemptPending})
	if err == nil {
		t.Fatal("expected error on closed db")
	}
}

func TestHistory_Ordering(t *testing.T) {
	a, _ := setupAudit(t)
	ctx := context.Background()

	statuses := []AttemptStatus{AttemptPending, AttemptRegenerated, AttemptPending, AttemptAccepted}
	for i, s := range statuses {
		if err := a.RecordAttempt(ctx, AttemptEntry{CommentID: "c5", ResponseID: "r", AttemptNumber: i + 1, Status: s}); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	a.RecordAttempt(ctx, AttemptEntry{CommentID: "other", ResponseID: "x", AttemptNumber: 1, Status: AttemptPending})

	history, err := a.History(ctx, "c5")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != len(statuses) {
		t.Fatalf("expected %d entries, got %d", len(statuses), len(history))
	}
	for i, e := range history {
		if e.Status != statuses[i] {
			t.Errorf("entry %d: expected %q, got %q", i, statuses[i], e.Status)
		}
	}
}

// #endregion record-attempt-tests

// #region review-tests
func TestLogReview(t *testing.T) {
	a, db := setupAudit(t)
	ctx := context.Background()

	entry := ReviewEntry{
		UserID:          "u1",
		OriginalComment: "You are absolutely terrible at this",
		RoastText:       "Bold words from someone losing to a keyboard.",
		Attempt:         1,
		ModeratorPass:   true,
		ComedianPass:    false,
		ComedianReason:  "flat",
		StylePass:       true,
		Decision:        "regenerate",
		TokensUsed:      42,
		CostCents:       0.12,
		DurationMS:      350,
	}
	if err := a.LogReview(ctx, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	n, err := a.CountReviews(ctx, "u1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 review, got %d", n)
	}

	var comedian int
	var moderatorReason sql.NullString
	db.QueryRow("SELECT comedian_pass, moderator_reason FROM rqc_reviews").Scan(&comedian, &moderatorReason)
	if comedian != 0 {
		t.Errorf("expected comedian_pass 0, got %d", comedian)
	}
	if moderatorReason.Valid {
		t.Error("expected NULL moderator_reason")
	}
}

// #endregion review-tests

// #region null-if-empty-tests
func TestNullIfEmpty_Empty(t *testing.T) {
	if result := nullIfEmpty(""); result != nil {
		t.Errorf("expected nil for empty string, got %v", result)
	}
}

func TestNullIfEmpty_NonEmpty(t *testing.T) {
	if result := nullIfEmpty("hello"); result != "hello" {
		t.Errorf("expected 'hello', got %v", result)
	}
}

// #endregion null-if-empty-tests
