package store

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/roastr-ai/roast-engine/internal/apperr"
)

// #region helpers
func tempDB(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedComment(t *testing.T, s *Store) Comment {
	t.Helper()
	c, err := s.CreateComment(context.Background(), Comment{
		OrganizationID: "org-1",
		Platform:       "twitter",
		Text:           "You are absolutely terrible at this",
		ToxicityScore:  0.85,
		Tone:           "sarcastic",
	})
	if err != nil {
		t.Fatalf("CreateComment: %v", err)
	}
	return c
}

func seedResponse(t *testing.T, s *Store, c Comment) Response {
	t.Helper()
	ctx := context.Background()
	n, err := s.NextAttemptNumber(ctx, c.ID)
	if err != nil {
		t.Fatalf("NextAttemptNumber: %v", err)
	}
	r, err := s.InsertResponse(ctx, Response{
		CommentID:      c.ID,
		OrganizationID: c.OrganizationID,
		Text:           "Bold words from a keyboard warrior.",
		Tone:           "sarcastic",
		AttemptNumber:  n,
	})
	if err != nil {
		t.Fatalf("InsertResponse: %v", err)
	}
	return r
}

// #endregion helpers

// #region comment-tests
func TestCreateAndGetComment(t *testing.T) {
	s := tempDB(t)
	c := seedComment(t, s)

	got, err := s.GetComment(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("GetComment: %v", err)
	}
	if got.Text != c.Text || got.ToxicityScore != 0.85 || got.Platform != "twitter" {
		t.Errorf("unexpected comment: %+v", got)
	}
}

func TestGetComment_NotFound(t *testing.T) {
	s := tempDB(t)
	_, err := s.GetComment(context.Background(), "missing")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// #endregion comment-tests

// #region response-tests
func TestInsertAndGetResponse(t *testing.T) {
	s := tempDB(t)
	r := seedResponse(t, s, seedComment(t, s))

	got, err := s.GetResponse(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("GetResponse: %v", err)
	}
	if got.Status != StatusPending {
		t.Errorf("expected pending, got %s", got.Status)
	}
	if got.AttemptNumber != 1 {
		t.Errorf("expected attempt 1, got %d", got.AttemptNumber)
	}
	if got.ApprovedAt != nil {
		t.Error("expected nil approved_at")
	}
}

func TestResponseMode_RoundTrip(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	c := seedComment(t, s)

	orig, err := s.InsertResponse(ctx, Response{
		CommentID: c.ID, OrganizationID: c.OrganizationID, Text: "x", Mode: "nsfw", AttemptNumber: 1,
	})
	if err != nil {
		t.Fatalf("InsertResponse: %v", err)
	}
	v, err := s.ReplaceWithVariant(ctx, orig.ID, Response{
		CommentID: c.ID, OrganizationID: c.OrganizationID, Text: "y", Mode: "nsfw", AttemptNumber: 2,
	})
	if err != nil {
		t.Fatalf("ReplaceWithVariant: %v", err)
	}

	for _, id := range []string{orig.ID, v.ID} {
		got, err := s.GetResponse(ctx, id)
		if err != nil {
			t.Fatalf("GetResponse: %v", err)
		}
		if got.Mode != "nsfw" {
			t.Errorf("response %s: expected mode nsfw, got %q", id, got.Mode)
		}
	}
}

func TestInsertResponse_DuplicateAttemptRejected(t *testing.T) {
	s := tempDB(t)
	c := seedComment(t, s)
	seedResponse(t, s, c)

	_, err := s.InsertResponse(context.Background(), Response{
		CommentID: c.ID, OrganizationID: c.OrganizationID, Text: "dup", AttemptNumber: 1,
	})
	if err == nil {
		t.Fatal("expected unique violation on duplicate attempt number")
	}
}

func TestGetResponse_NotFound(t *testing.T) {
	s := tempDB(t)
	_, err := s.GetResponse(context.Background(), "nope")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// #endregion response-tests

// #region transition-tests
func TestApprove_AndRevert(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	r := seedResponse(t, s, seedComment(t, s))

	if err := s.Approve(ctx, r.ID, "edited", "mod-1", time.Now()); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	got, _ := s.GetResponse(ctx, r.ID)
	if got.Status != StatusApproved || got.Text != "edited" || got.ApprovedAt == nil {
		t.Fatalf("unexpected approved response: %+v", got)
	}

	if err := s.RevertApproval(ctx, r.ID, r.Text); err != nil {
		t.Fatalf("RevertApproval: %v", err)
	}
	got, _ = s.GetResponse(ctx, r.ID)
	if got.Status != StatusPending {
		t.Errorf("expected pending after revert, got %s", got.Status)
	}
	if got.ApprovedAt != nil {
		t.Error("expected approved_at cleared")
	}
	if got.Text != r.Text {
		t.Errorf("expected original text restored, got %q", got.Text)
	}
}

func TestApprove_Twice(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	r := seedResponse(t, s, seedComment(t, s))

	if err := s.Approve(ctx, r.ID, r.Text, "", time.Now()); err != nil {
		t.Fatalf("first Approve: %v", err)
	}
	err := s.Approve(ctx, r.ID, r.Text, "", time.Now())
	if !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestReject_ThenApproveFails(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	r := seedResponse(t, s, seedComment(t, s))

	if err := s.Reject(ctx, r.ID, "not funny", "mod-2"); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	got, _ := s.GetResponse(ctx, r.ID)
	if got.Status != StatusRejected || got.RejectReason != "not funny" || got.Actor != "mod-2" {
		t.Fatalf("unexpected rejected response: %+v", got)
	}

	if err := s.Approve(ctx, r.ID, r.Text, "", time.Now()); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if err := s.Reject(ctx, r.ID, "", ""); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on second reject, got %v", err)
	}
}

func TestTransition_NotFound(t *testing.T) {
	s := tempDB(t)
	err := s.Reject(context.Background(), "missing", "", "")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReplaceWithVariant(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	c := seedComment(t, s)
	orig := seedResponse(t, s, c)

	n, err := s.ReserveRegeneration(ctx, c.ID, 5)
	if err != nil {
		t.Fatalf("ReserveRegeneration: %v", err)
	}
	v, err := s.ReplaceWithVariant(ctx, orig.ID, Response{
		CommentID: c.ID, OrganizationID: c.OrganizationID, Text: "second try", AttemptNumber: n,
	})
	if err != nil {
		t.Fatalf("ReplaceWithVariant: %v", err)
	}
	if v.ParentResponseID != orig.ID || v.AttemptNumber != 2 || v.Status != StatusPending {
		t.Errorf("unexpected variant: %+v", v)
	}

	got, _ := s.GetResponse(ctx, orig.ID)
	if got.Status != StatusDiscarded {
		t.Errorf("expected original discarded, got %s", got.Status)
	}
}

func TestReplaceWithVariant_InsertFailureRollsBack(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	c := seedComment(t, s)
	orig := seedResponse(t, s, c)

	// attempt 1 is taken by the original, so the insert violates the unique key
	_, err := s.ReplaceWithVariant(ctx, orig.ID, Response{
		CommentID: c.ID, OrganizationID: c.OrganizationID, Text: "dup", AttemptNumber: 1,
	})
	if err == nil {
		t.Fatal("expected insert failure")
	}

	got, _ := s.GetResponse(ctx, orig.ID)
	if got.Status != StatusPending {
		t.Errorf("expected original still pending after rollback, got %s", got.Status)
	}
}

func TestReplaceWithVariant_OriginalNotPending(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	c := seedComment(t, s)
	orig := seedResponse(t, s, c)
	s.Reject(ctx, orig.ID, "", "")

	_, err := s.ReplaceWithVariant(ctx, orig.ID, Response{CommentID: c.ID, OrganizationID: c.OrganizationID, Text: "x", AttemptNumber: 2})
	if !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	list, _ := s.ListResponses(ctx, c.ID)
	if len(list) != 1 {
		t.Errorf("expected no variant inserted, got %d responses", len(list))
	}
}

// #endregion transition-tests

// #region counter-tests
func TestNextAttemptNumber_Sequential(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()

	for want := 1; want <= 4; want++ {
		got, err := s.NextAttemptNumber(ctx, "c-seq")
		if err != nil {
			t.Fatalf("NextAttemptNumber: %v", err)
		}
		if got != want {
			t.Fatalf("expected %d, got %d", want, got)
		}
	}
	n, _ := s.CountAttempts(ctx, "c-seq")
	if n != 4 {
		t.Errorf("expected CountAttempts 4, got %d", n)
	}
	if n, _ := s.CountAttempts(ctx, "never"); n != 0 {
		t.Errorf("expected 0 for unknown comment, got %d", n)
	}
}

func TestNextAttemptNumber_ConcurrentUnique(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()

	const workers = 25
	var wg sync.WaitGroup
	var mu sync.Mutex
	var got []int
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := s.NextAttemptNumber(ctx, "c-conc")
			if err != nil {
				t.Errorf("NextAttemptNumber: %v", err)
				return
			}
			mu.Lock()
			got = append(got, n)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Ints(got)
	for i, n := range got {
		if n != i+1 {
			t.Fatalf("expected contiguous unique numbers, got %v", got)
		}
	}
}

func TestReserveRegeneration_Cap(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	c := seedComment(t, s)
	seedResponse(t, s, c)

	for want := 2; want <= 6; want++ {
		n, err := s.ReserveRegeneration(ctx, c.ID, 5)
		if err != nil {
			t.Fatalf("reservation %d: %v", want, err)
		}
		if n != want {
			t.Fatalf("expected attempt %d, got %d", want, n)
		}
	}
	_, err := s.ReserveRegeneration(ctx, c.ID, 5)
	if !errors.Is(err, apperr.ErrVariantsExhausted) {
		t.Fatalf("expected ErrVariantsExhausted, got %v", err)
	}
	if n, _ := s.CountAttempts(ctx, c.ID); n != 6 {
		t.Errorf("exhausted reservation must not advance the counter, got %d", n)
	}

	if err := s.ReleaseRegeneration(ctx, c.ID); err != nil {
		t.Fatalf("ReleaseRegeneration: %v", err)
	}
	n, err := s.ReserveRegeneration(ctx, c.ID, 5)
	if err != nil {
		t.Fatalf("reservation after release: %v", err)
	}
	if n != 7 {
		t.Errorf("expected attempt 7 after release, got %d", n)
	}
}

func TestReserveRegeneration_SeedsFromExistingRows(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	c := seedComment(t, s)

	// a response inserted without going through the counter
	if _, err := s.InsertResponse(ctx, Response{CommentID: c.ID, OrganizationID: c.OrganizationID, Text: "x", AttemptNumber: 3}); err != nil {
		t.Fatalf("InsertResponse: %v", err)
	}
	n, err := s.ReserveRegeneration(ctx, c.ID, 5)
	if err != nil {
		t.Fatalf("ReserveRegeneration: %v", err)
	}
	if n != 4 {
		t.Errorf("expected 4, got %d", n)
	}
}

func TestReserveRegeneration_ConcurrentNeverExceedsCap(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	c := seedComment(t, s)
	seedResponse(t, s, c)

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := map[int]bool{}
	exhausted := 0
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := s.ReserveRegeneration(ctx, c.ID, 5)
			mu.Lock()
			defer mu.Unlock()
			if errors.Is(err, apperr.ErrVariantsExhausted) {
				exhausted++
				return
			}
			if err != nil {
				t.Errorf("ReserveRegeneration: %v", err)
				return
			}
			if seen[n] {
				t.Errorf("duplicate attempt number %d", n)
			}
			seen[n] = true
		}()
	}
	wg.Wait()

	if len(seen) != 5 {
		t.Errorf("expected exactly 5 reservations, got %d", len(seen))
	}
	if exhausted != 7 {
		t.Errorf("expected 7 exhausted, got %d", exhausted)
	}
}

// #endregion counter-tests
