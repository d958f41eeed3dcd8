package logging

import "time"

// #region attempt-status
// AttemptStatus is the status column of the roast attempt history.
type AttemptStatus string

const (
	AttemptPending     AttemptStatus = "pending"
	AttemptAccepted    AttemptStatus = "accepted"
	AttemptDiscarded   AttemptStatus = "discarded"
	AttemptRegenerated AttemptStatus = "regenerated"
)

// #endregion attempt-status

// #region attempt-entry
// AttemptEntry is a single append-only row in roast_attempt_history.
type AttemptEntry struct {
	CommentID     string
	ResponseID    string
	AttemptNumber int
	Status        AttemptStatus
	Actor         string
	Reason        string
	CreatedAt     time.Time
}

// #endregion attempt-entry

// #region review-entry
// ReviewEntry records one quality-control attempt and its three verdicts.
type ReviewEntry struct {
	UserID          string
	OrganizationID  string
	OriginalComment string
	RoastText       string
	Attempt         int
	ModeratorPass   bool
	ModeratorReason string
	ComedianPass    bool
	ComedianReason  string
	StylePass       bool
	StyleReason     string
	Decision        string // "approved" | "rejected" | "regenerate"
	TokensUsed      int
	CostCents       float64
	DurationMS      int64
	CreatedAt       time.Time
}

// #endregion review-entry
