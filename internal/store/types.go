package store

import "time"

// #region status
// Status is a response's moderation state. approved, rejected and
// discarded are terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusDiscarded Status = "discarded"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusDiscarded
}

// #endregion status

// #region comment
// Comment is the source text a roast answers.
type Comment struct {
	ID                string
	OrganizationID    string
	Platform          string
	PlatformCommentID string
	Author            string
	Text              string
	ToxicityScore     float64
	Tone              string
	CreatedAt         time.Time
}

// #endregion comment

// #region response
// Response is one roast candidate for a comment.
type Response struct {
	ID               string
	CommentID        string
	OrganizationID   string
	Text             string
	Tone             string
	Mode             string // route mode requested for generation; empty derives it from Tone
	HumorType        string
	Status           Status
	AttemptNumber    int
	ParentResponseID string
	Actor            string
	RejectReason     string
	Method           string
	TokensUsed       int
	ApprovedAt       *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// #endregion response
