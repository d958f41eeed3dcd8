package queue

import (
	"encoding/json"
	"time"
)

// #region job-types
// Job types produced by the roast pipeline.
const (
	JobPostResponse = "post_response"
)

// Priorities run from 1 (highest) to 5 (lowest).
const (
	PriorityHigh    = 1
	PriorityDefault = 5
)

// DefaultMaxAttempts bounds delivery retries before a job is marked failed.
const DefaultMaxAttempts = 3

// DefaultRetryDelay is the base of the exponential retry delay.
const DefaultRetryDelay = 5 * time.Second

// #endregion job-types

// #region status
// Status is a job's lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// #endregion status

// #region job
// Job is one delivery_jobs row.
type Job struct {
	ID             string
	Type           string
	OrganizationID string
	Payload        json.RawMessage
	Priority       int
	Status         Status
	Attempts       int
	MaxAttempts    int
	LastError      string
	RunAfter       time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PostPayload is the payload of a post_response job.
type PostPayload struct {
	ResponseID   string `json:"response_id"`
	CommentID    string `json:"comment_id"`
	Platform     string `json:"platform,omitempty"`
	ResponseText string `json:"response_text"`
}

// #endregion job
