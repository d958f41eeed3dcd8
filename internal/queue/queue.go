package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/roastr-ai/roast-engine/internal/apperr"
	"github.com/roastr-ai/roast-engine/internal/logging"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS delivery_jobs (
	id              TEXT PRIMARY KEY,
	job_type        TEXT NOT NULL,
	organization_id TEXT,
	payload         TEXT NOT NULL,
	priority        INTEGER NOT NULL,
	status          TEXT NOT NULL,
	attempts        INTEGER NOT NULL DEFAULT 0,
	max_attempts    INTEGER NOT NULL,
	last_error      TEXT,
	run_after       TEXT NOT NULL,
	created_at      TEXT NOT NULL,
	updated_at      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_delivery_jobs_claim ON delivery_jobs(job_type, status, priority, created_at);
`

// #endregion schema

// timeLayout is fixed-width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// #region queue
// DBQueue is a priority job queue stored in SQLite.
type DBQueue struct {
	db         *sql.DB
	retryDelay time.Duration
	log        *logrus.Entry
	now        func() time.Time
}

// NewDBQueue migrates delivery_jobs and returns a queue over db.
func NewDBQueue(db *sql.DB, log *logrus.Entry) (*DBQueue, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate queue: %w", err)
	}
	return &DBQueue{db: db, retryDelay: DefaultRetryDelay, log: logging.OrDiscard(log), now: time.Now}, nil
}

// #endregion queue

// #region enqueue
// Enqueue inserts a pending job and returns its ID. Failures wrap
// apperr.ErrQueueEnqueue.
func (q *DBQueue) Enqueue(ctx context.Context, j Job) (string, error) {
	if j.Type == "" {
		return "", fmt.Errorf("enqueue: job type required: %w", apperr.ErrQueueEnqueue)
	}
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	if j.Priority < PriorityHigh || j.Priority > PriorityDefault {
		j.Priority = PriorityDefault
	}
	if j.MaxAttempts <= 0 {
		j.MaxAttempts = DefaultMaxAttempts
	}
	if len(j.Payload) == 0 {
		j.Payload = json.RawMessage(`{}`)
	}
	now := q.now().UTC()
	ts := now.Format(timeLayout)

	_, err := q.db.ExecContext(ctx,
		`INSERT INTO delivery_jobs (id, job_type, organization_id, payload, priority, status, attempts, max_attempts,
			run_after, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 'pending', 0, ?, ?, ?, ?)`,
		j.ID, j.Type, nullIfEmpty(j.OrganizationID), string(j.Payload), j.Priority, j.MaxAttempts, ts, ts, ts,
	)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w: %w", j.Type, apperr.ErrQueueEnqueue, err)
	}
	q.log.WithFields(logrus.Fields{
		"event":    "job_enqueued",
		"job_id":   j.ID,
		"job_type": j.Type,
		"priority": j.Priority,
	}).Debug("job enqueued")
	return j.ID, nil
}

// EnqueuePost marshals a post_response payload and enqueues it.
func (q *DBQueue) EnqueuePost(ctx context.Context, orgID string, p PostPayload, priority int) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w: %w", apperr.ErrQueueEnqueue, err)
	}
	return q.Enqueue(ctx, Job{Type: JobPostResponse, OrganizationID: orgID, Payload: b, Priority: priority})
}

// #endregion enqueue

// #region claim
// Claim marks the best runnable pending job of jobType as processing and
// returns it. ok is false when nothing is runnable.
func (q *DBQueue) Claim(ctx context.Context, jobType string) (Job, bool, error) {
	now := q.now().UTC().Format(timeLayout)
	row := q.db.QueryRowContext(ctx,
		`UPDATE delivery_jobs SET status = 'processing', updated_at = ?
		 WHERE id = (
			SELECT id FROM delivery_jobs
			WHERE job_type = ? AND status = 'pending' AND run_after <= ?
			ORDER BY priority ASC, created_at ASC
			LIMIT 1
		 )
		 RETURNING `+jobColumns,
		now, jobType, now,
	)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, false, nil
	}
	if err != nil {
		return Job{}, false, fmt.Errorf("claim %s: %w", jobType, err)
	}
	return j, true, nil
}

// #endregion claim

// #region complete-fail
// Complete marks a processing job completed.
func (q *DBQueue) Complete(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE delivery_jobs SET status = 'completed', updated_at = ? WHERE id = ? AND status = 'processing'`,
		q.now().UTC().Format(timeLayout), id,
	)
	if err != nil {
		return fmt.Errorf("complete %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("complete %s: not processing: %w", id, apperr.ErrInvalidState)
	}
	return nil
}

// Fail records a failed run. The job returns to pending with an exponential
// delay until it reaches max_attempts, then it is marked failed.
func (q *DBQueue) Fail(ctx context.Context, id string, cause error) (Status, error) {
	var attempts, maxAttempts int
	err := q.db.QueryRowContext(ctx,
		`SELECT attempts, max_attempts FROM delivery_jobs WHERE id = ? AND status = 'processing'`, id,
	).Scan(&attempts, &maxAttempts)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("fail %s: not processing: %w", id, apperr.ErrInvalidState)
	}
	if err != nil {
		return "", fmt.Errorf("fail %s: %w", id, err)
	}

	attempts++
	now := q.now().UTC()
	status := StatusPending
	runAfter := now.Add(q.retryDelay * time.Duration(1<<(attempts-1)))
	if attempts >= maxAttempts {
		status = StatusFailed
		runAfter = now
	}

	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err = q.db.ExecContext(ctx,
		`UPDATE delivery_jobs SET status = ?, attempts = ?, last_error = ?, run_after = ?, updated_at = ?
		 WHERE id = ? AND status = 'processing'`,
		string(status), attempts, nullIfEmpty(msg), runAfter.Format(timeLayout), now.Format(timeLayout), id,
	)
	if err != nil {
		return "", fmt.Errorf("fail %s: %w", id, err)
	}

	q.log.WithFields(logrus.Fields{
		"event":    "job_failed",
		"job_id":   id,
		"attempts": attempts,
		"status":   status,
	}).WithError(cause).Warn("job run failed")
	return status, nil
}

// #endregion complete-fail

// #region read
// Get reads a job by ID.
func (q *DBQueue) Get(ctx context.Context, id string) (Job, error) {
	j, err := scanJob(q.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM delivery_jobs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, fmt.Errorf("job %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return Job{}, fmt.Errorf("get job %s: %w", id, err)
	}
	return j, nil
}

// Pending counts pending jobs across all types.
func (q *DBQueue) Pending(ctx context.Context) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM delivery_jobs WHERE status = 'pending'`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return n, nil
}

const jobColumns = `id, job_type, organization_id, payload, priority, status, attempts, max_attempts,
	last_error, run_after, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var j Job
	var org, lastErr sql.NullString
	var payload, status, runAfter, created, updated string
	if err := row.Scan(&j.ID, &j.Type, &org, &payload, &j.Priority, &status, &j.Attempts, &j.MaxAttempts,
		&lastErr, &runAfter, &created, &updated); err != nil {
		return Job{}, err
	}
	j.OrganizationID = org.String
	j.Payload = json.RawMessage(payload)
	j.Status = Status(status)
	j.LastError = lastErr.String
	j.RunAfter, _ = time.Parse(timeLayout, runAfter)
	j.CreatedAt, _ = time.Parse(timeLayout, created)
	j.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return j, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion read
