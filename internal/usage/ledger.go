package usage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/roastr-ai/roast-engine/internal/logging"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS usage_credits (
	user_id      TEXT PRIMARY KEY,
	plan         TEXT NOT NULL,
	credit_limit INTEGER NOT NULL,
	used         INTEGER NOT NULL DEFAULT 0,
	updated_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS organization_limits (
	organization_id TEXT PRIMARY KEY,
	monthly_limit   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS usage_records (
	id              TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	platform        TEXT,
	operation_type  TEXT NOT NULL,
	quantity        INTEGER NOT NULL,
	tokens_used     INTEGER NOT NULL DEFAULT 0,
	cost_cents      INTEGER NOT NULL DEFAULT 0,
	actor_id        TEXT,
	metadata        TEXT,
	period          TEXT NOT NULL,
	created_at      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_usage_records_org_period ON usage_records(organization_id, period);
`

// #endregion schema

// #region ledger
// Ledger holds per-user generation credits and per-organization usage
// records. Credit checks and decrements happen in one statement.
type Ledger struct {
	db     *sql.DB
	limits map[string]int
	log    *logrus.Entry
	now    func() time.Time
}

// NewLedger migrates the usage tables. limits maps plan → credits; nil uses
// DefaultPlanLimits.
func NewLedger(db *sql.DB, limits map[string]int, log *logrus.Entry) (*Ledger, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate usage: %w", err)
	}
	if limits == nil {
		limits = DefaultPlanLimits()
	}
	return &Ledger{db: db, limits: limits, log: logging.OrDiscard(log), now: time.Now}, nil
}

// PlanLimit returns the credit ceiling for plan. Unknown plans get the
// starter_trial limit.
func (l *Ledger) PlanLimit(plan string) int {
	if n, ok := l.limits[plan]; ok {
		return n
	}
	if n, ok := l.limits["starter_trial"]; ok {
		return n
	}
	return 0
}

// #endregion ledger

// #region consume
// ConsumeCredits atomically checks and takes one credit. A user at the limit
// gets Success=false and a nil error.
func (l *Ledger) ConsumeCredits(ctx context.Context, userID, plan string, meta map[string]any) (ConsumeResult, error) {
	limit := l.PlanLimit(plan)
	now := l.now().UTC().Format(time.RFC3339Nano)

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return ConsumeResult{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Seed the row, or move it to the caller's current plan.
	_, err = tx.ExecContext(ctx,
		`INSERT INTO usage_credits (user_id, plan, credit_limit, used, updated_at) VALUES (?, ?, ?, 0, ?)
		 ON CONFLICT(user_id) DO UPDATE SET plan = excluded.plan, credit_limit = excluded.credit_limit
		 WHERE usage_credits.plan != excluded.plan`,
		userID, plan, limit, now,
	)
	if err != nil {
		return ConsumeResult{}, fmt.Errorf("seed credits %s: %w", userID, err)
	}

	var used, creditLimit int
	err = tx.QueryRowContext(ctx,
		`UPDATE usage_credits SET used = used + 1, updated_at = ?
		 WHERE user_id = ? AND (credit_limit < 0 OR used < credit_limit)
		 RETURNING used, credit_limit`,
		now, userID,
	).Scan(&used, &creditLimit)

	if errors.Is(err, sql.ErrNoRows) {
		if err := tx.QueryRowContext(ctx,
			`SELECT used, credit_limit FROM usage_credits WHERE user_id = ?`, userID,
		).Scan(&used, &creditLimit); err != nil {
			return ConsumeResult{}, fmt.Errorf("read credits %s: %w", userID, err)
		}
		l.log.WithFields(logrus.Fields{
			"event": "credit_denied",
			"user":  userID,
			"plan":  plan,
			"used":  used,
			"limit": creditLimit,
		}).Info("credit limit reached")
		return ConsumeResult{
			Success:   false,
			Remaining: 0,
			Limit:     creditLimit,
			Used:      used,
			Error:     fmt.Sprintf("credit limit of %d reached for plan %s", creditLimit, plan),
		}, nil
	}
	if err != nil {
		return ConsumeResult{}, fmt.Errorf("consume credit %s: %w", userID, err)
	}
	if err := tx.Commit(); err != nil {
		return ConsumeResult{}, fmt.Errorf("commit: %w", err)
	}

	l.log.WithFields(logrus.Fields{
		"event": "credit_consumed",
		"user":  userID,
		"plan":  plan,
		"used":  used,
		"meta":  meta,
	}).Debug("credit consumed")
	return ConsumeResult{Success: true, Remaining: remaining(used, creditLimit), Limit: creditLimit, Used: used}, nil
}

// Refund gives back one credit. It never drops below zero.
func (l *Ledger) Refund(ctx context.Context, userID string) error {
	_, err := l.db.ExecContext(ctx,
		`UPDATE usage_credits SET used = used - 1, updated_at = ? WHERE user_id = ? AND used > 0`,
		l.now().UTC().Format(time.RFC3339Nano), userID,
	)
	if err != nil {
		return fmt.Errorf("refund %s: %w", userID, err)
	}
	l.log.WithFields(logrus.Fields{"event": "credit_refunded", "user": userID}).Info("credit refunded")
	return nil
}

// Balance reads a user's credit row without changing it.
func (l *Ledger) Balance(ctx context.Context, userID string) (ConsumeResult, error) {
	var used, creditLimit int
	err := l.db.QueryRowContext(ctx,
		`SELECT used, credit_limit FROM usage_credits WHERE user_id = ?`, userID,
	).Scan(&used, &creditLimit)
	if errors.Is(err, sql.ErrNoRows) {
		return ConsumeResult{Success: true}, nil
	}
	if err != nil {
		return ConsumeResult{}, fmt.Errorf("balance %s: %w", userID, err)
	}
	return ConsumeResult{Success: true, Remaining: remaining(used, creditLimit), Limit: creditLimit, Used: used}, nil
}

func remaining(used, limit int) int {
	if limit < 0 {
		return Unlimited
	}
	if used >= limit {
		return 0
	}
	return limit - used
}

// #endregion consume

// #region organization
// SetOrganizationLimit stores an organization's monthly response limit.
func (l *Ledger) SetOrganizationLimit(ctx context.Context, orgID string, limit int) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO organization_limits (organization_id, monthly_limit) VALUES (?, ?)
		 ON CONFLICT(organization_id) DO UPDATE SET monthly_limit = excluded.monthly_limit`,
		orgID, limit,
	)
	if err != nil {
		return fmt.Errorf("set org limit %s: %w", orgID, err)
	}
	return nil
}

// CanPerformOperation checks whether qty more billable operations fit in the
// organization's current month. Non-billable operations are always allowed.
func (l *Ledger) CanPerformOperation(ctx context.Context, orgID, opType string, qty int, platform string) (Decision, error) {
	if qty <= 0 {
		qty = 1
	}

	limit := DefaultMonthlyLimit
	err := l.db.QueryRowContext(ctx,
		`SELECT monthly_limit FROM organization_limits WHERE organization_id = ?`, orgID,
	).Scan(&limit)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Decision{}, fmt.Errorf("org limit %s: %w", orgID, err)
	}

	var current int
	err = l.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(quantity), 0) FROM usage_records
		 WHERE organization_id = ? AND period = ? AND operation_type IN (?, ?)`,
		orgID, period(l.now()), OpGenerateReply, OpRegeneration,
	).Scan(&current)
	if err != nil {
		return Decision{}, fmt.Errorf("monthly usage %s: %w", orgID, err)
	}

	d := Decision{Allowed: true, CurrentUsage: current, Limit: limit}
	if billable(opType) && limit >= 0 && current+qty > limit {
		d.Allowed = false
		d.Reason = "monthly_limit_exceeded"
		d.Message = fmt.Sprintf("Monthly limit of %d responses exceeded", limit)
		l.log.WithFields(logrus.Fields{
			"event":    "operation_denied",
			"org":      orgID,
			"op":       opType,
			"platform": platform,
			"current":  current,
			"limit":    limit,
		}).Info("monthly limit reached")
	}
	return d, nil
}

// #endregion organization

// #region record-usage
// RecordUsage appends one usage row, pricing it from the operation type.
func (l *Ledger) RecordUsage(ctx context.Context, r Record) (Record, error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Quantity <= 0 {
		r.Quantity = 1
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = l.now().UTC()
	}
	r.CostCents = operationCosts[r.OperationType] * r.Quantity

	var meta any
	if len(r.Metadata) > 0 {
		b, err := json.Marshal(r.Metadata)
		if err != nil {
			return Record{}, fmt.Errorf("marshal metadata: %w", err)
		}
		meta = string(b)
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO usage_records (id, organization_id, platform, operation_type, quantity, tokens_used,
			cost_cents, actor_id, metadata, period, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.OrganizationID, nullIfEmpty(r.Platform), r.OperationType, r.Quantity, r.TokensUsed,
		r.CostCents, nullIfEmpty(r.ActorID), meta, period(r.CreatedAt), r.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Record{}, fmt.Errorf("insert usage record: %w", err)
	}
	return r, nil
}

// ListUsage returns an organization's records for the current month, oldest first.
func (l *Ledger) ListUsage(ctx context.Context, orgID string) ([]Record, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, organization_id, platform, operation_type, quantity, tokens_used, cost_cents, actor_id, metadata, created_at
		 FROM usage_records WHERE organization_id = ? AND period = ? ORDER BY created_at`,
		orgID, period(l.now()),
	)
	if err != nil {
		return nil, fmt.Errorf("list usage: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var platform, actor, meta sql.NullString
		var created string
		if err := rows.Scan(&r.ID, &r.OrganizationID, &platform, &r.OperationType, &r.Quantity,
			&r.TokensUsed, &r.CostCents, &actor, &meta, &created); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		r.Platform = platform.String
		r.ActorID = actor.String
		if meta.Valid {
			if err := json.Unmarshal([]byte(meta.String), &r.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata %s: %w", r.ID, err)
			}
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// #endregion record-usage

// #region helpers
func period(t time.Time) string {
	return t.UTC().Format("2006-01")
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
