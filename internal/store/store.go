package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/roastr-ai/roast-engine/internal/apperr"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS comments (
	id                  TEXT PRIMARY KEY,
	organization_id     TEXT NOT NULL,
	platform            TEXT,
	platform_comment_id TEXT,
	author              TEXT,
	original_text       TEXT NOT NULL,
	toxicity_score      REAL NOT NULL,
	tone                TEXT,
	created_at          TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS responses (
	id                 TEXT PRIMARY KEY,
	comment_id         TEXT NOT NULL,
	organization_id    TEXT NOT NULL,
	response_text      TEXT NOT NULL,
	tone               TEXT,
	mode               TEXT,
	humor_type         TEXT,
	post_status        TEXT NOT NULL CHECK (post_status IN ('pending', 'approved', 'rejected', 'discarded')),
	attempt_number     INTEGER NOT NULL,
	parent_response_id TEXT,
	actor              TEXT,
	rejected_reason    TEXT,
	generation_method  TEXT,
	tokens_used        INTEGER NOT NULL DEFAULT 0,
	approved_at        TEXT,
	created_at         TEXT NOT NULL,
	updated_at         TEXT NOT NULL,
	UNIQUE (comment_id, attempt_number),
	FOREIGN KEY (comment_id) REFERENCES comments(id),
	FOREIGN KEY (parent_response_id) REFERENCES responses(id)
);

CREATE INDEX IF NOT EXISTS idx_responses_comment ON responses(comment_id);

CREATE TABLE IF NOT EXISTS comment_attempt_counters (
	comment_id    TEXT PRIMARY KEY,
	last_attempt  INTEGER NOT NULL DEFAULT 0,
	regenerations INTEGER NOT NULL DEFAULT 0
);
`

// #endregion schema

// #region store-struct
// Store persists comments, responses and per-comment attempt counters in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations. The pool is held to
// one connection so SQLite sees a single writer.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("pragma busy: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (audit, usage, queue).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion db-accessor

// #region comments
// CreateComment inserts a comment, assigning an ID and timestamp when empty.
func (s *Store) CreateComment(ctx context.Context, c Comment) (Comment, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO comments (id, organization_id, platform, platform_comment_id, author, original_text, toxicity_score, tone, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.OrganizationID, nullIfEmpty(c.Platform), nullIfEmpty(c.PlatformCommentID),
		nullIfEmpty(c.Author), c.Text, c.ToxicityScore, nullIfEmpty(c.Tone),
		c.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	return c, nil
}

// GetComment reads a comment by ID.
func (s *Store) GetComment(ctx context.Context, id string) (Comment, error) {
	var c Comment
	var platform, platformCommentID, author, tone sql.NullString
	var createdStr string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, organization_id, platform, platform_comment_id, author, original_text, toxicity_score, tone, created_at
		 FROM comments WHERE id = ?`, id,
	).Scan(&c.ID, &c.OrganizationID, &platform, &platformCommentID, &author, &c.Text, &c.ToxicityScore, &tone, &createdStr)
	if errors.Is(err, sql.ErrNoRows) {
		return Comment{}, fmt.Errorf("comment %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return Comment{}, fmt.Errorf("get comment %s: %w", id, err)
	}
	c.Platform = platform.String
	c.PlatformCommentID = platformCommentID.String
	c.Author = author.String
	c.Tone = tone.String
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return c, nil
}

// #endregion comments

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// #endregion helpers
