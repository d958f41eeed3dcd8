package transparency

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/roastr-ai/roast-engine/internal/apperr"
	"github.com/roastr-ai/roast-engine/internal/logging"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS disclaimer_usage (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	disclaimer_text TEXT NOT NULL,
	disclaimer_type TEXT NOT NULL,
	language        TEXT NOT NULL,
	organization_id TEXT,
	used_at         TEXT NOT NULL
);
`

// #endregion schema

// ErrEmptyText is returned by Apply for a blank roast.
var ErrEmptyText = fmt.Errorf("transparency: empty roast text: %w", apperr.ErrValidation)

// #region service
// Service attaches AI disclosures to roasts and counts which ones were used.
type Service struct {
	cfg  Config
	db   *sql.DB
	log  *logrus.Entry
	roll func() float64
	pick func(n int) int
}

// NewService migrates disclaimer_usage when db is non-nil. A nil db keeps
// stats in the log only.
func NewService(db *sql.DB, cfg Config, log *logrus.Entry) (*Service, error) {
	if db != nil {
		if _, err := db.Exec(schema); err != nil {
			return nil, fmt.Errorf("migrate transparency: %w", err)
		}
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "es"
	}
	return &Service{
		cfg:  cfg,
		db:   db,
		log:  logging.OrDiscard(log),
		roll: rand.Float64,
		pick: rand.IntN,
	}, nil
}

// #endregion service

// #region apply
// Apply post-processes one roast. The returned text always fits
// PlatformLimit when one is given.
func (s *Service) Apply(ctx context.Context, in Input) (Result, error) {
	if in.Text == "" {
		return Result{}, ErrEmptyText
	}

	lang := in.Language
	if !supported(lang) {
		src := in.OriginalComment
		if src == "" {
			src = in.Text
		}
		lang = DetectLanguage(src, s.cfg.DefaultLanguage)
	}

	mode := in.Mode
	if mode == "" {
		mode = ModeUnified
	}

	if mode == ModeBio {
		return Result{
			FinalText:        truncate(in.Text, in.PlatformLimit),
			DisclaimerType:   TypeBio,
			TransparencyMode: string(ModeBio),
			BioText:          BioText(lang),
			Language:         lang,
		}, nil
	}

	disclaimer, typ := s.selectDisclaimer(lang, mode, utf8.RuneCountInString(in.Text), in.PlatformLimit)
	final := fit(in.Text, disclaimer, in.PlatformLimit)

	s.log.WithFields(logrus.Fields{
		"event":           "disclaimer_applied",
		"user":            in.UserID,
		"disclaimer_type": typ,
		"language":        lang,
		"roast_length":    utf8.RuneCountInString(in.Text),
		"final_length":    utf8.RuneCountInString(final),
		"platform_limit":  in.PlatformLimit,
	}).Debug("disclaimer applied")

	s.RecordStats(ctx, disclaimer, typ, lang, in.OrganizationID)

	return Result{
		FinalText:        final,
		Disclaimer:       disclaimer,
		DisclaimerType:   typ,
		TransparencyMode: string(mode),
		Language:         lang,
	}, nil
}

func (s *Service) selectDisclaimer(lang string, mode Mode, roastLen, limit int) (string, string) {
	short := shortSignatures[lang]
	creative := creativeDisclaimers[lang]

	nearLimit := limit > 0 && float64(roastLen) > float64(limit)*s.cfg.CharacterLimitThreshold
	if mode == ModeSignature || nearLimit || s.roll() < s.cfg.ShortProbability {
		return short[s.pick(len(short))], TypeShort
	}
	return creative[s.pick(len(creative))], TypeCreative
}

// fit appends disclaimer, shortening text so the result stays within limit.
func fit(text, disclaimer string, limit int) string {
	const sep = "\n\n"
	full := text + sep + disclaimer
	if limit <= 0 || utf8.RuneCountInString(full) <= limit {
		return full
	}
	room := limit - utf8.RuneCountInString(sep) - utf8.RuneCountInString(disclaimer)
	if room < 2 {
		return truncate(text, limit)
	}
	return truncate(text, room) + sep + disclaimer
}

// truncate cuts s to at most limit runes, marking the cut with an ellipsis.
func truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit-1]) + "…"
}

// #endregion apply

// #region stats
// RecordStats stores one disclaimer use, retrying with exponential backoff.
// Failures are logged and reported in the result, never returned.
func (s *Service) RecordStats(ctx context.Context, disclaimer, typ, lang, orgID string) StatsResult {
	if disclaimer == "" {
		return StatsResult{Reason: "invalid_disclaimer_text"}
	}
	if s.db == nil {
		s.log.WithFields(logrus.Fields{
			"event":           "disclaimer_stats_local",
			"disclaimer_type": typ,
			"language":        lang,
		}).Debug("disclaimer stats kept in log")
		return StatsResult{Success: true, Reason: "local_fallback"}
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = s.cfg.StatsRetryDelay
	expo.RandomizationFactor = 0
	expo.Multiplier = 2
	bo := backoff.WithContext(backoff.WithMaxRetries(expo, s.cfg.StatsMaxRetries), ctx)

	attempts := 0
	op := func() error {
		attempts++
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO disclaimer_usage (disclaimer_text, disclaimer_type, language, organization_id, used_at)
			 VALUES (?, ?, ?, ?, ?)`,
			disclaimer, typ, lang, nullIfEmpty(orgID), time.Now().UTC().Format(time.RFC3339Nano),
		)
		return err
	}
	notify := func(err error, wait time.Duration) {
		s.log.WithFields(logrus.Fields{
			"event":   "disclaimer_stats_retry",
			"attempt": attempts,
			"wait":    wait,
		}).WithError(err).Debug("disclaimer stats write failed, retrying")
	}

	if err := backoff.RetryNotify(op, bo, notify); err != nil {
		s.log.WithFields(logrus.Fields{
			"event":    "disclaimer_stats_failed",
			"attempts": attempts,
		}).WithError(err).Warn("disclaimer stats not recorded")
		return StatsResult{Attempts: attempts, Reason: "all_retries_failed"}
	}
	return StatsResult{Success: true, Attempts: attempts}
}

// Stats counts recorded disclaimer uses by type.
func (s *Service) Stats(ctx context.Context) (map[string]int, error) {
	if s.db == nil {
		return nil, errors.New("transparency: no stats store")
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT disclaimer_type, COUNT(*) FROM disclaimer_usage GROUP BY disclaimer_type`)
	if err != nil {
		return nil, fmt.Errorf("disclaimer stats: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		out[typ] = n
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion stats
