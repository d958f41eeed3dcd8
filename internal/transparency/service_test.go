package transparency

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	_ "modernc.org/sqlite"

	"github.com/roastr-ai/roast-engine/internal/apperr"
)

// #region helpers
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.StatsRetryDelay = time.Millisecond
	return cfg
}

func tempService(t *testing.T) (*Service, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "transparency.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s, err := NewService(db, testConfig(), nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	s.pick = func(int) int { return 0 }
	return s, db
}

// #endregion helpers

// #region apply-tests
func TestApply_ShortSignature(t *testing.T) {
	s, _ := tempService(t)
	s.roll = func() float64 { return 0.1 }

	res, err := s.Apply(context.Background(), Input{Text: "Bold words from a keyboard warrior.", Language: "en"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.DisclaimerType != TypeShort || res.Disclaimer != shortSignatures["en"][0] {
		t.Errorf("unexpected disclaimer %+v", res)
	}
	if res.FinalText != "Bold words from a keyboard warrior.\n\n"+res.Disclaimer {
		t.Errorf("unexpected final text %q", res.FinalText)
	}
	if res.TransparencyMode != string(ModeUnified) {
		t.Errorf("expected unified mode, got %s", res.TransparencyMode)
	}
}

func TestApply_CreativeRotation(t *testing.T) {
	s, _ := tempService(t)
	s.roll = func() float64 { return 0.95 }

	res, _ := s.Apply(context.Background(), Input{Text: "Eres muy valiente detrás de la pantalla.", Language: "es"})
	if res.DisclaimerType != TypeCreative || res.Disclaimer != creativeDisclaimers["es"][0] {
		t.Errorf("expected creative disclaimer, got %+v", res)
	}
}

func TestApply_NearLimitForcesShort(t *testing.T) {
	s, _ := tempService(t)
	s.roll = func() float64 { return 0.99 }

	text := strings.Repeat("a", 90)
	res, _ := s.Apply(context.Background(), Input{Text: text, Language: "en", PlatformLimit: 100})
	if res.DisclaimerType != TypeShort {
		t.Fatalf("expected short signature near the limit, got %s", res.DisclaimerType)
	}
	if n := utf8.RuneCountInString(res.FinalText); n > 100 {
		t.Errorf("final text %d runes exceeds limit", n)
	}
	if !strings.HasSuffix(res.FinalText, res.Disclaimer) {
		t.Error("disclaimer must survive truncation")
	}
}

func TestApply_SignatureMode(t *testing.T) {
	s, _ := tempService(t)
	s.roll = func() float64 { return 0.99 }

	res, _ := s.Apply(context.Background(), Input{Text: "Nice try.", Language: "en", Mode: ModeSignature})
	if res.DisclaimerType != TypeShort {
		t.Errorf("signature mode must use a short signature, got %s", res.DisclaimerType)
	}
}

func TestApply_BioMode(t *testing.T) {
	s, _ := tempService(t)

	res, _ := s.Apply(context.Background(), Input{Text: "Nice try.", Language: "en", Mode: ModeBio})
	if res.FinalText != "Nice try." || res.Disclaimer != "" {
		t.Errorf("bio mode must leave the roast untouched, got %+v", res)
	}
	if res.BioText != bioRecommendations["en"] {
		t.Errorf("unexpected bio text %q", res.BioText)
	}
}

func TestApply_DetectsLanguageFromComment(t *testing.T) {
	s, _ := tempService(t)
	s.roll = func() float64 { return 0 }

	res, _ := s.Apply(context.Background(), Input{
		Text:            "Cool story.",
		OriginalComment: "You are the worst and your takes are bad",
	})
	if res.Language != "en" {
		t.Errorf("expected en, got %s", res.Language)
	}
}

func TestApply_EmptyText(t *testing.T) {
	s, _ := tempService(t)
	_, err := s.Apply(context.Background(), Input{})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

// #endregion apply-tests

// #region stats-tests
func TestApply_RecordsStats(t *testing.T) {
	s, _ := tempService(t)
	ctx := context.Background()
	s.roll = func() float64 { return 0 }

	s.Apply(ctx, Input{Text: "one", Language: "en"})
	s.Apply(ctx, Input{Text: "two", Language: "en"})

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[TypeShort] != 2 {
		t.Errorf("expected 2 short uses, got %v", stats)
	}
}

func TestRecordStats_RetriesThenGivesUp(t *testing.T) {
	s, db := tempService(t)
	db.Close()

	res := s.RecordStats(context.Background(), "#AIGenerated", TypeShort, "en", "")
	if res.Success {
		t.Fatal("expected failure on closed db")
	}
	if res.Attempts != 3 {
		t.Errorf("expected 1 try + 2 retries, got %d", res.Attempts)
	}
}

func TestRecordStats_NoStore(t *testing.T) {
	s, err := NewService(nil, testConfig(), nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	res := s.RecordStats(context.Background(), "#AIGenerated", TypeShort, "en", "")
	if !res.Success || res.Reason != "local_fallback" {
		t.Errorf("unexpected result %+v", res)
	}
	if r := s.RecordStats(context.Background(), "", TypeShort, "en", ""); r.Success {
		t.Error("empty disclaimer must not be recorded")
	}
}

// #endregion stats-tests

// #region helper-tests
func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Eres muy malo en esto, pero sigue intentando", "es"},
		{"You are so bad at this and your jokes are worse", "en"},
		{"", "es"},
		{"12345 !!!", "es"},
	}
	for _, tt := range tests {
		if got := DetectLanguage(tt.text, "es"); got != tt.want {
			t.Errorf("DetectLanguage(%q) = %s, want %s", tt.text, got, tt.want)
		}
	}
}

func TestFit(t *testing.T) {
	if got := fit("hello", "sig", 0); got != "hello\n\nsig" {
		t.Errorf("no limit: got %q", got)
	}
	got := fit(strings.Repeat("x", 20), "sig", 15)
	if utf8.RuneCountInString(got) != 15 || !strings.HasSuffix(got, "…\n\nsig") {
		t.Errorf("truncated: got %q", got)
	}
	if got := fit("hello world", "a very long signature", 8); utf8.RuneCountInString(got) > 8 {
		t.Errorf("no room for disclaimer: got %q", got)
	}
}

// #endregion helper-tests
