package transparency

import "time"

// #region modes
// Mode selects how the AI disclosure is attached to a roast.
type Mode string

const (
	// ModeUnified appends a disclaimer to every roast, rotating between short
	// signatures and creative lines.
	ModeUnified Mode = "unified"
	// ModeSignature always appends a short signature.
	ModeSignature Mode = "signature"
	// ModeBio leaves the roast untouched and relies on the account bio.
	ModeBio Mode = "bio"
)

// Disclaimer types.
const (
	TypeShort    = "short"
	TypeCreative = "creative"
	TypeBio      = "bio"
)

// #endregion modes

// #region config
// Config tunes disclaimer selection and stats persistence.
type Config struct {
	DefaultLanguage         string
	ShortProbability        float64 // chance of a short signature in unified mode
	CharacterLimitThreshold float64 // above limit*threshold the short signature is forced
	StatsMaxRetries         uint64
	StatsRetryDelay         time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		DefaultLanguage:         "es",
		ShortProbability:        0.7,
		CharacterLimitThreshold: 0.8,
		StatsMaxRetries:         2,
		StatsRetryDelay:         500 * time.Millisecond,
	}
}

// #endregion config

// #region io
// Input is one roast to post-process.
type Input struct {
	Text            string
	UserID          string
	OrganizationID  string
	Language        string // detected from OriginalComment or Text when empty
	PlatformLimit   int    // 0 means no limit
	OriginalComment string
	Mode            Mode
}

// Result is the post-processed roast.
type Result struct {
	FinalText        string `json:"final_text"`
	Disclaimer       string `json:"disclaimer"`
	DisclaimerType   string `json:"disclaimer_type"`
	TransparencyMode string `json:"transparency_mode"`
	BioText          string `json:"bio_text,omitempty"`
	Language         string `json:"language"`
}

// StatsResult reports one RecordStats call.
type StatsResult struct {
	Success  bool
	Attempts int
	Reason   string
}

// #endregion io
