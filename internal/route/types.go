package route

// #region imports
import "time"

// #endregion

// #region modes

// Built-in modes. A mode is a tone bucket mapped to one Route.
const (
	ModeDefault    = "default"
	ModeFlanders   = "flanders"
	ModeBalanceado = "balanceado"
	ModeCanalla    = "canalla"
	ModeNSFW       = "nsfw"
)

// #endregion

// #region providers

// Backend provider identifiers. The gateway is a transport, not a provider.
const (
	ProviderOpenAI = "openai"
	ProviderGrok   = "grok"
	ProviderGemini = "gemini"
	ProviderMock   = "mock"
)

// DefaultProvider is the single direct backend used for fallbacks and downgrades.
const DefaultProvider = ProviderOpenAI

// DefaultTimeout bounds every provider call unless the route overrides it.
const DefaultTimeout = 30 * time.Second

// #endregion

// #region params

// Params are the generation parameters attached to a Route.
type Params struct {
	Temperature float32       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// #endregion

// #region route

// Route binds a mode to a backend provider, model and parameters.
// Routes are values; a Table never hands out references into its storage.
type Route struct {
	Mode            string `yaml:"mode"`
	Provider        string `yaml:"provider"`
	Model           string `yaml:"model"`
	FallbackModel   string `yaml:"fallback_model"`
	EmbeddingModel  string `yaml:"embedding_model"`
	Params          Params `yaml:"params"`
	FallbackEnabled bool   `yaml:"fallback_enabled"`
}

// Specialized reports whether the route needs a backend other than the default one.
func (r Route) Specialized() bool {
	return r.Provider != DefaultProvider
}

// EffectiveTimeout returns the route timeout or DefaultTimeout when unset.
func (r Route) EffectiveTimeout() time.Duration {
	if r.Params.Timeout <= 0 {
		return DefaultTimeout
	}
	return r.Params.Timeout
}

// Downgraded returns a copy of r pointed at the default provider.
func (r Route) Downgraded() Route {
	out := r
	out.Provider = DefaultProvider
	if r.FallbackModel != "" {
		out.Model = r.FallbackModel
	} else {
		out.Model = defaultModel
	}
	return out
}

// #endregion

// #region override

// Override is a partial Route layered over a table entry. Empty fields keep
// the base value; a nil FallbackEnabled keeps the base setting.
type Override struct {
	Provider        string `yaml:"provider"`
	Model           string `yaml:"model"`
	FallbackModel   string `yaml:"fallback_model"`
	EmbeddingModel  string `yaml:"embedding_model"`
	Params          Params `yaml:"params"`
	FallbackEnabled *bool  `yaml:"fallback_enabled"`
}

// #endregion
