package config

// #region imports
import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roastr-ai/roast-engine/internal/generation"
	"github.com/roastr-ai/roast-engine/internal/provider"
	"github.com/roastr-ai/roast-engine/internal/route"
	"github.com/roastr-ai/roast-engine/internal/transparency"
	"github.com/roastr-ai/roast-engine/internal/usage"
)

// #endregion

// #region types

// Backend holds one provider's credentials.
type Backend struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// Gateway holds the AI gateway credentials.
type Gateway struct {
	APIKey    string `yaml:"api_key"`
	ProjectID string `yaml:"project_id"`
	BaseURL   string `yaml:"base_url"`
}

// Config is the process configuration. YAML provides the base; environment
// variables win.
type Config struct {
	DBPath string `yaml:"db_path"`
	Addr   string `yaml:"addr"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Providers struct {
		OpenAI         Backend `yaml:"openai"`
		Grok           Backend `yaml:"grok"`
		Gemini         Backend `yaml:"gemini"`
		Gateway        Gateway `yaml:"gateway"`
		TimeoutSeconds int     `yaml:"timeout_seconds"`
	} `yaml:"providers"`

	MockMode            bool   `yaml:"mock_mode"`
	EnableRQC           bool   `yaml:"enable_rqc"`
	ToxicityAddr        string `yaml:"toxicity_addr"`
	MaxVariantsPerRoast int    `yaml:"max_variants_per_roast"`
	DefaultMode         string `yaml:"default_mode"`

	Routes     map[string]route.Override        `yaml:"routes"`
	Chains     map[string][]string              `yaml:"fallback_chains"`
	Plans      map[string]generation.PlanConfig `yaml:"plans"`
	PlanLimits map[string]int                   `yaml:"plan_limits"`
}

// #endregion

// #region defaults

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg := &Config{
		DBPath:              "roast_engine.db",
		Addr:                ":8080",
		EnableRQC:           true,
		MaxVariantsPerRoast: 5,
		DefaultMode:         route.ModeDefault,
	}
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Providers.TimeoutSeconds = int(route.DefaultTimeout / time.Second)
	return cfg
}

// #endregion

// #region load

// Load reads .env (if present), then the YAML file at path (skipped when
// path is empty), then environment overrides.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.DBPath, "ROAST_DB")
	setString(&c.Addr, "ROAST_ADDR")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")
	setString(&c.Providers.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&c.Providers.OpenAI.BaseURL, "OPENAI_BASE_URL")
	setString(&c.Providers.Grok.APIKey, "GROK_API_KEY")
	setString(&c.Providers.Grok.BaseURL, "GROK_BASE_URL")
	setString(&c.Providers.Gemini.APIKey, "GEMINI_API_KEY")
	setString(&c.Providers.Gateway.APIKey, "PORTKEY_API_KEY")
	setString(&c.Providers.Gateway.ProjectID, "PORTKEY_PROJECT_ID")
	setString(&c.Providers.Gateway.BaseURL, "PORTKEY_BASE_URL")
	setString(&c.ToxicityAddr, "TOXICITY_ADDR")

	var errs []error
	if err := setBool(&c.MockMode, "ROAST_MOCK_MODE"); err != nil {
		errs = append(errs, err)
	}
	if err := setBool(&c.EnableRQC, "ENABLE_RQC"); err != nil {
		errs = append(errs, err)
	}
	if err := setInt(&c.MaxVariantsPerRoast, "MAX_VARIANTS_PER_ROAST"); err != nil {
		errs = append(errs, err)
	}
	if err := setInt(&c.Providers.TimeoutSeconds, "PROVIDER_TIMEOUT_SECONDS"); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("env %s: %w", key, err)
	}
	*dst = b
	return nil
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("env %s: %w", key, err)
	}
	*dst = n
	return nil
}

// #endregion

// #region validate

var knownProviders = map[string]bool{
	route.ProviderOpenAI: true,
	route.ProviderGrok:   true,
	route.ProviderGemini: true,
	route.ProviderMock:   true,
}

// Validate rejects negative limits and unknown providers.
func (c *Config) Validate() error {
	var errs []error
	if c.MaxVariantsPerRoast < 0 {
		errs = append(errs, fmt.Errorf("max_variants_per_roast must be >= 0, got %d", c.MaxVariantsPerRoast))
	}
	if c.Providers.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("providers.timeout_seconds must be >= 0, got %d", c.Providers.TimeoutSeconds))
	}
	for plan, n := range c.PlanLimits {
		if n < usage.Unlimited {
			errs = append(errs, fmt.Errorf("plan_limits.%s: %d is below %d (unlimited)", plan, n, usage.Unlimited))
		}
	}
	for plan, p := range c.Plans {
		if p.MaxRegenerations < 0 {
			errs = append(errs, fmt.Errorf("plans.%s.max_regenerations must be >= 0", plan))
		}
		switch transparency.Mode(p.TransparencyMode) {
		case "", transparency.ModeUnified, transparency.ModeSignature, transparency.ModeBio:
		default:
			errs = append(errs, fmt.Errorf("plans.%s.transparency_mode: unknown mode %q", plan, p.TransparencyMode))
		}
	}
	for mode, chain := range c.Chains {
		for _, p := range chain {
			if !knownProviders[p] {
				errs = append(errs, fmt.Errorf("fallback_chains.%s: unknown provider %q", mode, p))
			}
		}
	}
	for mode, r := range c.Routes {
		if r.Provider != "" && !knownProviders[r.Provider] {
			errs = append(errs, fmt.Errorf("routes.%s: unknown provider %q", mode, r.Provider))
		}
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// #endregion

// #region derived

// Offline reports whether providers are replaced by the mock transport:
// explicitly, or because neither OpenAI nor the gateway is configured.
func (c *Config) Offline() bool {
	return c.MockMode || (c.Providers.OpenAI.APIKey == "" && !c.gateway().Configured())
}

// ProviderTimeout is the per-call provider timeout.
func (c *Config) ProviderTimeout() time.Duration {
	if c.Providers.TimeoutSeconds <= 0 {
		return route.DefaultTimeout
	}
	return time.Duration(c.Providers.TimeoutSeconds) * time.Second
}

// RouteTable layers YAML routes and chains over the built-in table. Routes
// without their own timeout get ProviderTimeout.
func (c *Config) RouteTable() (*route.Table, error) {
	base := route.DefaultTable()
	overrides := make(map[string]route.Override, len(c.Routes))
	for _, mode := range base.Modes() {
		overrides[mode] = route.Override{Params: route.Params{Timeout: c.ProviderTimeout()}}
	}
	for mode, r := range c.Routes {
		key := route.Normalize(mode)
		if r.Params.Timeout <= 0 {
			r.Params.Timeout = c.ProviderTimeout()
		}
		if _, ok := overrides[key]; !ok && (r.Provider == "" || r.Model == "") {
			return nil, fmt.Errorf("routes.%s: new modes need provider and model", mode)
		}
		overrides[key] = r
	}
	t, err := base.WithOverrides(overrides, c.Chains)
	if err != nil {
		return nil, fmt.Errorf("route table: %w", err)
	}
	return t, nil
}

// Dialer returns the SDK dialer for the configured backends.
func (c *Config) Dialer() provider.SDKDialer {
	timeout := c.ProviderTimeout()
	return provider.SDKDialer{
		OpenAI:     provider.OpenAIConfig{APIKey: c.Providers.OpenAI.APIKey, BaseURL: c.Providers.OpenAI.BaseURL, Timeout: timeout},
		Grok:       provider.OpenAIConfig{APIKey: c.Providers.Grok.APIKey, BaseURL: c.Providers.Grok.BaseURL, Timeout: timeout},
		GeminiKey:  c.Providers.Gemini.APIKey,
		GatewayCfg: c.gateway(),
	}
}

func (c *Config) gateway() provider.GatewayConfig {
	return provider.GatewayConfig{
		APIKey:    c.Providers.Gateway.APIKey,
		ProjectID: c.Providers.Gateway.ProjectID,
		BaseURL:   c.Providers.Gateway.BaseURL,
		Timeout:   c.ProviderTimeout(),
	}
}

// PlanSource returns the built-in plans with YAML entries layered on top.
func (c *Config) PlanSource() generation.StaticPlans {
	plans := generation.DefaultPlans()
	for name, p := range c.Plans {
		p.Plan = name
		plans[name] = p
	}
	return plans
}

// Limits returns the built-in plan credit limits with YAML overrides.
func (c *Config) Limits() map[string]int {
	limits := usage.DefaultPlanLimits()
	for plan, n := range c.PlanLimits {
		limits[plan] = n
	}
	return limits
}

// #endregion
