package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roastr-ai/roast-engine/internal/route"
)

// clearEnv blanks every key Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ROAST_DB", "ROAST_ADDR", "LOG_LEVEL", "LOG_FORMAT",
		"OPENAI_API_KEY", "OPENAI_BASE_URL", "GROK_API_KEY", "GROK_BASE_URL",
		"GEMINI_API_KEY", "PORTKEY_API_KEY", "PORTKEY_PROJECT_ID", "PORTKEY_BASE_URL",
		"ROAST_MOCK_MODE", "ENABLE_RQC", "TOXICITY_ADDR",
		"MAX_VARIANTS_PER_ROAST", "PROVIDER_TIMEOUT_SECONDS",
	} {
		t.Setenv(k, "")
	}
}

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roast.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "roast_engine.db", cfg.DBPath)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.True(t, cfg.EnableRQC)
	assert.Equal(t, 5, cfg.MaxVariantsPerRoast)
	assert.Equal(t, route.DefaultTimeout, cfg.ProviderTimeout())
	assert.True(t, cfg.Offline(), "no credentials means offline")
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	clearEnv(t)
	path := writeYAML(t, `
db_path: from-yaml.db
enable_rqc: true
max_variants_per_roast: 3
providers:
  openai:
    api_key: yaml-key
`)
	t.Setenv("ROAST_DB", "from-env.db")
	t.Setenv("ENABLE_RQC", "false")
	t.Setenv("PROVIDER_TIMEOUT_SECONDS", "12")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", cfg.DBPath)
	assert.False(t, cfg.EnableRQC)
	assert.Equal(t, 3, cfg.MaxVariantsPerRoast)
	assert.Equal(t, 12*time.Second, cfg.ProviderTimeout())
	assert.False(t, cfg.Offline())
	assert.Equal(t, "yaml-key", cfg.Dialer().OpenAI.APIKey)
	assert.Equal(t, 12*time.Second, cfg.Dialer().OpenAI.Timeout)
}

func TestOffline(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.False(t, cfg.Offline())

	t.Setenv("ROAST_MOCK_MODE", "true")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Offline())

	clearEnv(t)
	t.Setenv("PORTKEY_API_KEY", "pk")
	t.Setenv("PORTKEY_PROJECT_ID", "proj")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.False(t, cfg.Offline(), "gateway alone is enough")
}

func TestLoad_BadEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENABLE_RQC", "maybe")
	_, err := Load("")
	assert.ErrorContains(t, err, "ENABLE_RQC")
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.MaxVariantsPerRoast = -1
	cfg.PlanLimits = map[string]int{"pro": -5}
	cfg.Chains = map[string][]string{"nsfw": {"grok", "anthropic"}}
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "max_variants_per_roast")
	assert.ErrorContains(t, err, "plan_limits.pro")
	assert.ErrorContains(t, err, `unknown provider "anthropic"`)
	assert.ErrorContains(t, err, "log.format")

	assert.NoError(t, Default().Validate())
}

func TestRouteTable_Overrides(t *testing.T) {
	clearEnv(t)
	path := writeYAML(t, `
providers:
  timeout_seconds: 7
routes:
  canalla:
    model: gpt-4o-mini
  roaster:
    provider: grok
    model: grok-2-latest
    params:
      timeout: 3s
fallback_chains:
  roaster: [grok, openai]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	table, err := cfg.RouteTable()
	require.NoError(t, err)

	canalla := table.Route("savage")
	assert.Equal(t, "gpt-4o-mini", canalla.Model)
	assert.Equal(t, route.ProviderOpenAI, canalla.Provider)
	assert.Equal(t, 7*time.Second, canalla.Params.Timeout)

	roaster := table.Route("roaster")
	assert.Equal(t, route.ProviderGrok, roaster.Provider)
	assert.Equal(t, 3*time.Second, roaster.Params.Timeout)
	next, ok := table.NextFallback("roaster", route.ProviderGrok)
	assert.True(t, ok)
	assert.Equal(t, route.ProviderOpenAI, next)

	// the built-in table is untouched
	assert.Equal(t, route.DefaultTable().Route("canalla").Model, "gpt-4o")
}

func TestRouteTable_DisablesFallback(t *testing.T) {
	clearEnv(t)
	path := writeYAML(t, `
routes:
  nsfw:
    fallback_enabled: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	table, err := cfg.RouteTable()
	require.NoError(t, err)
	assert.False(t, table.Route("nsfw").FallbackEnabled)
	assert.Equal(t, route.ProviderGrok, table.Route("nsfw").Provider)
	assert.True(t, table.Route("flanders").FallbackEnabled)
}

func TestRouteTable_NewModeNeedsProvider(t *testing.T) {
	cfg := Default()
	cfg.Routes = map[string]route.Override{"mystery": {Model: "x"}}
	_, err := cfg.RouteTable()
	assert.ErrorContains(t, err, "routes.mystery")
}

func TestPlanSourceAndLimits(t *testing.T) {
	clearEnv(t)
	path := writeYAML(t, `
plans:
  pro:
    tone: canalla
    advanced_review: true
    max_regenerations: 2
plan_limits:
  pro: 2000
  enterprise: -1
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	plans := cfg.PlanSource()
	pro := plans["pro"]
	assert.Equal(t, "pro", pro.Plan)
	assert.True(t, pro.AdvancedReview)
	assert.Equal(t, 2, pro.MaxAttempts())
	assert.Contains(t, plans, "plus")

	limits := cfg.Limits()
	assert.Equal(t, 2000, limits["pro"])
	assert.Equal(t, -1, limits["enterprise"])
	assert.Equal(t, 10, limits["starter_trial"])
}
