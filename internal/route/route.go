package route

// #region imports
import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// #endregion

// #region defaults

const (
	defaultModel          = "gpt-4o"
	defaultEmbeddingModel = "text-embedding-3-small"
)

// defaultRoutes is the built-in route table.
var defaultRoutes = map[string]Route{
	ModeDefault: {
		Mode:            ModeDefault,
		Provider:        ProviderOpenAI,
		Model:           defaultModel,
		FallbackModel:   "gpt-4o-mini",
		EmbeddingModel:  defaultEmbeddingModel,
		Params:          Params{Temperature: 0.8, MaxTokens: 150, Timeout: 30 * time.Second},
		FallbackEnabled: true,
	},
	ModeFlanders: {
		Mode:            ModeFlanders,
		Provider:        ProviderGemini,
		Model:           "gemini-2.0-flash",
		FallbackModel:   "gpt-4o-mini",
		EmbeddingModel:  "text-embedding-004",
		Params:          Params{Temperature: 0.6, MaxTokens: 120, Timeout: 30 * time.Second},
		FallbackEnabled: true,
	},
	ModeBalanceado: {
		Mode:            ModeBalanceado,
		Provider:        ProviderOpenAI,
		Model:           defaultModel,
		FallbackModel:   "gpt-4o-mini",
		EmbeddingModel:  defaultEmbeddingModel,
		Params:          Params{Temperature: 0.8, MaxTokens: 150, Timeout: 30 * time.Second},
		FallbackEnabled: true,
	},
	ModeCanalla: {
		Mode:            ModeCanalla,
		Provider:        ProviderOpenAI,
		Model:           defaultModel,
		FallbackModel:   "gpt-4o-mini",
		EmbeddingModel:  defaultEmbeddingModel,
		Params:          Params{Temperature: 0.95, MaxTokens: 150, Timeout: 30 * time.Second},
		FallbackEnabled: true,
	},
	ModeNSFW: {
		Mode:            ModeNSFW,
		Provider:        ProviderGrok,
		Model:           "grok-2-latest",
		FallbackModel:   "gpt-4o",
		EmbeddingModel:  defaultEmbeddingModel,
		Params:          Params{Temperature: 0.9, MaxTokens: 150, Timeout: 30 * time.Second},
		FallbackEnabled: true,
	},
}

// defaultChains maps mode → ordered provider fallback chain.
var defaultChains = map[string][]string{
	ModeDefault:    {ProviderOpenAI},
	ModeFlanders:   {ProviderGemini, ProviderOpenAI},
	ModeBalanceado: {ProviderOpenAI},
	ModeCanalla:    {ProviderOpenAI},
	ModeNSFW:       {ProviderGrok, ProviderOpenAI},
}

// aliases maps alternate spellings onto canonical modes.
var aliases = map[string]string{
	"balanced": ModeBalanceado,
	"light":    ModeFlanders,
	"gentle":   ModeFlanders,
	"savage":   ModeCanalla,
	"explicit": ModeNSFW,
}

// #endregion

// #region table

// Table is the immutable mode → Route lookup plus per-mode fallback chains.
// Safe for concurrent use; nothing mutates a Table after construction.
type Table struct {
	routes map[string]Route
	chains map[string][]string
}

// DefaultTable returns the built-in route table.
func DefaultTable() *Table {
	t, _ := NewTable(defaultRoutes, defaultChains)
	return t
}

// NewTable builds a table from the given routes and chains. A "default"
// route is required; modes without a chain get the default chain.
func NewTable(routes map[string]Route, chains map[string][]string) (*Table, error) {
	t := &Table{
		routes: make(map[string]Route, len(routes)),
		chains: make(map[string][]string, len(chains)),
	}
	for mode, r := range routes {
		key := strings.ToLower(strings.TrimSpace(mode))
		if r.Provider == "" || r.Model == "" {
			return nil, fmt.Errorf("route %q: provider and model are required", key)
		}
		r.Mode = key
		t.routes[key] = r
	}
	if _, ok := t.routes[ModeDefault]; !ok {
		return nil, fmt.Errorf("route table: missing %q route", ModeDefault)
	}
	for mode, chain := range chains {
		key := strings.ToLower(strings.TrimSpace(mode))
		t.chains[key] = append([]string(nil), chain...)
	}
	if _, ok := t.chains[ModeDefault]; !ok {
		t.chains[ModeDefault] = []string{DefaultProvider}
	}
	return t, nil
}

// WithOverrides returns a new table with the given routes and chains layered
// over t. The receiver is left untouched. Modes t does not know start from a
// zero Route.
func (t *Table) WithOverrides(routes map[string]Override, chains map[string][]string) (*Table, error) {
	mergedRoutes := make(map[string]Route, len(t.routes)+len(routes))
	for k, v := range t.routes {
		mergedRoutes[k] = v
	}
	for k, o := range routes {
		key := Normalize(k)
		mergedRoutes[key] = mergeRoute(mergedRoutes[key], o)
	}
	mergedChains := make(map[string][]string, len(t.chains)+len(chains))
	for k, v := range t.chains {
		mergedChains[k] = v
	}
	for k, v := range chains {
		mergedChains[Normalize(k)] = v
	}
	return NewTable(mergedRoutes, mergedChains)
}

// mergeRoute fills zero-valued override fields from base.
func mergeRoute(base Route, override Override) Route {
	out := base
	if override.Provider != "" {
		out.Provider = override.Provider
	}
	if override.Model != "" {
		out.Model = override.Model
	}
	if override.FallbackModel != "" {
		out.FallbackModel = override.FallbackModel
	}
	if override.EmbeddingModel != "" {
		out.EmbeddingModel = override.EmbeddingModel
	}
	if override.Params.Temperature > 0 {
		out.Params.Temperature = override.Params.Temperature
	}
	if override.Params.MaxTokens > 0 {
		out.Params.MaxTokens = override.Params.MaxTokens
	}
	if override.Params.Timeout > 0 {
		out.Params.Timeout = override.Params.Timeout
	}
	if override.FallbackEnabled != nil {
		out.FallbackEnabled = *override.FallbackEnabled
	}
	return out
}

// #endregion

// #region lookup

// Normalize lower-cases a mode and resolves aliases.
func Normalize(mode string) string {
	m := strings.ToLower(strings.TrimSpace(mode))
	if canonical, ok := aliases[m]; ok {
		return canonical
	}
	return m
}

// Route returns the route for mode. Unknown or empty modes get the default route.
func (t *Table) Route(mode string) Route {
	if r, ok := t.routes[Normalize(mode)]; ok {
		return r
	}
	return t.routes[ModeDefault]
}

// Exists reports whether mode (after normalization) has its own route.
func (t *Table) Exists(mode string) bool {
	_, ok := t.routes[Normalize(mode)]
	return ok
}

// Modes returns the configured modes in sorted order.
func (t *Table) Modes() []string {
	out := make([]string, 0, len(t.routes))
	for m := range t.routes {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// #endregion
