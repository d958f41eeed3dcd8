package route

import (
	"testing"
	"time"
)

// #region route-tests
func TestRoute_EveryModeResolves(t *testing.T) {
	table := DefaultTable()

	modes := append(table.Modes(), "", "unknown", "BALANCED", "  Savage ", "does-not-exist")
	for _, m := range modes {
		r := table.Route(m)
		if r.Provider == "" || r.Model == "" {
			t.Errorf("Route(%q) returned empty route: %+v", m, r)
		}
	}
}

func TestRoute_UnknownEqualsDefault(t *testing.T) {
	table := DefaultTable()

	for _, m := range []string{"", "unknown", "roast-me"} {
		if got, want := table.Route(m), table.Route(ModeDefault); got != want {
			t.Errorf("Route(%q) = %+v, want default %+v", m, got, want)
		}
	}
}

func TestRoute_AliasesAndCase(t *testing.T) {
	table := DefaultTable()

	tests := []struct {
		in   string
		want string
	}{
		{"balanced", ModeBalanceado},
		{"Balanceado", ModeBalanceado},
		{"LIGHT", ModeFlanders},
		{"savage", ModeCanalla},
		{"NSFW", ModeNSFW},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := table.Route(tt.in).Mode; got != tt.want {
				t.Errorf("Route(%q).Mode = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRoute_ReturnsCopies(t *testing.T) {
	table := DefaultTable()

	r := table.Route(ModeNSFW)
	r.Provider = ProviderOpenAI
	r.Model = "tampered"

	if got := table.Route(ModeNSFW); got.Provider != ProviderGrok {
		t.Errorf("table mutated through returned route: %+v", got)
	}
}

func TestDowngraded(t *testing.T) {
	r := DefaultTable().Route(ModeNSFW)
	d := r.Downgraded()

	if d.Provider != DefaultProvider {
		t.Errorf("expected provider %q, got %q", DefaultProvider, d.Provider)
	}
	if d.Model != r.FallbackModel {
		t.Errorf("expected model %q, got %q", r.FallbackModel, d.Model)
	}
	if r.Provider != ProviderGrok {
		t.Error("Downgraded must not modify the receiver")
	}
}

func TestEffectiveTimeout(t *testing.T) {
	r := Route{}
	if r.EffectiveTimeout() != DefaultTimeout {
		t.Errorf("expected default timeout, got %v", r.EffectiveTimeout())
	}
	r.Params.Timeout = 5 * time.Second
	if r.EffectiveTimeout() != 5*time.Second {
		t.Errorf("expected 5s, got %v", r.EffectiveTimeout())
	}
}

// #endregion route-tests

// #region table-construction-tests
func TestNewTable_RequiresDefault(t *testing.T) {
	_, err := NewTable(map[string]Route{
		"savage": {Provider: ProviderOpenAI, Model: "gpt-4o"},
	}, nil)
	if err == nil {
		t.Fatal("expected error for table without default route")
	}
}

func TestNewTable_RejectsIncompleteRoute(t *testing.T) {
	_, err := NewTable(map[string]Route{
		ModeDefault: {Provider: ProviderOpenAI},
	}, nil)
	if err == nil {
		t.Fatal("expected error for route without model")
	}
}

func TestWithOverrides(t *testing.T) {
	base := DefaultTable()

	next, err := base.WithOverrides(
		map[string]Override{"savage": {Model: "gpt-4.1"}},
		map[string][]string{"savage": {ProviderGemini, ProviderOpenAI}},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := next.Route(ModeCanalla).Model; got != "gpt-4.1" {
		t.Errorf("expected overridden model, got %q", got)
	}
	if got := next.Route(ModeCanalla).Provider; got != ProviderOpenAI {
		t.Errorf("expected provider kept from base, got %q", got)
	}
	if got := base.Route(ModeCanalla).Model; got != defaultModel {
		t.Errorf("base table mutated: %q", got)
	}
	if p, ok := next.NextFallback(ModeCanalla, ProviderGemini); !ok || p != ProviderOpenAI {
		t.Errorf("expected overridden chain, got %q %v", p, ok)
	}
}

func TestWithOverrides_FallbackEnabled(t *testing.T) {
	base := DefaultTable()
	off := false

	next, err := base.WithOverrides(map[string]Override{
		ModeNSFW:     {FallbackEnabled: &off},
		ModeFlanders: {Model: "gemini-2.5-flash"},
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if next.Route(ModeNSFW).FallbackEnabled {
		t.Error("expected fallback disabled for nsfw")
	}
	if !next.Route(ModeFlanders).FallbackEnabled {
		t.Error("expected fallback kept when the override leaves it unset")
	}
	if !base.Route(ModeNSFW).FallbackEnabled {
		t.Error("base table mutated")
	}
}

func TestWithOverrides_NewMode(t *testing.T) {
	on := true
	next, err := DefaultTable().WithOverrides(map[string]Override{
		"roaster": {Provider: ProviderGrok, Model: "grok-2-latest", FallbackEnabled: &on},
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := next.Route("roaster")
	if r.Mode != "roaster" || r.Provider != ProviderGrok || !r.FallbackEnabled {
		t.Errorf("unexpected route %+v", r)
	}

	if _, err := DefaultTable().WithOverrides(map[string]Override{"mystery": {Model: "x"}}, nil); err == nil {
		t.Error("expected error for a new mode without provider")
	}
}

// #endregion table-construction-tests

// #region fallback-tests
func TestNextFallback(t *testing.T) {
	table := DefaultTable()

	tests := []struct {
		name    string
		mode    string
		current string
		want    string
		wantOK  bool
	}{
		{"nsfw-grok", ModeNSFW, ProviderGrok, ProviderOpenAI, true},
		{"nsfw-last", ModeNSFW, ProviderOpenAI, "", false},
		{"flanders-gemini", ModeFlanders, ProviderGemini, ProviderOpenAI, true},
		{"default-last", ModeDefault, ProviderOpenAI, "", false},
		{"unknown-provider", ModeNSFW, "anthropic", "", false},
		{"mock-not-listed", ModeDefault, ProviderMock, "", false},
		{"unknown-mode", "nope", ProviderOpenAI, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := table.NextFallback(tt.mode, tt.current)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("NextFallback(%q, %q) = (%q, %v), want (%q, %v)",
					tt.mode, tt.current, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestNextFallback_ProvidersNotInChain(t *testing.T) {
	table := DefaultTable()
	providers := []string{ProviderOpenAI, ProviderGrok, ProviderGemini, ProviderMock, "other"}

	for _, mode := range table.Modes() {
		chain := table.FallbackChain(mode)
		inChain := make(map[string]bool)
		for _, p := range chain {
			inChain[p] = true
		}
		for _, p := range providers {
			if inChain[p] {
				continue
			}
			if next, ok := table.NextFallback(mode, p); ok {
				t.Errorf("mode %q provider %q: expected none, got %q", mode, p, next)
			}
		}
	}
}

func TestFallbackChain_ReturnsCopy(t *testing.T) {
	table := DefaultTable()

	chain := table.FallbackChain(ModeNSFW)
	chain[0] = "tampered"

	if got := table.FallbackChain(ModeNSFW)[0]; got != ProviderGrok {
		t.Errorf("chain mutated: %q", got)
	}
}

// #endregion fallback-tests
