package provider

// #region imports
import (
	"context"
	"fmt"

	"github.com/roastr-ai/roast-engine/internal/route"
)

// #endregion

// #region sdk-dialer

// SDKDialer builds transports on the real SDK clients.
type SDKDialer struct {
	OpenAI     OpenAIConfig
	Grok       OpenAIConfig
	GeminiKey  string
	GatewayCfg GatewayConfig
}

func (d SDKDialer) GatewayConfigured() bool { return d.GatewayCfg.Configured() }

func (d SDKDialer) HasCredentials(provider string) bool {
	return d.backendKey(provider) != ""
}

func (d SDKDialer) Gateway(r route.Route) (Transport, error) {
	return NewGatewayTransport(d.GatewayCfg, r.Provider, d.backendKey(r.Provider))
}

func (d SDKDialer) Direct(provider string) (Transport, error) {
	switch provider {
	case route.ProviderOpenAI:
		return NewOpenAITransport(d.OpenAI)
	case route.ProviderGrok:
		return NewGrokTransport(d.Grok)
	case route.ProviderGemini:
		return NewGeminiTransport(context.Background(), d.GeminiKey)
	case route.ProviderMock:
		return NewMockTransport(), nil
	}
	return nil, fmt.Errorf("direct transport for %q: %w", provider, ErrNotConfigured)
}

func (d SDKDialer) Mock() Transport { return NewMockTransport() }

func (d SDKDialer) backendKey(provider string) string {
	switch provider {
	case route.ProviderOpenAI:
		return d.OpenAI.APIKey
	case route.ProviderGrok:
		return d.Grok.APIKey
	case route.ProviderGemini:
		return d.GeminiKey
	case route.ProviderMock:
		return "offline"
	}
	return ""
}

// #endregion
