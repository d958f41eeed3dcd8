package provider

// #region imports
import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/roastr-ai/roast-engine/internal/route"
)

// #endregion

// #region defaults

const (
	defaultGrokBaseURL    = "https://api.x.ai/v1"
	defaultGatewayBaseURL = "https://api.portkey.ai/v1"
)

// gatewayProviderSlugs maps backend providers onto gateway routing slugs.
var gatewayProviderSlugs = map[string]string{
	route.ProviderOpenAI: "openai",
	route.ProviderGemini: "google",
	route.ProviderGrok:   "x-ai",
}

// #endregion

// #region transport

// openAITransport speaks the OpenAI wire protocol. It serves direct OpenAI,
// Grok (OpenAI-compatible) and the gateway.
type openAITransport struct {
	client   openai.Client
	kind     Kind
	provider string
}

// OpenAIConfig configures an OpenAI-protocol transport.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Headers map[string]string
}

func newOpenAITransport(kind Kind, provider string, cfg OpenAIConfig) *openAITransport {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	for k, v := range cfg.Headers {
		opts = append(opts, option.WithHeader(k, v))
	}
	return &openAITransport{
		client:   openai.NewClient(opts...),
		kind:     kind,
		provider: provider,
	}
}

// NewOpenAITransport builds a direct OpenAI transport.
func NewOpenAITransport(cfg OpenAIConfig) (Transport, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: %w", ErrNotConfigured)
	}
	return newOpenAITransport(KindDirect, route.ProviderOpenAI, cfg), nil
}

// NewGrokTransport builds a direct Grok transport over the OpenAI protocol.
func NewGrokTransport(cfg OpenAIConfig) (Transport, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("grok: %w", ErrNotConfigured)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGrokBaseURL
	}
	return newOpenAITransport(KindDirect, route.ProviderGrok, cfg), nil
}

// GatewayConfig configures the multi-provider gateway.
type GatewayConfig struct {
	APIKey    string
	ProjectID string
	BaseURL   string
	Timeout   time.Duration
}

// Configured reports whether the gateway has the credentials it needs.
func (g GatewayConfig) Configured() bool {
	return g.APIKey != "" && g.ProjectID != ""
}

// NewGatewayTransport builds a gateway transport that routes to provider.
// backendKey is forwarded as the bearer token for the backend.
func NewGatewayTransport(cfg GatewayConfig, provider, backendKey string) (Transport, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("gateway: %w", ErrNotConfigured)
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultGatewayBaseURL
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("gateway: invalid base url %q", base)
	}
	slug, ok := gatewayProviderSlugs[provider]
	if !ok {
		return nil, fmt.Errorf("gateway: unsupported provider %q", provider)
	}
	if backendKey == "" {
		backendKey = cfg.APIKey
	}
	return newOpenAITransport(KindGateway, provider, OpenAIConfig{
		APIKey:  backendKey,
		BaseURL: base,
		Timeout: cfg.Timeout,
		Headers: map[string]string{
			"x-portkey-api-key":  cfg.APIKey,
			"x-portkey-provider": slug,
			"x-portkey-config":   cfg.ProjectID,
		},
	}), nil
}

func (t *openAITransport) Kind() Kind       { return t.kind }
func (t *openAITransport) Provider() string { return t.provider }

// #endregion

// #region chat

// Chat returns *openai.ChatCompletion.
func (t *openAITransport) Chat(ctx context.Context, call ChatCall) (any, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(call.Messages))
	for _, m := range call.Messages {
		switch m.Role {
		case "system":
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case "assistant":
			msgs = append(msgs, openai.ChatCompletionMessageParamOfAssistant(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(call.Model),
		Messages:    msgs,
		Temperature: openai.Float(float64(call.Temperature)),
	}
	if call.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(call.MaxTokens))
	}
	if call.User != "" {
		params.User = openai.String(call.User)
	}

	resp, err := t.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, wrapTransportError(t.provider, "chat", err)
	}
	return resp, nil
}

// #endregion

// #region embed

// Embed returns *openai.CreateEmbeddingResponse.
func (t *openAITransport) Embed(ctx context.Context, call EmbedCall) (any, error) {
	resp, err := t.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(call.Model),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: call.Input},
	})
	if err != nil {
		return nil, wrapTransportError(t.provider, "embed", err)
	}
	return resp, nil
}

// #endregion
