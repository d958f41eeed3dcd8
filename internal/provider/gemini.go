package provider

// #region imports
import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/roastr-ai/roast-engine/internal/route"
)

// #endregion

// #region transport

// geminiTransport calls Gemini through the genai SDK.
type geminiTransport struct {
	client *genai.Client
}

// NewGeminiTransport builds a direct Gemini transport.
func NewGeminiTransport(ctx context.Context, apiKey string) (Transport, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: %w", ErrNotConfigured)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &geminiTransport{client: client}, nil
}

func (t *geminiTransport) Kind() Kind       { return KindDirect }
func (t *geminiTransport) Provider() string { return route.ProviderGemini }

// #endregion

// #region chat

// Chat returns *genai.GenerateContentResponse. System messages become the
// system instruction; assistant turns map to the model role.
func (t *geminiTransport) Chat(ctx context.Context, call ChatCall) (any, error) {
	var system []string
	contents := make([]*genai.Content, 0, len(call.Messages))
	for _, m := range call.Messages {
		switch m.Role {
		case "system":
			system = append(system, m.Content)
		case "assistant":
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(call.Temperature),
	}
	if call.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(call.MaxTokens)
	}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}

	resp, err := t.client.Models.GenerateContent(ctx, call.Model, contents, cfg)
	if err != nil {
		return nil, wrapTransportError(route.ProviderGemini, "chat", err)
	}
	return resp, nil
}

// #endregion

// #region embed

// Embed returns *genai.EmbedContentResponse.
func (t *geminiTransport) Embed(ctx context.Context, call EmbedCall) (any, error) {
	contents := make([]*genai.Content, 0, len(call.Input))
	for _, text := range call.Input {
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}
	resp, err := t.client.Models.EmbedContent(ctx, call.Model, contents, nil)
	if err != nil {
		return nil, wrapTransportError(route.ProviderGemini, "embed", err)
	}
	return resp, nil
}

// #endregion
