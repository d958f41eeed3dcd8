package provider

// #region imports
import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/roastr-ai/roast-engine/internal/route"
)

// #endregion

// #region client

// Client is a mode-scoped handle over exactly one transport. It owns the
// single gateway → direct retry; callers never retry a Client themselves.
type Client struct {
	mode      string
	plan      string
	route     route.Route // effective route for this client
	transport Transport
	table     *route.Table
	direct    func() (Transport, error)
	log       *logrus.Entry
}

// Mode returns the normalized mode this client serves.
func (c *Client) Mode() string { return c.mode }

// Plan returns the plan half of the cache key.
func (c *Client) Plan() string { return c.plan }

// Route returns the effective route, including any downgrade.
func (c *Client) Route() route.Route { return c.route }

// Kind returns the transport kind.
func (c *Client) Kind() Kind { return c.transport.Kind() }

// Offline reports whether the client runs on the mock transport.
func (c *Client) Offline() bool { return c.transport.Kind() == KindMock }

// #endregion

// #region chat-complete

// ChatComplete issues one chat call and normalizes the result. When the
// transport is gateway-backed and the mode's next fallback is the default
// provider, a failed call is retried exactly once on a direct transport.
func (c *Client) ChatComplete(ctx context.Context, req ChatRequest) (Response, error) {
	call := c.chatCall(req, c.route.Model)

	native, err := c.chat(ctx, c.transport, call)
	if err == nil {
		resp, nerr := NormalizeChat(native)
		if nerr != nil {
			return Response{}, wrapTransportError(c.route.Provider, "chat", nerr)
		}
		resp.Provenance = &Provenance{Mode: c.mode, Provider: c.transport.Provider()}
		return resp, nil
	}

	c.log.WithFields(logrus.Fields{
		"event":    "provider_failure",
		"mode":     c.mode,
		"provider": c.route.Provider,
		"kind":     c.transport.Kind(),
		"op":       "chat",
	}).WithError(err).Warn("provider call failed")

	direct, fallbackModel, ok := c.fallbackTransport()
	if !ok {
		return Response{}, err
	}

	call.Model = fallbackModel
	call.Provider = route.DefaultProvider
	native, ferr := c.chat(ctx, direct, call)
	if ferr != nil {
		c.log.WithFields(logrus.Fields{
			"event":    "provider_fallback_failed",
			"mode":     c.mode,
			"provider": route.DefaultProvider,
		}).WithError(ferr).Error("fallback call failed")
		return Response{}, ferr
	}
	resp, nerr := NormalizeChat(native)
	if nerr != nil {
		return Response{}, wrapTransportError(route.DefaultProvider, "chat", nerr)
	}
	resp.Provenance = c.fallbackProvenance(fallbackModel)
	return resp, nil
}

func (c *Client) chat(ctx context.Context, t Transport, call ChatCall) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, c.route.EffectiveTimeout())
	defer cancel()
	native, err := t.Chat(ctx, call)
	if err != nil {
		return nil, wrapTransportError(t.Provider(), "chat", err)
	}
	return native, nil
}

func (c *Client) chatCall(req ChatRequest, model string) ChatCall {
	call := ChatCall{
		Model:       model,
		Provider:    c.route.Provider,
		Messages:    req.Messages,
		Temperature: c.route.Params.Temperature,
		MaxTokens:   c.route.Params.MaxTokens,
		User:        req.User,
	}
	if req.Temperature != nil {
		call.Temperature = *req.Temperature
	}
	if req.MaxTokens > 0 {
		call.MaxTokens = req.MaxTokens
	}
	return call
}

// #endregion

// #region embed

// Embed issues one embedding call with the same fallback rule as ChatComplete.
func (c *Client) Embed(ctx context.Context, req EmbedRequest) (Embedding, error) {
	if len(req.Input) == 0 {
		return Embedding{}, fmt.Errorf("embed: empty input: %w", ErrResponseInvalid)
	}
	call := EmbedCall{Model: c.route.EmbeddingModel, Provider: c.route.Provider, Input: req.Input}

	native, err := c.embed(ctx, c.transport, call)
	if err == nil {
		emb, nerr := NormalizeEmbedding(native)
		if nerr != nil {
			return Embedding{}, wrapTransportError(c.route.Provider, "embed", nerr)
		}
		emb.Provenance = &Provenance{Mode: c.mode, Provider: c.transport.Provider()}
		return emb, nil
	}

	c.log.WithFields(logrus.Fields{
		"event":    "provider_failure",
		"mode":     c.mode,
		"provider": c.route.Provider,
		"kind":     c.transport.Kind(),
		"op":       "embed",
	}).WithError(err).Warn("provider call failed")

	direct, _, ok := c.fallbackTransport()
	if !ok {
		return Embedding{}, err
	}

	call.Provider = route.DefaultProvider
	call.Model = defaultEmbeddingModel
	native, ferr := c.embed(ctx, direct, call)
	if ferr != nil {
		return Embedding{}, ferr
	}
	emb, nerr := NormalizeEmbedding(native)
	if nerr != nil {
		return Embedding{}, wrapTransportError(route.DefaultProvider, "embed", nerr)
	}
	emb.Provenance = c.fallbackProvenance(defaultEmbeddingModel)
	return emb, nil
}

// defaultEmbeddingModel is used for direct embedding fallbacks.
const defaultEmbeddingModel = "text-embedding-3-small"

func (c *Client) embed(ctx context.Context, t Transport, call EmbedCall) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, c.route.EffectiveTimeout())
	defer cancel()
	native, err := t.Embed(ctx, call)
	if err != nil {
		return nil, wrapTransportError(t.Provider(), "embed", err)
	}
	return native, nil
}

// #endregion

// #region fallback

// fallbackTransport resolves the direct transport for the one allowed retry.
func (c *Client) fallbackTransport() (Transport, string, bool) {
	if c.transport.Kind() != KindGateway || !c.route.FallbackEnabled || c.direct == nil {
		return nil, "", false
	}
	next, ok := c.table.NextFallback(c.mode, c.route.Provider)
	if !ok || next != route.DefaultProvider {
		return nil, "", false
	}
	direct, err := c.direct()
	if err != nil {
		c.log.WithFields(logrus.Fields{
			"event": "provider_fallback_unavailable",
			"mode":  c.mode,
		}).WithError(err).Warn("direct fallback transport unavailable")
		return nil, "", false
	}

	model := c.route.Downgraded().Model
	c.log.WithFields(logrus.Fields{
		"event":          "provider_fallback",
		"mode":           c.mode,
		"from_provider":  c.route.Provider,
		"to_provider":    route.DefaultProvider,
		"fallback_model": model,
	}).Info("falling back to direct provider")
	return direct, model, true
}

func (c *Client) fallbackProvenance(fallbackModel string) *Provenance {
	return &Provenance{
		Mode:             c.mode,
		Provider:         route.DefaultProvider,
		FallbackUsed:     true,
		OriginalProvider: c.route.Provider,
		OriginalModel:    c.route.Model,
		FallbackModel:    fallbackModel,
	}
}

// #endregion

// #region metadata

// ExtractMetadata reads provenance off a normalized response. Responses
// without provenance get the defaults.
func (c *Client) ExtractMetadata(resp Response) Metadata {
	return ExtractMetadata(resp)
}

// ExtractMetadata is the package-level form of Client.ExtractMetadata.
func ExtractMetadata(resp Response) Metadata {
	p := resp.Provenance
	if p == nil {
		return Metadata{
			Mode:     route.ModeDefault,
			Provider: route.DefaultProvider,
			Metadata: map[string]string{},
		}
	}
	md := map[string]string{}
	if p.OriginalProvider != "" {
		md["original_provider"] = p.OriginalProvider
	}
	if p.OriginalModel != "" {
		md["original_model"] = p.OriginalModel
	}
	if p.FallbackModel != "" {
		md["fallback_model"] = p.FallbackModel
	}
	if resp.Model != "" {
		md["model"] = resp.Model
	}
	mode := p.Mode
	if mode == "" {
		mode = route.ModeDefault
	}
	provider := p.Provider
	if provider == "" {
		provider = route.DefaultProvider
	}
	return Metadata{Mode: mode, Provider: provider, FallbackUsed: p.FallbackUsed, Metadata: md}
}

// #endregion
