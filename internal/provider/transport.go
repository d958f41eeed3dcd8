package provider

// #region imports
import (
	"context"

	"github.com/roastr-ai/roast-engine/internal/route"
)

// #endregion

// #region kind

// Kind identifies how a transport reaches its backend.
type Kind string

const (
	KindGateway Kind = "gateway"
	KindDirect  Kind = "direct"
	KindMock    Kind = "mock"
)

// #endregion

// #region calls

// ChatCall is a fully resolved chat request handed to a transport.
type ChatCall struct {
	Model       string
	Provider    string // backend the gateway should route to
	Messages    []Message
	Temperature float32
	MaxTokens   int
	User        string
}

// EmbedCall is a fully resolved embedding request handed to a transport.
type EmbedCall struct {
	Model    string
	Provider string
	Input    []string
}

// #endregion

// #region transport

// Transport performs raw calls and returns the backend's native response.
// NormalizeChat and NormalizeEmbedding turn those into canonical shapes.
type Transport interface {
	Kind() Kind
	Provider() string
	Chat(ctx context.Context, call ChatCall) (any, error)
	Embed(ctx context.Context, call EmbedCall) (any, error)
}

// #endregion

// #region dialer

// Dialer constructs transports. The factory depends on this interface so
// tests can inject fakes without SDK clients.
type Dialer interface {
	// GatewayConfigured reports whether a gateway is available at all.
	GatewayConfigured() bool
	// HasCredentials reports whether provider can be reached directly.
	HasCredentials(provider string) bool
	// Gateway builds a multi-provider gateway transport for r.
	Gateway(r route.Route) (Transport, error)
	// Direct builds a direct transport for provider.
	Direct(provider string) (Transport, error)
	// Mock builds the deterministic offline transport.
	Mock() Transport
}

// #endregion
