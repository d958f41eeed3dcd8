package provider

// #region imports
import (
	"context"
	"errors"
	"hash/fnv"
	"strings"

	"github.com/roastr-ai/roast-engine/internal/route"
)

// #endregion

// #region shapes

// MockCompletion is the native chat shape of the offline transport.
type MockCompletion struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// MockEmbedding is the native embedding shape of the offline transport.
type MockEmbedding struct {
	Vectors [][]float32
	Model   string
	Tokens  int
}

// #endregion

// #region canned

const mockModel = "mock-roaster-1"

var mockRoasts = []string{
	"I'd agree with you, but then we'd both be wrong.",
	"Your keyboard deserves a better typist.",
	"That take is so cold it needs its own weather warning.",
	"You argue like a buffering video: lots of spinning, no content.",
	"Somewhere a participation trophy is proud of that comment.",
	"Bold of you to type that with full confidence and zero evidence.",
}

// mockEmbeddingDim is the vector width produced by the offline transport.
const mockEmbeddingDim = 16

// #endregion

// #region mock-transport

// mockTransport returns deterministic canned output. The same input always
// yields the same roast.
type mockTransport struct{}

// NewMockTransport returns the offline transport.
func NewMockTransport() Transport { return mockTransport{} }

func (mockTransport) Kind() Kind       { return KindMock }
func (mockTransport) Provider() string { return route.ProviderMock }

func (mockTransport) Chat(ctx context.Context, call ChatCall) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapTransportError(route.ProviderMock, "chat", err)
	}
	prompt := joinContents(call.Messages)
	last := lastUserContent(call.Messages)

	text := mockRoasts[hashIndex(last, len(mockRoasts))]
	if strings.Contains(prompt, "PASS or FAIL") {
		text = "PASS"
	}
	return &MockCompletion{
		Text:             text,
		Model:            mockModel,
		PromptTokens:     EstimateTokens(prompt),
		CompletionTokens: EstimateTokens(text),
	}, nil
}

func (mockTransport) Embed(ctx context.Context, call EmbedCall) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapTransportError(route.ProviderMock, "embed", err)
	}
	out := &MockEmbedding{Model: mockModel}
	for _, text := range call.Input {
		out.Vectors = append(out.Vectors, hashVector(text))
		out.Tokens += EstimateTokens(text)
	}
	return out, nil
}

// #endregion

// #region failing-transport

// ErrInjectedFailure is returned by FailingTransport.
var ErrInjectedFailure = errors.New("injected provider failure")

// FailingTransport fails every call. It reports itself as KindOf.
type FailingTransport struct {
	KindOf     Kind
	ProviderID string
	Status     int
}

func (f FailingTransport) Kind() Kind {
	if f.KindOf == "" {
		return KindDirect
	}
	return f.KindOf
}

func (f FailingTransport) Provider() string {
	if f.ProviderID == "" {
		return route.ProviderOpenAI
	}
	return f.ProviderID
}

func (f FailingTransport) Chat(context.Context, ChatCall) (any, error) {
	return nil, &TransportError{Provider: f.Provider(), Op: "chat", Status: f.Status, Err: ErrInjectedFailure}
}

func (f FailingTransport) Embed(context.Context, EmbedCall) (any, error) {
	return nil, &TransportError{Provider: f.Provider(), Op: "embed", Status: f.Status, Err: ErrInjectedFailure}
}

// #endregion

// #region helpers

// EstimateTokens approximates a token count as ceil(len/4).
func EstimateTokens(s string) int {
	return (len(s) + 3) / 4
}

func joinContents(msgs []Message) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, "\n")
}

func lastUserContent(msgs []Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "user" {
			return msgs[i].Content
		}
	}
	return ""
}

func hashIndex(s string, n int) int {
	h := fnv.New32a()
	h.Write([]byte(s))
	return int(h.Sum32() % uint32(n))
}

func hashVector(s string) []float32 {
	h := fnv.New64a()
	vec := make([]float32, mockEmbeddingDim)
	for i := range vec {
		h.Write([]byte{byte(i)})
		h.Write([]byte(s))
		vec[i] = float32(h.Sum64()%2000)/1000 - 1
	}
	return vec
}

// #endregion
