package provider

// #region message

// Message is one chat turn.
type Message struct {
	Role    string // "system" | "user" | "assistant"
	Content string
}

// System, User and Assistant build messages with the matching role.
func System(content string) Message    { return Message{Role: "system", Content: content} }
func User(content string) Message      { return Message{Role: "user", Content: content} }
func Assistant(content string) Message { return Message{Role: "assistant", Content: content} }

// #endregion

// #region requests

// ChatRequest is a canonical chat completion request. Temperature and
// MaxTokens override the route parameters when set.
type ChatRequest struct {
	Messages    []Message
	Temperature *float32
	MaxTokens   int
	User        string
}

// EmbedRequest is a canonical embedding request.
type EmbedRequest struct {
	Input []string
}

// Float32 returns a pointer to v, for ChatRequest.Temperature.
func Float32(v float32) *float32 { return &v }

// #endregion

// #region responses

// Usage is token accounting reported by a provider.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Total returns prompt plus completion tokens.
func (u Usage) Total() int { return u.PromptTokens + u.CompletionTokens }

// Provenance records which route and backend produced a response.
type Provenance struct {
	Mode             string
	Provider         string
	FallbackUsed     bool
	OriginalProvider string
	OriginalModel    string
	FallbackModel    string
}

// Response is the canonical chat completion shape consumed downstream.
type Response struct {
	Content    string
	Model      string
	Usage      Usage
	Provenance *Provenance
}

// Embedding is the canonical embedding shape.
type Embedding struct {
	Vectors    [][]float32
	Model      string
	Usage      Usage
	Provenance *Provenance
}

// Metadata is the flattened provenance view returned by ExtractMetadata.
type Metadata struct {
	Mode         string
	Provider     string
	FallbackUsed bool
	Metadata     map[string]string
}

// #endregion
