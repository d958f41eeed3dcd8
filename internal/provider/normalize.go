package provider

// #region imports
import (
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"google.golang.org/genai"
)

// #endregion

// #region normalize-chat

// NormalizeChat converts a native chat response into a Response.
// Provenance is left nil; the client attaches it.
func NormalizeChat(native any) (Response, error) {
	switch r := native.(type) {
	case *openai.ChatCompletion:
		if r == nil || len(r.Choices) == 0 {
			return Response{}, fmt.Errorf("openai: no choices: %w", ErrResponseInvalid)
		}
		return Response{
			Content: cleanContent(r.Choices[0].Message.Content),
			Model:   r.Model,
			Usage: Usage{
				PromptTokens:     int(r.Usage.PromptTokens),
				CompletionTokens: int(r.Usage.CompletionTokens),
			},
		}, nil

	case *genai.GenerateContentResponse:
		if r == nil || len(r.Candidates) == 0 {
			return Response{}, fmt.Errorf("gemini: no candidates: %w", ErrResponseInvalid)
		}
		out := Response{
			Content: cleanContent(r.Text()),
			Model:   r.ModelVersion,
		}
		if r.UsageMetadata != nil {
			out.Usage = Usage{
				PromptTokens:     int(r.UsageMetadata.PromptTokenCount),
				CompletionTokens: int(r.UsageMetadata.CandidatesTokenCount),
			}
		}
		return out, nil

	case *MockCompletion:
		if r == nil {
			return Response{}, fmt.Errorf("mock: nil completion: %w", ErrResponseInvalid)
		}
		return Response{
			Content: cleanContent(r.Text),
			Model:   r.Model,
			Usage:   Usage{PromptTokens: r.PromptTokens, CompletionTokens: r.CompletionTokens},
		}, nil
	}
	return Response{}, fmt.Errorf("unsupported chat shape %T: %w", native, ErrResponseInvalid)
}

// #endregion

// #region normalize-embedding

// NormalizeEmbedding converts a native embedding response into an Embedding.
func NormalizeEmbedding(native any) (Embedding, error) {
	switch r := native.(type) {
	case *openai.CreateEmbeddingResponse:
		if r == nil || len(r.Data) == 0 {
			return Embedding{}, fmt.Errorf("openai: no embeddings: %w", ErrResponseInvalid)
		}
		out := Embedding{
			Model: r.Model,
			Usage: Usage{PromptTokens: int(r.Usage.PromptTokens)},
		}
		out.Vectors = make([][]float32, len(r.Data))
		for _, d := range r.Data {
			if int(d.Index) >= len(out.Vectors) {
				return Embedding{}, fmt.Errorf("openai: embedding index %d out of range: %w", d.Index, ErrResponseInvalid)
			}
			vec := make([]float32, len(d.Embedding))
			for i, v := range d.Embedding {
				vec[i] = float32(v)
			}
			out.Vectors[d.Index] = vec
		}
		return out, nil

	case *genai.EmbedContentResponse:
		if r == nil || len(r.Embeddings) == 0 {
			return Embedding{}, fmt.Errorf("gemini: no embeddings: %w", ErrResponseInvalid)
		}
		out := Embedding{}
		for _, e := range r.Embeddings {
			if e == nil {
				return Embedding{}, fmt.Errorf("gemini: nil embedding: %w", ErrResponseInvalid)
			}
			out.Vectors = append(out.Vectors, e.Values)
		}
		return out, nil

	case *MockEmbedding:
		if r == nil || len(r.Vectors) == 0 {
			return Embedding{}, fmt.Errorf("mock: no embeddings: %w", ErrResponseInvalid)
		}
		return Embedding{
			Vectors: r.Vectors,
			Model:   r.Model,
			Usage:   Usage{PromptTokens: r.Tokens},
		}, nil
	}
	return Embedding{}, fmt.Errorf("unsupported embedding shape %T: %w", native, ErrResponseInvalid)
}

// #endregion

// #region clean

// cleanContent trims whitespace, surrounding quotes and markdown fences.
func cleanContent(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

// #endregion
