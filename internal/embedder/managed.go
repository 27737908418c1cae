package embedder

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/genai"
)

// managedBatchCap is the primary embedder's per-call batch limit (spec
// §4.4: "batch size capped at 5 per call").
const managedBatchCap = 5

// ManagedEmbedder wraps the remote text-embedding service, grounded on the
// teacher's own GenerateEmbedding call against google.golang.org/genai.
type ManagedEmbedder struct {
	client     *genai.Client
	model      string
	dimensions int32
}

// NewManagedEmbedder resolves an API key (the apiKey argument first, then
// the GEMINI_API_KEY env var) and opens a genai client.
func NewManagedEmbedder(ctx context.Context, apiKey, model string, dimensions int32) (*ManagedEmbedder, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, &EmbedError{Kind: KindProviderUnavailable, Err: fmt.Errorf("no embedding API key configured")}
	}
	if model == "" {
		model = "gemini-embedding-001"
	}
	if dimensions == 0 {
		dimensions = 768
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &EmbedError{Kind: KindProviderUnavailable, Err: fmt.Errorf("create genai client: %w", err)}
	}
	return &ManagedEmbedder{client: client, model: model, dimensions: dimensions}, nil
}

func (m *ManagedEmbedder) Dimensions() int { return int(m.dimensions) }
func (m *ManagedEmbedder) ModelID() string { return m.model }
func (m *ManagedEmbedder) BatchCap() int   { return managedBatchCap }

func (m *ManagedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := m.BatchEmbed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (m *ManagedEmbedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) > managedBatchCap {
		return nil, fmt.Errorf("batch of %d exceeds managed embedder cap %d", len(texts), managedBatchCap)
	}
	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, &genai.Content{
			Parts: []*genai.Part{{Text: t}},
			Role:  "user",
		})
	}

	dims := m.dimensions
	config := &genai.EmbedContentConfig{OutputDimensionality: &dims}

	resp, err := m.client.Models.EmbedContent(ctx, m.model, contents, config)
	if err != nil {
		select {
		case <-ctx.Done():
			return nil, &EmbedError{Kind: KindCancelled, Err: ctx.Err()}
		default:
			return nil, &EmbedError{Kind: KindProviderUnavailable, Err: err}
		}
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		return nil, &EmbedError{Kind: KindProviderUnavailable, Err: fmt.Errorf("unexpected embedding response shape")}
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) != int(m.dimensions) {
			return nil, &EmbedError{Kind: KindDimensionMismatch, Err: fmt.Errorf("embedding %d has unexpected dimension", i)}
		}
		vectors[i] = e.Values
	}
	return vectors, nil
}
