package embedder

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// localBatchCap is the in-process multilingual model's batch limit (spec
// §4.4: "batch size up to 32").
const localBatchCap = 32

// LocalEmbedder stands in for an in-process multilingual embedding model,
// grounded on the OpenAI-compatible embeddings endpoint used by the pack's
// go-llamaindex style clients. Pointed at a local/self-hosted
// OpenAI-compatible server via BaseURL, it satisfies the spec's "local
// multilingual" variant without pulling in a separate ONNX/ggml runtime.
type LocalEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewLocalEmbedder builds a client against baseURL (empty uses the public
// OpenAI API; point it at a local server for the "in-process" reading of
// the spec).
func NewLocalEmbedder(apiKey, baseURL, model string, dimensions int) *LocalEmbedder {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if model == "" {
		model = string(openai.AdaEmbeddingV2)
	}
	if dimensions == 0 {
		dimensions = 1536
	}
	return &LocalEmbedder{client: openai.NewClientWithConfig(config), model: model, dimensions: dimensions}
}

func (l *LocalEmbedder) Dimensions() int { return l.dimensions }
func (l *LocalEmbedder) ModelID() string { return l.model }
func (l *LocalEmbedder) BatchCap() int   { return localBatchCap }

func (l *LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := l.BatchEmbed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (l *LocalEmbedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) > localBatchCap {
		return nil, fmt.Errorf("batch of %d exceeds local embedder cap %d", len(texts), localBatchCap)
	}
	resp, err := l.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(l.model),
	})
	if err != nil {
		select {
		case <-ctx.Done():
			return nil, &EmbedError{Kind: KindCancelled, Err: ctx.Err()}
		default:
			return nil, &EmbedError{Kind: KindProviderUnavailable, Err: err}
		}
	}
	if len(resp.Data) != len(texts) {
		return nil, &EmbedError{Kind: KindProviderUnavailable, Err: fmt.Errorf("unexpected embedding response shape")}
	}
	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}
