// Package embedder turns article and query text into dense vectors behind
// a capability-set interface with three interchangeable backends.
package embedder

import (
	"context"
	"time"
)

// Embedder is the capability set every backend implements: embed one text,
// embed a batch, and report the output dimensionality.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelID() string
	BatchCap() int
}

// ArticleEmbedding is the result of embedding one article's indexing text.
// The embedder does not persist it; the caller owns that.
type ArticleEmbedding struct {
	Vector       []float32
	TextHash     string
	MetadataHash string
	ModelID      string
	CreatedAt    time.Time
}

// EmbedError classifies why an embed call failed.
type EmbedError struct {
	Kind string // "provider_unavailable" | "dimension_mismatch" | "cancelled"
	Err  error
}

func (e *EmbedError) Error() string { return e.Kind + ": " + e.Err.Error() }
func (e *EmbedError) Unwrap() error { return e.Err }

const (
	KindProviderUnavailable = "provider_unavailable"
	KindDimensionMismatch   = "dimension_mismatch"
	KindCancelled           = "cancelled"
)
