package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"math/rand/v2"
)

// FallbackModelID clearly marks embeddings produced without a reachable
// model, per spec.md §4.4.
const FallbackModelID = "fallback-hash-v1"

// FallbackEmbedder derives a seeded pseudo-random unit vector from the
// text's hash when no model is reachable. Deterministic and reproducible:
// the same text always yields the same vector.
type FallbackEmbedder struct {
	dimensions int
}

// NewFallbackEmbedder builds a fallback embedder at the given dimension
// (defaults to 768 to match the default IndexState).
func NewFallbackEmbedder(dimensions int) *FallbackEmbedder {
	if dimensions <= 0 {
		dimensions = 768
	}
	return &FallbackEmbedder{dimensions: dimensions}
}

func (f *FallbackEmbedder) Dimensions() int { return f.dimensions }
func (f *FallbackEmbedder) ModelID() string { return FallbackModelID }
func (f *FallbackEmbedder) BatchCap() int   { return 1 << 20 } // no provider, no real cap

func (f *FallbackEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	select {
	case <-ctx.Done():
		return nil, &EmbedError{Kind: KindCancelled, Err: ctx.Err()}
	default:
	}
	return seededUnitVector(text, f.dimensions), nil
}

func (f *FallbackEmbedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}

// seededUnitVector seeds a PCG generator from sha256(text) and draws an
// L2-normalized vector of the requested dimension.
func seededUnitVector(text string, dimensions int) []float32 {
	sum := sha256.Sum256([]byte(text))
	seed1 := binary.BigEndian.Uint64(sum[0:8])
	seed2 := binary.BigEndian.Uint64(sum[8:16])
	rng := rand.New(rand.NewPCG(seed1, seed2))

	vec := make([]float32, dimensions)
	var sumSquares float64
	for i := range vec {
		v := rng.Float64()*2 - 1
		vec[i] = float32(v)
		sumSquares += v * v
	}
	norm := math.Sqrt(sumSquares)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
