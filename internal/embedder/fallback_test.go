package embedder

import (
	"context"
	"math"
	"testing"
)

func TestFallbackEmbedderDeterministic(t *testing.T) {
	e := NewFallbackEmbedder(32)
	v1, err := e.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v2, err := e.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatalf("fallback embedder is not deterministic at index %d: %f != %f", i, v1[i], v2[i])
		}
	}
}

func TestFallbackEmbedderUnitNorm(t *testing.T) {
	e := NewFallbackEmbedder(16)
	v, err := e.Embed(context.Background(), "some text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSquares)
	if math.Abs(norm-1.0) > 1e-6 {
		t.Errorf("expected unit norm, got %f", norm)
	}
}

func TestFallbackEmbedderDifferentTextsDiffer(t *testing.T) {
	e := NewFallbackEmbedder(16)
	v1, _ := e.Embed(context.Background(), "text one")
	v2, _ := e.Embed(context.Background(), "text two")
	same := true
	for i := range v1 {
		if v1[i] != v2[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("expected different texts to produce different vectors")
	}
}

func TestFallbackModelIDLabeled(t *testing.T) {
	e := NewFallbackEmbedder(8)
	if e.ModelID() != FallbackModelID {
		t.Errorf("ModelID() = %s, want %s", e.ModelID(), FallbackModelID)
	}
}
