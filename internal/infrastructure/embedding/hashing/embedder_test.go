package hashing

import (
	"context"
	"math"
	"testing"
)

func TestDimensionIsZeroUntilLoaded(t *testing.T) {
	e := New(64)
	if e.Loaded() || e.Dimension() != 0 {
		t.Fatalf("expected unloaded embedder with dimension 0")
	}
	if err := e.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !e.Loaded() || e.Dimension() != 64 {
		t.Fatalf("expected loaded embedder with dimension 64, got %d", e.Dimension())
	}
}

func TestEmbedIsDeterministicAndNormalized(t *testing.T) {
	e := New(128)
	vectors, err := e.Embed(context.Background(), []string{"Valerian root helps sleep", "Valerian root helps sleep"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vectors) != 2 || len(vectors[0]) != 128 {
		t.Fatalf("unexpected shape: %d x %d", len(vectors), len(vectors[0]))
	}
	norm := 0.0
	for i := range vectors[0] {
		if vectors[0][i] != vectors[1][i] {
			t.Fatalf("vectors differ at %d", i)
		}
		norm += float64(vectors[0][i]) * float64(vectors[0][i])
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Fatalf("expected unit norm, got %f", norm)
	}
}

func TestEmbedStopwordsOnlyIsZeroVector(t *testing.T) {
	v, err := New(16).EmbedQuery(context.Background(), "how to do it?")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	for _, x := range v {
		if x != 0 {
			t.Fatalf("expected zero vector, got %v", v)
		}
	}
}
