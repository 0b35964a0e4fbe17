package usecase

import (
	"reflect"
	"testing"

	"github.com/kirillkom/anvesana/internal/core/domain"
)

func TestMaximalMarginalRelevanceSkipsNearDuplicates(t *testing.T) {
	query := []float32{1, 0, 0}
	candidates := [][]float32{
		{0.95, 0.05, 0},
		{0.949, 0.051, 0},
		{0.7, 0, 0.7},
		{0, 1, 0},
	}
	if sim := domain.CosineSimilarity(candidates[0], candidates[1]); sim < 0.99 {
		t.Fatalf("fixture candidates are not near duplicates: %f", sim)
	}

	selected := maximalMarginalRelevance(query, candidates, 2, 0.5)
	if !reflect.DeepEqual(selected, []int{0, 2}) {
		t.Fatalf("expected [0 2], got %v", selected)
	}
}

func TestMaximalMarginalRelevancePureRelevance(t *testing.T) {
	query := []float32{1, 0}
	candidates := [][]float32{
		{0.1, 1},
		{1, 0.01},
		{1, 0.02},
		{0.5, 0.5},
	}
	selected := maximalMarginalRelevance(query, candidates, 3, 1)
	if !reflect.DeepEqual(selected, []int{1, 2, 3}) {
		t.Fatalf("expected relevance order [1 2 3], got %v", selected)
	}
}

func TestMaximalMarginalRelevanceDeterministicOnTies(t *testing.T) {
	query := []float32{1, 0}
	candidates := [][]float32{
		{1, 0},
		{1, 0},
		{1, 0},
	}
	first := maximalMarginalRelevance(query, candidates, 2, 0.5)
	for i := 0; i < 10; i++ {
		again := maximalMarginalRelevance(query, candidates, 2, 0.5)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("selection changed between calls: %v vs %v", first, again)
		}
	}
	if !reflect.DeepEqual(first, []int{0, 1}) {
		t.Fatalf("expected lowest indexes on ties, got %v", first)
	}
}

func TestMaximalMarginalRelevanceShortPool(t *testing.T) {
	selected := maximalMarginalRelevance([]float32{1, 0}, [][]float32{{0, 1}, {1, 0}}, 5, 0.5)
	if len(selected) != 2 {
		t.Fatalf("expected both candidates, got %v", selected)
	}
	if selected[0] != 1 {
		t.Fatalf("expected most relevant candidate first, got %v", selected)
	}
	if got := maximalMarginalRelevance([]float32{1}, nil, 3, 0.5); len(got) != 0 {
		t.Fatalf("expected no selection for empty pool, got %v", got)
	}
}

func TestMaximalMarginalRelevanceZeroVectors(t *testing.T) {
	selected := maximalMarginalRelevance([]float32{0, 0}, [][]float32{{0, 0}, {1, 0}}, 2, 0.5)
	if len(selected) != 2 {
		t.Fatalf("expected 2 selections, got %v", selected)
	}
}

func TestNormalizeLambda(t *testing.T) {
	cases := map[float64]float64{
		0:    0,
		0.3:  0.3,
		1:    1,
		-0.1: defaultMMRLambda,
		1.5:  defaultMMRLambda,
	}
	for in, want := range cases {
		if got := normalizeLambda(in); got != want {
			t.Fatalf("normalizeLambda(%v) = %v, want %v", in, got, want)
		}
	}
}
