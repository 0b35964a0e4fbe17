package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/anvesana/internal/core/domain"
	"github.com/kirillkom/anvesana/internal/core/ports"
)

const (
	DefaultRetrieveK      = 3
	DefaultRetrieveFetchK = 10
	DefaultSimilarK       = 5
)

// RetrieveUseCase answers nearest-neighbour queries against the bound
// collection, diversifying results with maximal marginal relevance.
type RetrieveUseCase struct {
	embedder      ports.Embedder
	binding       *CollectionBinding
	lambda        float64
	defaultK      int
	defaultFetchK int
}

func NewRetrieveUseCase(embedder ports.Embedder, binding *CollectionBinding, k, fetchK int, lambda float64) *RetrieveUseCase {
	if k <= 0 {
		k = DefaultRetrieveK
	}
	if fetchK < k {
		fetchK = max(k, DefaultRetrieveFetchK)
	}
	return &RetrieveUseCase{
		embedder:      embedder,
		binding:       binding,
		lambda:        normalizeLambda(lambda),
		defaultK:      k,
		defaultFetchK: fetchK,
	}
}

// Retrieve returns up to k passages chosen by MMR from the fetchK nearest
// neighbours of query. Non-positive k and fetchK fall back to the configured
// defaults and fetchK is raised to at least k.
func (uc *RetrieveUseCase) Retrieve(ctx context.Context, query string, k, fetchK int) ([]domain.RetrievedPassage, error) {
	if k <= 0 {
		k = uc.defaultK
	}
	if fetchK <= 0 {
		fetchK = uc.defaultFetchK
	}
	if fetchK < k {
		fetchK = k
	}

	queryVector, candidates, err := uc.nearest(ctx, query, fetchK)
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(candidates))
	for i, candidate := range candidates {
		vectors[i] = candidate.Vector
	}
	selected := maximalMarginalRelevance(queryVector, vectors, k, uc.lambda)

	out := make([]domain.RetrievedPassage, 0, len(selected))
	for _, idx := range selected {
		out = append(out, toRetrieved(candidates[idx], domain.CosineSimilarity(queryVector, vectors[idx])))
	}
	return out, nil
}

// Similar returns the k nearest passages to query without diversification.
func (uc *RetrieveUseCase) Similar(ctx context.Context, query string, k int) ([]domain.RetrievedPassage, error) {
	if k <= 0 {
		k = DefaultSimilarK
	}
	_, candidates, err := uc.nearest(ctx, query, k)
	if err != nil {
		return nil, err
	}
	out := make([]domain.RetrievedPassage, 0, len(candidates))
	for _, candidate := range candidates {
		out = append(out, toRetrieved(candidate, candidate.Score))
	}
	return out, nil
}

func (uc *RetrieveUseCase) nearest(ctx context.Context, query string, limit int) ([]float32, []domain.ScoredEntry, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil, domain.WrapError(domain.ErrInvalidInput, "retrieve passages", errors.New("query is empty"))
	}
	if !uc.embedder.Loaded() {
		return nil, nil, domain.WrapError(domain.ErrNotReady, "retrieve passages", errors.New("embedder is not loaded"))
	}
	collection, err := uc.binding.Current()
	if err != nil {
		return nil, nil, err
	}

	queryVector, err := uc.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("embed query: %w", err)
	}
	if len(queryVector) != collection.Dimension() {
		return nil, nil, domain.WrapError(
			domain.ErrDimensionMismatch,
			"retrieve passages",
			fmt.Errorf("query has dimension %d, collection %q has %d", len(queryVector), collection.Name(), collection.Dimension()),
		)
	}

	// The limit comes from callers; never ask the store for more rows than it holds.
	total, err := collection.Count(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("count collection %q: %w", collection.Name(), err)
	}
	if total == 0 {
		return queryVector, []domain.ScoredEntry{}, nil
	}
	candidates, err := collection.Search(ctx, queryVector, min(limit, total))
	if err != nil {
		return nil, nil, fmt.Errorf("search collection %q: %w", collection.Name(), err)
	}
	return queryVector, candidates, nil
}

func toRetrieved(entry domain.ScoredEntry, score float64) domain.RetrievedPassage {
	return domain.RetrievedPassage{
		Text:  entry.Passage.Text,
		Title: entry.Passage.Metadata.Title,
		Link:  entry.Passage.Metadata.Link,
		Score: score,
	}
}
