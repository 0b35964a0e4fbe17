package hashing

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
	"sync/atomic"
)

const DefaultDimension = 384

var tokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

// Embedder is an offline, deterministic bag-of-words embedder: tokens are
// hashed into a fixed number of buckets, weighted by log-scaled term
// frequency and L2-normalized. It needs no corpus preparation.
type Embedder struct {
	dimension int
	stopwords map[string]struct{}
	loaded    atomic.Bool
}

func New(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{
		dimension: dimension,
		stopwords: defaultStopwords(),
	}
}

func (e *Embedder) Load(context.Context) error {
	e.loaded.Store(true)
	return nil
}

func (e *Embedder) Loaded() bool { return e.loaded.Load() }

func (e *Embedder) Dimension() int {
	if !e.Loaded() {
		return 0
	}
	return e.dimension
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, e.vector(text))
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.vector(text), nil
}

func (e *Embedder) vector(text string) []float32 {
	counts := make(map[uint32]float64, 32)
	for _, token := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		if _, stop := e.stopwords[token]; stop {
			continue
		}
		counts[hashToken(token)%uint32(e.dimension)]++
	}

	vec := make([]float32, e.dimension)
	norm := 0.0
	for idx, tf := range counts {
		w := 1 + math.Log(tf)
		vec[idx] = float32(w)
		norm += w * w
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

func hashToken(token string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return h.Sum32()
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as",
		"is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down",
		"over", "under", "so", "such", "into", "about", "between", "through", "during", "before", "after", "out", "off",
		"too", "very", "can", "will", "just", "should", "now", "how", "what", "why", "when", "where", "who", "do", "does",
		"i", "you", "my", "me", "we",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
