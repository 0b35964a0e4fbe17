package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/kirillkom/anvesana/internal/core/domain"
	"github.com/kirillkom/anvesana/internal/core/ports"
)

type embedderFake struct {
	dimension int
	loaded    bool
	vectors   map[string][]float32
	err       error

	mu    sync.Mutex
	calls int
}

func (f *embedderFake) Load(context.Context) error {
	f.loaded = true
	return nil
}

func (f *embedderFake) Loaded() bool   { return f.loaded }
func (f *embedderFake) Dimension() int { return f.dimension }

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		out = append(out, f.vector(text))
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vector(text), nil
}

func (f *embedderFake) vector(text string) []float32 {
	if v, ok := f.vectors[text]; ok {
		return v
	}
	v := make([]float32, f.dimension)
	if f.dimension > 0 {
		v[len(text)%f.dimension] = 1
	}
	return v
}

type memoryCollection struct {
	name      string
	dimension int
	entries   []domain.VectorEntry
}

func (c *memoryCollection) Name() string   { return c.name }
func (c *memoryCollection) Dimension() int { return c.dimension }

func (c *memoryCollection) Count(context.Context) (int, error) { return len(c.entries), nil }

func (c *memoryCollection) Search(_ context.Context, query []float32, limit int) ([]domain.ScoredEntry, error) {
	out := make([]domain.ScoredEntry, 0, len(c.entries))
	for _, entry := range c.entries {
		out = append(out, domain.ScoredEntry{
			Passage: entry.Passage,
			Vector:  entry.Vector,
			Score:   domain.CosineSimilarity(query, entry.Vector),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

type memoryStore struct {
	mu           sync.Mutex
	collections  map[string]*memoryCollection
	replaceErr   error
	replaceCalls int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{collections: map[string]*memoryCollection{}}
}

func (s *memoryStore) Replace(_ context.Context, name string, dimension int, entries []domain.VectorEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceCalls++
	if s.replaceErr != nil {
		return s.replaceErr
	}
	s.collections[name] = &memoryCollection{
		name:      name,
		dimension: dimension,
		entries:   append([]domain.VectorEntry(nil), entries...),
	}
	return nil
}

func (s *memoryStore) Open(_ context.Context, name string) (ports.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, domain.WrapError(domain.ErrCollectionNotFound, "open collection", errors.New(name))
	}
	return c, nil
}
