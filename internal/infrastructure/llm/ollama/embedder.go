package ollama

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kirillkom/anvesana/internal/core/domain"
)

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embedder calls the Ollama embed endpoint. Load probes the model once to
// learn its dimension; Embed refuses to run before that.
type Embedder struct {
	client            *Client
	expectedDimension int

	mu        sync.RWMutex
	dimension int
}

func NewEmbedder(client *Client, expectedDimension int) *Embedder {
	return &Embedder{client: client, expectedDimension: expectedDimension}
}

func (e *Embedder) Load(ctx context.Context) error {
	if e.Loaded() {
		return nil
	}
	vectors, err := e.embed(ctx, []string{"dimension probe"})
	if err != nil {
		return fmt.Errorf("load embedding model %q: %w", e.client.embedModel, err)
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return domain.WrapError(domain.ErrConfiguration, "load embedding model", errors.New("model returned no embedding"))
	}
	dim := len(vectors[0])
	if e.expectedDimension > 0 && dim != e.expectedDimension {
		return domain.WrapError(
			domain.ErrDimensionMismatch,
			"load embedding model",
			fmt.Errorf("model %q produces dimension %d, configured %d", e.client.embedModel, dim, e.expectedDimension),
		)
	}

	e.mu.Lock()
	e.dimension = dim
	e.mu.Unlock()
	slog.Info("embedder_loaded", "model", e.client.embedModel, "dimension", dim)
	return nil
}

func (e *Embedder) Loaded() bool {
	return e.Dimension() > 0
}

func (e *Embedder) Dimension() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dimension
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if !e.Loaded() {
		return nil, domain.WrapError(domain.ErrNotReady, "embed", errors.New("embedding model is not loaded"))
	}
	if len(texts) == 0 {
		return nil, nil
	}
	return e.embed(ctx, texts)
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *Embedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	var resp embedResponse
	req := embedRequest{Model: e.client.embedModel, Input: texts}
	if err := e.client.postJSON(ctx, "/api/embed", req, &resp, "embed"); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: got %d vectors for %d inputs", len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}
