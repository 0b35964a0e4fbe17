package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/anvesana/internal/core/domain"
	"github.com/kirillkom/anvesana/internal/core/ports"
)

const (
	defaultEmbedBatchSize = 32
	defaultEmbedWorkers   = 2
)

// CollectionBinding holds the collection the retriever reads from. It is
// replaced only through Rebind, never implicitly.
type CollectionBinding struct {
	mu      sync.RWMutex
	current ports.Collection
}

func NewCollectionBinding() *CollectionBinding {
	return &CollectionBinding{}
}

// Rebind installs next and returns the collection it replaced, if any.
func (b *CollectionBinding) Rebind(next ports.Collection) ports.Collection {
	b.mu.Lock()
	defer b.mu.Unlock()
	previous := b.current
	b.current = next
	return previous
}

func (b *CollectionBinding) Current() (ports.Collection, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.current == nil {
		return nil, domain.WrapError(domain.ErrNotReady, "bound collection", errors.New("no collection is bound"))
	}
	return b.current, nil
}

type IndexUseCase struct {
	embedder  ports.Embedder
	store     ports.VectorStore
	binding   *CollectionBinding
	batchSize int
	workers   int

	// serializes Replace so concurrent rebuilds cannot interleave writes
	writeMu sync.Mutex
}

func NewIndexUseCase(
	embedder ports.Embedder,
	store ports.VectorStore,
	binding *CollectionBinding,
	batchSize int,
	workers int,
) *IndexUseCase {
	if batchSize <= 0 {
		batchSize = defaultEmbedBatchSize
	}
	if workers <= 0 {
		workers = defaultEmbedWorkers
	}
	return &IndexUseCase{
		embedder:  embedder,
		store:     store,
		binding:   binding,
		batchSize: batchSize,
		workers:   workers,
	}
}

// Rebuild embeds passages, replaces the named collection with them and binds
// the retriever to the result. The embedder must already be loaded; nothing
// is written otherwise.
func (uc *IndexUseCase) Rebuild(ctx context.Context, collection string, passages []domain.Passage) (ports.Collection, error) {
	if strings.TrimSpace(collection) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "rebuild collection", errors.New("collection name is empty"))
	}
	if !uc.embedder.Loaded() {
		return nil, domain.WrapError(domain.ErrNotReady, "rebuild collection", errors.New("embedder is not loaded"))
	}

	start := time.Now()
	dimension := uc.embedder.Dimension()
	vectors, err := uc.embedAll(ctx, passages)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.VectorEntry, len(passages))
	for i, passage := range passages {
		if len(vectors[i]) != dimension {
			return nil, domain.WrapError(
				domain.ErrDimensionMismatch,
				"rebuild collection",
				fmt.Errorf("passage %d has dimension %d, embedder reports %d", i, len(vectors[i]), dimension),
			)
		}
		entries[i] = domain.VectorEntry{Passage: passage, Vector: vectors[i]}
	}

	uc.writeMu.Lock()
	defer uc.writeMu.Unlock()

	if err := uc.store.Replace(ctx, collection, dimension, entries); err != nil {
		return nil, fmt.Errorf("replace collection %q: %w", collection, err)
	}
	bound, err := uc.store.Open(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("open rebuilt collection %q: %w", collection, err)
	}
	uc.rebind(bound)

	slog.Info("collection_rebuilt",
		"collection", collection,
		"passages", len(entries),
		"dimension", dimension,
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)
	return bound, nil
}

// Open binds the retriever to an existing collection and returns the name of
// the collection it replaced, or "" when nothing was bound.
func (uc *IndexUseCase) Open(ctx context.Context, collection string) (string, error) {
	if strings.TrimSpace(collection) == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "open collection", errors.New("collection name is empty"))
	}
	if !uc.embedder.Loaded() {
		return "", domain.WrapError(domain.ErrNotReady, "open collection", errors.New("embedder is not loaded"))
	}

	opened, err := uc.store.Open(ctx, collection)
	if err != nil {
		return "", fmt.Errorf("open collection %q: %w", collection, err)
	}
	if opened.Dimension() != uc.embedder.Dimension() {
		return "", domain.WrapError(
			domain.ErrDimensionMismatch,
			"open collection",
			fmt.Errorf("collection %q has dimension %d, embedder reports %d", collection, opened.Dimension(), uc.embedder.Dimension()),
		)
	}
	return uc.rebind(opened), nil
}

func (uc *IndexUseCase) rebind(next ports.Collection) string {
	previous := uc.binding.Rebind(next)
	if previous == nil {
		slog.Info("collection_bound", "collection", next.Name())
		return ""
	}
	slog.Warn("collection_binding_overwritten", "previous", previous.Name(), "collection", next.Name())
	return previous.Name()
}

func (uc *IndexUseCase) embedAll(ctx context.Context, passages []domain.Passage) ([][]float32, error) {
	vectors := make([][]float32, len(passages))
	if len(passages) == 0 {
		return vectors, nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(uc.workers)
	for start := 0; start < len(passages); start += uc.batchSize {
		end := min(start+uc.batchSize, len(passages))
		group.Go(func() error {
			texts := make([]string, 0, end-start)
			for _, passage := range passages[start:end] {
				texts = append(texts, passage.Text)
			}
			batch, err := uc.embedder.Embed(groupCtx, texts)
			if err != nil {
				return fmt.Errorf("embed passages %d-%d: %w", start, end, err)
			}
			if len(batch) != len(texts) {
				return domain.WrapError(
					domain.ErrInvalidInput,
					"embed passages",
					fmt.Errorf("vectors/passages mismatch: %d/%d", len(batch), len(texts)),
				)
			}
			copy(vectors[start:end], batch)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}
