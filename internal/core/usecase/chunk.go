package usecase

import (
	"log/slog"
	"strings"

	"github.com/kirillkom/anvesana/internal/core/domain"
	"github.com/kirillkom/anvesana/internal/core/ports"
)

type ChunkUseCase struct {
	chunker ports.Chunker
}

func NewChunkUseCase(chunker ports.Chunker) *ChunkUseCase {
	return &ChunkUseCase{chunker: chunker}
}

// Chunk splits every non-empty document into passages that carry the
// document's title and link. An empty corpus yields an empty slice.
func (uc *ChunkUseCase) Chunk(docs []domain.Document) []domain.Passage {
	if len(docs) == 0 {
		slog.Warn("no_data_to_chunk")
		return []domain.Passage{}
	}

	passages := make([]domain.Passage, 0, len(docs))
	for _, doc := range docs {
		if doc.IsEmpty() {
			continue
		}
		for _, text := range uc.chunker.Split(doc.Content) {
			if strings.TrimSpace(text) == "" {
				continue
			}
			passages = append(passages, domain.NewPassage(doc, text))
		}
	}

	slog.Info("documents_chunked", "documents", len(docs), "passages", len(passages))
	return passages
}
