package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/anvesana/internal/core/domain"
	"github.com/kirillkom/anvesana/internal/core/ports"
)

type corpusCrawler interface {
	Crawl(ctx context.Context) (*domain.CrawlReport, error)
}

type passageIndexer interface {
	Rebuild(ctx context.Context, collection string, passages []domain.Passage) (ports.Collection, error)
}

// IngestUseCase runs the offline pipeline: load the snapshot or crawl the
// source, chunk the corpus and rebuild the collection.
type IngestUseCase struct {
	snapshot   ports.SnapshotStore
	crawler    corpusCrawler
	chunker    *ChunkUseCase
	indexer    passageIndexer
	collection string
}

func NewIngestUseCase(
	snapshot ports.SnapshotStore,
	crawler corpusCrawler,
	chunker *ChunkUseCase,
	indexer passageIndexer,
	collection string,
) *IngestUseCase {
	return &IngestUseCase{
		snapshot:   snapshot,
		crawler:    crawler,
		chunker:    chunker,
		indexer:    indexer,
		collection: collection,
	}
}

func (uc *IngestUseCase) Run(ctx context.Context, recrawl bool) (*domain.IngestReport, error) {
	start := time.Now()
	docs, fromSnapshot, failed, err := uc.loadCorpus(ctx, recrawl)
	if err != nil {
		return nil, err
	}

	passages := uc.chunker.Chunk(docs)
	if _, err := uc.indexer.Rebuild(ctx, uc.collection, passages); err != nil {
		return nil, fmt.Errorf("rebuild collection: %w", err)
	}

	report := &domain.IngestReport{
		Collection:      uc.collection,
		FromSnapshot:    fromSnapshot,
		Documents:       len(docs),
		Passages:        len(passages),
		FailedDocuments: failed,
	}
	slog.Info("ingestion_finished",
		"collection", report.Collection,
		"from_snapshot", report.FromSnapshot,
		"documents", report.Documents,
		"passages", report.Passages,
		"failed_documents", report.FailedDocuments,
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)
	return report, nil
}

// Crawl fetches the corpus and overwrites the snapshot without indexing.
func (uc *IngestUseCase) Crawl(ctx context.Context) (*domain.CrawlReport, error) {
	report, err := uc.crawler.Crawl(ctx)
	if err != nil {
		return nil, fmt.Errorf("crawl corpus: %w", err)
	}
	if err := uc.snapshot.Save(ctx, report.Documents); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}
	return report, nil
}

func (uc *IngestUseCase) loadCorpus(ctx context.Context, recrawl bool) ([]domain.Document, bool, int, error) {
	if !recrawl {
		docs, err := uc.snapshot.Load(ctx)
		switch {
		case err == nil && len(docs) > 0:
			slog.Info("snapshot_loaded", "documents", len(docs))
			return docs, true, 0, nil
		case err == nil:
			slog.Warn("snapshot_empty_recrawling")
		case domain.IsKind(err, domain.ErrSnapshotNotFound):
			slog.Info("snapshot_missing_crawling")
		default:
			return nil, false, 0, fmt.Errorf("load snapshot: %w", err)
		}
	}

	report, err := uc.Crawl(ctx)
	if err != nil {
		return nil, false, 0, err
	}
	return report.Documents, false, report.Failed, nil
}
