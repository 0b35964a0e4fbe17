package ports

import (
	"context"

	"github.com/kirillkom/anvesana/internal/core/domain"
)

// PassageRetriever is the inbound contract for nearest-neighbour queries.
type PassageRetriever interface {
	Retrieve(ctx context.Context, query string, k, fetchK int) ([]domain.RetrievedPassage, error)
	Similar(ctx context.Context, query string, k int) ([]domain.RetrievedPassage, error)
}

// QueryService is the inbound contract for retrieval-augmented answers.
type QueryService interface {
	Answer(ctx context.Context, question string, k, fetchK int) (*domain.Answer, error)
}

// CollectionBinder attaches the process to a persisted collection.
type CollectionBinder interface {
	Open(ctx context.Context, collection string) (previous string, err error)
}

// CorpusIngestor runs a full snapshot-or-crawl, chunk and rebuild cycle.
type CorpusIngestor interface {
	Run(ctx context.Context, recrawl bool) (*domain.IngestReport, error)
}

// IngestScheduler queues ingestion runs and reports their state.
type IngestScheduler interface {
	Schedule(ctx context.Context, recrawl bool) (*domain.IngestionRun, error)
	GetRun(ctx context.Context, id string) (*domain.IngestionRun, error)
}
