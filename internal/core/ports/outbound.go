package ports

import (
	"context"
	"io"

	"github.com/kirillkom/anvesana/internal/core/domain"
)

// DocumentSource is the paginated remote corpus.
type DocumentSource interface {
	ListDocumentIDs(ctx context.Context) ([]string, error)
	FetchDocument(ctx context.Context, id string) (domain.Document, error)
}

// ObjectStorage stores raw artifacts such as the corpus snapshot.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// SnapshotStore persists the raw crawled corpus so ingestion can resume without re-crawling.
type SnapshotStore interface {
	Save(ctx context.Context, docs []domain.Document) error
	Load(ctx context.Context) ([]domain.Document, error)
}

// Chunker splits text into overlapping retrieval-sized chunks.
type Chunker interface {
	Split(text string) []string
}

// Embedder is the embedding oracle. It must be loaded before use; Dimension
// is zero until then.
type Embedder interface {
	Load(ctx context.Context) error
	Loaded() bool
	Dimension() int
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore persists named collections at a fixed storage location.
type VectorStore interface {
	Replace(ctx context.Context, collection string, dimension int, entries []domain.VectorEntry) error
	Open(ctx context.Context, collection string) (Collection, error)
}

// Collection is a bound, read-only view of a persisted collection.
type Collection interface {
	Name() string
	Dimension() int
	Count(ctx context.Context) (int, error)
	Search(ctx context.Context, queryVector []float32, limit int) ([]domain.ScoredEntry, error)
}

// AnswerGenerator synthesizes a natural-language answer from retrieved passages.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, passages []domain.RetrievedPassage) (string, error)
}

// MessageQueue publishes/consumes ingestion requests.
type MessageQueue interface {
	PublishIngestRequested(ctx context.Context, req domain.IngestRequest) error
	SubscribeIngestRequested(ctx context.Context, handler func(context.Context, domain.IngestRequest) error) error
}

// RunRepository persists ingestion run state.
type RunRepository interface {
	Create(ctx context.Context, run *domain.IngestionRun) error
	GetByID(ctx context.Context, id string) (*domain.IngestionRun, error)
	UpdateStatus(ctx context.Context, id string, status domain.RunStatus, errMessage string) error
	SaveReport(ctx context.Context, id string, report domain.IngestReport) error
}
