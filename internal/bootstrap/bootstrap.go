package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/kirillkom/anvesana/internal/config"
	"github.com/kirillkom/anvesana/internal/core/domain"
	"github.com/kirillkom/anvesana/internal/core/ports"
	"github.com/kirillkom/anvesana/internal/core/usecase"
	"github.com/kirillkom/anvesana/internal/infrastructure/chunking"
	"github.com/kirillkom/anvesana/internal/infrastructure/embedding/hashing"
	"github.com/kirillkom/anvesana/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/anvesana/internal/infrastructure/queue/nats"
	"github.com/kirillkom/anvesana/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/anvesana/internal/infrastructure/resilience"
	"github.com/kirillkom/anvesana/internal/infrastructure/snapshot"
	"github.com/kirillkom/anvesana/internal/infrastructure/source/mediawiki"
	"github.com/kirillkom/anvesana/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/anvesana/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/anvesana/internal/infrastructure/vector/sqlite"
)

type App struct {
	Config config.Config

	Embedder ports.Embedder
	Binding  *usecase.CollectionBinding

	IndexUC    *usecase.IndexUseCase
	RetrieveUC *usecase.RetrieveUseCase
	QueryUC    *usecase.QueryUseCase
	IngestUC   *usecase.IngestUseCase

	closers []func()
}

// RunLedger is the asynchronous ingestion path: runs recorded in Postgres
// and handed to the worker over NATS.
type RunLedger struct {
	Queue     *nats.Queue
	Scheduler *usecase.ScheduleIngestUseCase
	Processor *usecase.ProcessIngestUseCase
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	executor := resilience.NewExecutor(resilienceConfig(cfg))
	app := &App{Config: cfg}

	embedder, err := newEmbedder(cfg, executor)
	if err != nil {
		return nil, err
	}
	store, err := app.newVectorStore(ctx, cfg, executor)
	if err != nil {
		app.Close()
		return nil, err
	}

	storage, err := localfs.New(filepath.Dir(cfg.SnapshotPath))
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init snapshot storage: %w", err)
	}
	snapshots := snapshot.New(storage, filepath.Base(cfg.SnapshotPath))

	binding := usecase.NewCollectionBinding()
	indexUC := usecase.NewIndexUseCase(embedder, store, binding, cfg.EmbedBatchSize, cfg.EmbedWorkers)
	retrieveUC := usecase.NewRetrieveUseCase(embedder, binding, cfg.RetrievalK, cfg.RetrievalFetchK, cfg.RetrievalMMRLambda)
	crawlUC := usecase.NewCrawlUseCase(newDocumentSource(cfg, executor), cfg.CrawlWorkers)
	chunkUC := usecase.NewChunkUseCase(chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap))

	generator := ollama.NewGenerator(newOllamaClient(cfg, executor))

	app.Embedder = embedder
	app.Binding = binding
	app.IndexUC = indexUC
	app.RetrieveUC = retrieveUC
	app.QueryUC = usecase.NewQueryUseCase(retrieveUC, generator)
	app.IngestUC = usecase.NewIngestUseCase(snapshots, crawlUC, chunkUC, indexUC, cfg.CollectionName)
	return app, nil
}

func newOllamaClient(cfg config.Config, executor *resilience.Executor) *ollama.Client {
	return ollama.New(cfg.OllamaURL, ollama.Options{
		GenModel:   cfg.OllamaGenModel,
		EmbedModel: cfg.OllamaEmbedModel,
		Executor:   executor,
	})
}

func resilienceConfig(cfg config.Config) resilience.Config {
	out := resilience.DefaultConfig()
	out.Retry.MaxAttempts = cfg.ResilienceMaxAttempts
	out.Retry.AttemptTimeout = time.Duration(cfg.ResilienceAttemptTimeoutSec) * time.Second
	out.Breaker.Enabled = cfg.ResilienceBreakerEnabled
	return out
}

// LoadIndex loads the embedder and binds the configured collection when it
// already exists. A missing collection leaves the process unbound until the
// next rebuild or explicit open.
func (a *App) LoadIndex(ctx context.Context) error {
	if err := a.Embedder.Load(ctx); err != nil {
		return fmt.Errorf("load embedder: %w", err)
	}
	if _, err := a.IndexUC.Open(ctx, a.Config.CollectionName); err != nil {
		if domain.IsKind(err, domain.ErrCollectionNotFound) {
			slog.Warn("collection_not_found_unbound", "collection", a.Config.CollectionName)
			return nil
		}
		return err
	}
	return nil
}

// OpenRunLedger connects Postgres and NATS. The returned ledger shares the
// app's lifetime.
func (a *App) OpenRunLedger(ctx context.Context) (*RunLedger, error) {
	db, err := postgres.OpenDB(a.Config.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	runs := postgres.NewRunRepository(db)
	if err := runs.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	queue, err := nats.New(a.Config.NATSURL, a.Config.NATSSubject, nats.Options{
		Executor: resilience.NewExecutor(resilienceConfig(a.Config)),
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	a.closers = append(a.closers, func() {
		queue.Close()
		_ = db.Close()
	})

	return &RunLedger{
		Queue:     queue,
		Scheduler: usecase.NewScheduleIngestUseCase(runs, queue, a.Config.CollectionName),
		Processor: usecase.NewProcessIngestUseCase(runs, a.IngestUC),
	}, nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func newEmbedder(cfg config.Config, executor *resilience.Executor) (ports.Embedder, error) {
	switch cfg.Embedder {
	case "hashing":
		return hashing.New(cfg.EmbedDimension), nil
	case "ollama":
		client := newOllamaClient(cfg, executor)
		return ollama.NewEmbedder(client, cfg.EmbedDimension), nil
	default:
		return nil, domain.WrapError(domain.ErrConfiguration, "select embedder", fmt.Errorf("unknown embedder %q", cfg.Embedder))
	}
}

func (a *App) newVectorStore(ctx context.Context, cfg config.Config, executor *resilience.Executor) (ports.VectorStore, error) {
	switch cfg.VectorStore {
	case "sqlite":
		store, err := sqlite.Open(ctx, cfg.StorageDir)
		if err != nil {
			return nil, fmt.Errorf("open sqlite vector store: %w", err)
		}
		a.closers = append(a.closers, func() { _ = store.Close() })
		return store, nil
	case "qdrant":
		client, err := qdrant.New(cfg.QdrantURL, qdrant.Options{Executor: executor})
		if err != nil {
			return nil, fmt.Errorf("init qdrant client: %w", err)
		}
		return client, nil
	default:
		return nil, domain.WrapError(domain.ErrConfiguration, "select vector store", fmt.Errorf("unknown vector store %q", cfg.VectorStore))
	}
}

// newDocumentSource defers a source configuration error to the first crawl
// so query-only processes start without a source URL.
func newDocumentSource(cfg config.Config, executor *resilience.Executor) ports.DocumentSource {
	client, err := mediawiki.New(cfg.SourceAPIURL, mediawiki.Options{
		PageLimit:      cfg.SourcePageLimit,
		ExtractFormat:  cfg.SourceExtractFormat,
		RequestTimeout: time.Duration(cfg.SourceRequestTimeoutSecs) * time.Second,
		RateLimit:      cfg.SourceRateLimitRPS,
		RateBurst:      cfg.SourceRateLimitBurst,
		Executor:       executor,
	})
	if err != nil {
		return unconfiguredSource{err: err}
	}
	return client
}

type unconfiguredSource struct {
	err error
}

func (s unconfiguredSource) ListDocumentIDs(context.Context) ([]string, error) {
	return nil, s.err
}

func (s unconfiguredSource) FetchDocument(context.Context, string) (domain.Document, error) {
	return domain.Document{}, s.err
}
