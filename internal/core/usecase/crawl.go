package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/anvesana/internal/core/domain"
	"github.com/kirillkom/anvesana/internal/core/ports"
)

const defaultCrawlWorkers = 4

type CrawlUseCase struct {
	source  ports.DocumentSource
	workers int
}

func NewCrawlUseCase(source ports.DocumentSource, workers int) *CrawlUseCase {
	if workers <= 0 {
		workers = defaultCrawlWorkers
	}
	return &CrawlUseCase{
		source:  source,
		workers: workers,
	}
}

// Crawl lists every document identifier and fetches the documents on a
// bounded worker pool. A failed fetch is logged and skipped; listing failures,
// configuration errors and cancellation abort the crawl. Documents keep the
// order of their identifiers.
func (uc *CrawlUseCase) Crawl(ctx context.Context) (*domain.CrawlReport, error) {
	start := time.Now()
	ids, err := uc.source.ListDocumentIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list document ids: %w", err)
	}
	slog.Info("crawl_fetch_started", "documents", len(ids), "workers", uc.workers)

	docs := make([]domain.Document, len(ids))
	kept := make([]bool, len(ids))
	var failed, empty atomic.Int64

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(uc.workers)
	for i, id := range ids {
		if groupCtx.Err() != nil {
			break
		}
		group.Go(func() error {
			doc, err := uc.source.FetchDocument(groupCtx, id)
			if err != nil {
				if ctxErr := groupCtx.Err(); ctxErr != nil {
					return ctxErr
				}
				if domain.IsKind(err, domain.ErrConfiguration) {
					return err
				}
				failed.Add(1)
				slog.Warn("document_fetch_failed", "id", id, "error", err)
				return nil
			}
			if doc.IsEmpty() {
				empty.Add(1)
				return nil
			}
			docs[i] = doc
			kept[i] = true
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("fetch documents: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetch documents: %w", err)
	}

	report := &domain.CrawlReport{
		Documents: make([]domain.Document, 0, len(ids)),
		Listed:    len(ids),
		Empty:     int(empty.Load()),
		Failed:    int(failed.Load()),
	}
	for i := range docs {
		if kept[i] {
			report.Documents = append(report.Documents, docs[i])
		}
	}
	report.Fetched = len(report.Documents)

	slog.Info("crawl_finished",
		"listed", report.Listed,
		"fetched", report.Fetched,
		"empty", report.Empty,
		"failed", report.Failed,
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)
	return report, nil
}
