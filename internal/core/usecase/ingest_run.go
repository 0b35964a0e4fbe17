package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/anvesana/internal/core/domain"
	"github.com/kirillkom/anvesana/internal/core/ports"
)

// ScheduleIngestUseCase records an ingestion run and hands it to the worker
// through the message queue.
type ScheduleIngestUseCase struct {
	runs       ports.RunRepository
	queue      ports.MessageQueue
	collection string
}

func NewScheduleIngestUseCase(runs ports.RunRepository, queue ports.MessageQueue, collection string) *ScheduleIngestUseCase {
	return &ScheduleIngestUseCase{
		runs:       runs,
		queue:      queue,
		collection: collection,
	}
}

func (uc *ScheduleIngestUseCase) Schedule(ctx context.Context, recrawl bool) (*domain.IngestionRun, error) {
	now := time.Now().UTC()
	run := &domain.IngestionRun{
		ID:         uuid.NewString(),
		Collection: uc.collection,
		Recrawl:    recrawl,
		Status:     domain.RunStatusQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := uc.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("create ingestion run: %w", err)
	}
	if err := uc.queue.PublishIngestRequested(ctx, domain.IngestRequest{RunID: run.ID, Recrawl: recrawl, RequestedAt: now}); err != nil {
		return nil, fmt.Errorf("publish ingestion request: %w", err)
	}
	return run, nil
}

func (uc *ScheduleIngestUseCase) GetRun(ctx context.Context, id string) (*domain.IngestionRun, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get ingestion run", errors.New("run id is empty"))
	}
	return uc.runs.GetByID(ctx, id)
}

// ProcessIngestUseCase executes queued runs on the worker and records their outcome.
type ProcessIngestUseCase struct {
	runs     ports.RunRepository
	ingestor ports.CorpusIngestor
}

func NewProcessIngestUseCase(runs ports.RunRepository, ingestor ports.CorpusIngestor) *ProcessIngestUseCase {
	return &ProcessIngestUseCase{
		runs:     runs,
		ingestor: ingestor,
	}
}

// ProcessRun executes one queued run. The report is returned only when the
// run succeeded and was recorded.
func (uc *ProcessIngestUseCase) ProcessRun(ctx context.Context, req domain.IngestRequest) (*domain.IngestReport, error) {
	if err := uc.markStatus(ctx, req.RunID, domain.RunStatusRunning, ""); err != nil {
		return nil, fmt.Errorf("set status=running: %w", err)
	}

	report, err := uc.ingestor.Run(ctx, req.Recrawl)
	if err != nil {
		if failErr := uc.markFailed(ctx, req.RunID, err); failErr != nil {
			return nil, fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return nil, err
	}

	if err := uc.runs.SaveReport(ctx, req.RunID, *report); err != nil {
		if failErr := uc.markFailed(ctx, req.RunID, err); failErr != nil {
			return nil, fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return nil, fmt.Errorf("save ingestion report: %w", err)
	}

	if err := uc.markStatus(ctx, req.RunID, domain.RunStatusSucceeded, ""); err != nil {
		return nil, fmt.Errorf("set status=succeeded: %w", err)
	}
	return report, nil
}

func (uc *ProcessIngestUseCase) markStatus(ctx context.Context, id string, status domain.RunStatus, errMessage string) error {
	return uc.runs.UpdateStatus(ctx, id, status, errMessage)
}

func (uc *ProcessIngestUseCase) markFailed(ctx context.Context, id string, runErr error) error {
	if runErr == nil {
		return nil
	}
	return uc.markStatus(ctx, id, domain.RunStatusFailed, runErr.Error())
}
