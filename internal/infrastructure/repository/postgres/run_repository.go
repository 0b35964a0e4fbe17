package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/anvesana/internal/core/domain"
)

// RunRepository records ingestion runs so the api can report progress of
// work executed by the worker.
type RunRepository struct {
	db *sql.DB
}

func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *RunRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101801)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS ingestion_runs (
	id TEXT PRIMARY KEY,
	collection TEXT NOT NULL,
	recrawl BOOLEAN NOT NULL DEFAULT FALSE,
	status TEXT NOT NULL,
	documents INTEGER NOT NULL DEFAULT 0,
	passages INTEGER NOT NULL DEFAULT 0,
	failed_documents INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ingestion_runs_created_at ON ingestion_runs(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *RunRepository) Create(ctx context.Context, run *domain.IngestionRun) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO ingestion_runs (
	id, collection, recrawl, status, documents, passages, failed_documents, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
		run.ID, run.Collection, run.Recrawl, string(run.Status), run.Documents, run.Passages, run.Failed,
		run.Error, run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ingestion run: %w", err)
	}
	return nil
}

func (r *RunRepository) GetByID(ctx context.Context, id string) (*domain.IngestionRun, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, collection, recrawl, status, documents, passages, failed_documents, error_message, created_at, updated_at
FROM ingestion_runs
WHERE id = $1
`, id)

	var run domain.IngestionRun
	var status string
	err := row.Scan(
		&run.ID, &run.Collection, &run.Recrawl, &status, &run.Documents, &run.Passages, &run.Failed,
		&run.Error, &run.CreatedAt, &run.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrRunNotFound, "get ingestion run", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan ingestion run: %w", err)
	}
	run.Status = domain.RunStatus(status)
	return &run, nil
}

func (r *RunRepository) UpdateStatus(ctx context.Context, id string, status domain.RunStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE ingestion_runs
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update ingestion run status: %w", err)
	}
	return ensureAffected(res, "update ingestion run status", id)
}

func (r *RunRepository) SaveReport(ctx context.Context, id string, report domain.IngestReport) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE ingestion_runs
SET documents = $2, passages = $3, failed_documents = $4, updated_at = $5
WHERE id = $1
`, id, report.Documents, report.Passages, report.FailedDocuments, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save ingestion report: %w", err)
	}
	return ensureAffected(res, "save ingestion report", id)
}

func ensureAffected(res sql.Result, operation, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrRunNotFound, operation, fmt.Errorf("id=%s", id))
	}
	return nil
}
