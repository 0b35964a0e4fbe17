package domain

import "time"

type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// IngestionRun records one snapshot-or-crawl, chunk and rebuild cycle.
type IngestionRun struct {
	ID         string    `json:"id"`
	Collection string    `json:"collection"`
	Recrawl    bool      `json:"recrawl"`
	Status     RunStatus `json:"status"`
	Documents  int       `json:"documents"`
	Passages   int       `json:"passages"`
	Failed     int       `json:"failed_documents"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type IngestRequest struct {
	RunID       string    `json:"run_id"`
	Recrawl     bool      `json:"recrawl"`
	RequestedAt time.Time `json:"requested_at"`
}

type IngestReport struct {
	Collection      string `json:"collection"`
	FromSnapshot    bool   `json:"from_snapshot"`
	Documents       int    `json:"documents"`
	Passages        int    `json:"passages"`
	FailedDocuments int    `json:"failed_documents"`
}
