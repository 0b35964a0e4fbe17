package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestHTTPMiddlewareNormalizesRunPath(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	handler := m.Middleware("api", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/ingest/runs/abc-123", nil))

	out := scrape(t, m.Handler())
	if !strings.Contains(out, `anvesana_http_requests_total{method="GET",path="/v1/ingest/runs/{run_id}",service="api",status="404"} 1`) {
		t.Fatalf("expected normalized request counter, got:\n%s", out)
	}
}

func TestRecordRetrievalCountsEmptyResults(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	m.RecordRetrieval("api", "retrieve", 0, 10*time.Millisecond)
	m.RecordRetrieval("api", "retrieve", 3, 10*time.Millisecond)

	out := scrape(t, m.Handler())
	if !strings.Contains(out, `anvesana_retrieval_requests_total{endpoint="retrieve",service="api"} 2`) {
		t.Fatalf("expected two retrievals, got:\n%s", out)
	}
	if !strings.Contains(out, `anvesana_retrieval_no_result_total{endpoint="retrieve",service="api"} 1`) {
		t.Fatalf("expected one empty retrieval, got:\n%s", out)
	}
}

func TestWorkerMetricsRunLifecycle(t *testing.T) {
	m := NewWorkerMetrics("worker")
	m.StartRun()
	m.FinishRun("worker", 2*time.Second, errors.New("boom"))
	m.RecordIndexed("worker", "wiki", 42, 1)

	out := scrape(t, m.Handler())
	for _, want := range []string{
		`anvesana_worker_ingest_runs_total{service="worker",status="error"} 1`,
		`anvesana_worker_ingest_runs_in_flight{service="worker"} 0`,
		`anvesana_worker_passages_indexed_total{collection="wiki",service="worker"} 42`,
		`anvesana_worker_document_fetch_failures_total{service="worker"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}
