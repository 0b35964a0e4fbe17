package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WorkerMetrics covers the ingest worker. Run counters are split by
// outcome so failed rebuilds stand out from slow ones.
type WorkerMetrics struct {
	collectors

	runTotal        *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	runInFlight     prometheus.Gauge
	queueLag        *prometheus.HistogramVec
	passagesIndexed *prometheus.CounterVec
	fetchFailures   *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	c := newCollectors()
	return &WorkerMetrics{
		collectors: c,

		runTotal: c.counter("worker", "ingest_runs_total",
			"Total ingestion runs by status.", "service", "status"),
		runDuration: c.histogram("worker", "ingest_run_duration_seconds",
			"Ingestion run duration in seconds by status.",
			[]float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600}, "service", "status"),
		runInFlight: c.gauge("worker", "ingest_runs_in_flight",
			"Number of in-flight ingestion runs.", service),
		queueLag: c.histogram("worker", "queue_lag_seconds",
			"Delay between run creation and processing start.",
			[]float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600}, "service"),
		passagesIndexed: c.counter("worker", "passages_indexed_total",
			"Total passages written by successful ingestion runs.", "service", "collection"),
		fetchFailures: c.counter("worker", "document_fetch_failures_total",
			"Total documents skipped because their fetch failed.", "service"),
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return m.handler()
}

func (m *WorkerMetrics) StartRun() {
	m.runInFlight.Inc()
}

func (m *WorkerMetrics) FinishRun(service string, duration time.Duration, err error) {
	m.runInFlight.Dec()
	status := "success"
	if err != nil {
		status = "error"
	}
	m.runTotal.WithLabelValues(service, status).Inc()
	m.runDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

// ObserveQueueLag ignores negative lags from skewed clocks.
func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag >= 0 {
		m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
	}
}

func (m *WorkerMetrics) RecordIndexed(service, collection string, passages, failedDocuments int) {
	if passages > 0 {
		m.passagesIndexed.WithLabelValues(service, collection).Add(float64(passages))
	}
	if failedDocuments > 0 {
		m.fetchFailures.WithLabelValues(service).Add(float64(failedDocuments))
	}
}
