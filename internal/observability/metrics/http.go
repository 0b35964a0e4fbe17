package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPServerMetrics covers the API process: transport-level request
// metrics plus retrieval outcomes recorded by the handlers.
type HTTPServerMetrics struct {
	collectors

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	retrievalTotal    *prometheus.CounterVec
	retrievalEmpty    *prometheus.CounterVec
	retrievalPassages *prometheus.HistogramVec
	retrievalDuration *prometheus.HistogramVec
	ingestScheduled   *prometheus.CounterVec
	collectionRebinds *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	c := newCollectors()
	return &HTTPServerMetrics{
		collectors: c,

		requestTotal: c.counter("http", "requests_total",
			"Total HTTP requests processed.", "service", "method", "path", "status"),
		requestDuration: c.histogram("http", "request_duration_seconds",
			"HTTP request duration in seconds.", prometheus.DefBuckets, "service", "method", "path"),
		requestInFlight: c.gauge("http", "in_flight_requests",
			"Number of in-flight HTTP requests.", service),

		retrievalTotal: c.counter("retrieval", "requests_total",
			"Total successful retrieval requests.", "service", "endpoint"),
		retrievalEmpty: c.counter("retrieval", "no_result_total",
			"Total retrieval requests that returned no passages.", "service", "endpoint"),
		retrievalPassages: c.histogram("retrieval", "passages",
			"Distribution of passages returned per successful retrieval.",
			[]float64{0, 1, 2, 3, 5, 8, 13, 21}, "service", "endpoint"),
		retrievalDuration: c.histogram("retrieval", "duration_seconds",
			"Retrieval duration in seconds, including answer synthesis where requested.",
			prometheus.DefBuckets, "service", "endpoint"),

		ingestScheduled: c.counter("ingest", "scheduled_total",
			"Total ingestion runs scheduled through the API.", "service", "recrawl"),
		collectionRebinds: c.counter("collection", "rebinds_total",
			"Total explicit collection rebinds.", "service", "replaced"),
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return m.handler()
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		start := time.Now()
		rec := &codeRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := routeLabel(r.URL.Path)
		m.requestTotal.WithLabelValues(service, r.Method, path, strconv.Itoa(rec.code)).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// routeLabel folds path parameters so label cardinality stays bounded.
func routeLabel(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/ingest/runs/"):
		return "/v1/ingest/runs/{run_id}"
	case strings.HasPrefix(path, "/v1/collections/"):
		return "/v1/collections/{name}/open"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordRetrieval(service, endpoint string, passages int, duration time.Duration) {
	m.retrievalTotal.WithLabelValues(service, endpoint).Inc()
	m.retrievalPassages.WithLabelValues(service, endpoint).Observe(float64(passages))
	m.retrievalDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())
	if passages == 0 {
		m.retrievalEmpty.WithLabelValues(service, endpoint).Inc()
	}
}

func (m *HTTPServerMetrics) RecordIngestScheduled(service string, recrawl bool) {
	m.ingestScheduled.WithLabelValues(service, strconv.FormatBool(recrawl)).Inc()
}

func (m *HTTPServerMetrics) RecordCollectionRebind(service string, replaced bool) {
	m.collectionRebinds.WithLabelValues(service, strconv.FormatBool(replaced)).Inc()
}

type codeRecorder struct {
	http.ResponseWriter
	code int
}

func (w *codeRecorder) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *codeRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
