package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/anvesana/internal/config"
	"github.com/kirillkom/anvesana/internal/core/domain"
	"github.com/kirillkom/anvesana/internal/core/ports"
	"github.com/kirillkom/anvesana/internal/observability/metrics"
)

const (
	serviceName     = "anvesana-api"
	maxRequestBytes = 1 << 20

	modeMMR        = "mmr"
	modeSimilarity = "similarity"
)

// Services are the inbound ports the router exposes. Ingest may be nil when
// the run ledger or the queue is not configured; the ingest routes then
// answer 503.
type Services struct {
	Retriever ports.PassageRetriever
	Queries   ports.QueryService
	Binder    ports.CollectionBinder
	Ingest    ports.IngestScheduler
	Metrics   *metrics.HTTPServerMetrics
}

type Router struct {
	cfg      config.Config
	services Services
}

func NewRouter(cfg config.Config, services Services) *Router {
	return &Router{cfg: cfg, services: services}
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/retrieve", rt.retrieve)
	api.HandleFunc("POST /v1/rag/query", rt.queryRAG)
	api.HandleFunc("POST /v1/ingest", rt.scheduleIngest)
	api.HandleFunc("GET /v1/ingest/runs/{id}", rt.getRun)
	api.HandleFunc("POST /v1/collections/{name}/open", rt.openCollection)

	var guarded http.Handler = api
	if rt.cfg.APIMaxInFlight > 0 {
		wait := time.Duration(rt.cfg.APIBackpressureWaitMS) * time.Millisecond
		guarded = backpressureMiddleware(guarded, rt.cfg.APIMaxInFlight, wait)
	}
	if rt.cfg.APIRateLimitRPS > 0 {
		guarded = rateLimitMiddleware(guarded, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.services.Metrics != nil {
		mux.Handle("GET /metrics", rt.services.Metrics.Handler())
	}
	mux.Handle("/v1/", guarded)

	var handler http.Handler = mux
	if rt.services.Metrics != nil {
		handler = rt.services.Metrics.Middleware(serviceName, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type retrieveRequest struct {
	Query  string `json:"query"`
	K      int    `json:"k"`
	FetchK int    `json:"fetch_k"`
	Mode   string `json:"mode"`
}

type retrieveResponse struct {
	Query    string                    `json:"query"`
	Mode     string                    `json:"mode"`
	Passages []domain.RetrievedPassage `json:"passages"`
}

func (rt *Router) retrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	mode := strings.ToLower(strings.TrimSpace(req.Mode))
	if mode == "" {
		mode = modeMMR
	}

	start := time.Now()
	var (
		passages []domain.RetrievedPassage
		err      error
	)
	switch mode {
	case modeMMR:
		passages, err = rt.services.Retriever.Retrieve(r.Context(), req.Query, req.K, req.FetchK)
	case modeSimilarity:
		passages, err = rt.services.Retriever.Similar(r.Context(), req.Query, req.K)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "mode must be mmr or similarity"})
		return
	}
	if err != nil {
		writeError(w, r, "retrieve", err)
		return
	}
	if passages == nil {
		passages = []domain.RetrievedPassage{}
	}
	if rt.services.Metrics != nil {
		rt.services.Metrics.RecordRetrieval(serviceName, "retrieve_"+mode, len(passages), time.Since(start))
	}

	writeJSON(w, http.StatusOK, retrieveResponse{Query: req.Query, Mode: mode, Passages: passages})
}

type ragQueryRequest struct {
	Question string `json:"question"`
	K        int    `json:"k"`
	FetchK   int    `json:"fetch_k"`
}

type ragQueryResponse struct {
	Answer    string                    `json:"answer"`
	Sources   []domain.RetrievedPassage `json:"sources"`
	Citations string                    `json:"citations"`
}

func (rt *Router) queryRAG(w http.ResponseWriter, r *http.Request) {
	var req ragQueryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	start := time.Now()
	answer, err := rt.services.Queries.Answer(r.Context(), req.Question, req.K, req.FetchK)
	if err != nil {
		writeError(w, r, "rag query", err)
		return
	}
	sources := answer.Sources
	if sources == nil {
		sources = []domain.RetrievedPassage{}
	}
	if rt.services.Metrics != nil {
		rt.services.Metrics.RecordRetrieval(serviceName, "rag_query", len(sources), time.Since(start))
	}

	writeJSON(w, http.StatusOK, ragQueryResponse{
		Answer:    answer.Text,
		Sources:   sources,
		Citations: answer.CitationsMarkdown(),
	})
}

func (rt *Router) scheduleIngest(w http.ResponseWriter, r *http.Request) {
	if rt.services.Ingest == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "ingestion runs are not configured"})
		return
	}

	var req struct {
		Recrawl bool `json:"recrawl"`
	}
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	run, err := rt.services.Ingest.Schedule(r.Context(), req.Recrawl)
	if err != nil {
		writeError(w, r, "schedule ingest", err)
		return
	}
	if rt.services.Metrics != nil {
		rt.services.Metrics.RecordIngestScheduled(serviceName, req.Recrawl)
	}
	writeJSON(w, http.StatusAccepted, run)
}

func (rt *Router) getRun(w http.ResponseWriter, r *http.Request) {
	if rt.services.Ingest == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "ingestion runs are not configured"})
		return
	}

	run, err := rt.services.Ingest.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, "get ingest run", err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (rt *Router) openCollection(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PathValue("name"))
	previous, err := rt.services.Binder.Open(r.Context(), name)
	if err != nil {
		writeError(w, r, "open collection", err)
		return
	}
	if rt.services.Metrics != nil {
		rt.services.Metrics.RecordCollectionRebind(serviceName, previous != "" && previous != name)
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"collection": name,
		"previous":   previous,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		message := "invalid json"
		if errors.Is(err, io.EOF) {
			message = "request body is empty"
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": message})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
