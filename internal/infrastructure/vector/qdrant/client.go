package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/anvesana/internal/core/domain"
	"github.com/kirillkom/anvesana/internal/core/ports"
	"github.com/kirillkom/anvesana/internal/infrastructure/resilience"
)

const (
	serviceName       = "qdrant"
	defaultUpsertSize = 256
)

// Client stores collections in a Qdrant instance over its REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
	batchSize  int

	writeMu sync.Mutex
}

type Options struct {
	Timeout    time.Duration
	BatchSize  int
	HTTPClient *http.Client
	Executor   *resilience.Executor
}

func New(baseURL string, options Options) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, domain.WrapError(domain.ErrConfiguration, "qdrant client", errors.New("qdrant url is not set"))
	}
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	batchSize := options.BatchSize
	if batchSize <= 0 {
		batchSize = defaultUpsertSize
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		executor:   options.Executor,
		batchSize:  batchSize,
	}, nil
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// Replace drops the collection, recreates it with cosine distance and uploads
// entries in batches. Point ids are derived from collection name and position.
func (c *Client) Replace(ctx context.Context, collection string, dimension int, entries []domain.VectorEntry) error {
	if strings.TrimSpace(collection) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "replace collection", errors.New("collection name is empty"))
	}
	if dimension <= 0 {
		return domain.WrapError(domain.ErrInvalidInput, "replace collection", fmt.Errorf("invalid dimension %d", dimension))
	}
	for i, entry := range entries {
		if len(entry.Vector) != dimension {
			return domain.WrapError(
				domain.ErrDimensionMismatch,
				"replace collection",
				fmt.Errorf("entry %d has dimension %d, collection expects %d", i, len(entry.Vector), dimension),
			)
		}
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	path := collectionPath(collection)
	err := c.do(ctx, http.MethodDelete, path, nil, nil, "delete collection")
	var statusErr *resilience.HTTPStatusError
	if err != nil && !(errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound) {
		return err
	}

	create := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	if err := c.do(ctx, http.MethodPut, path, create, nil, "create collection"); err != nil {
		return err
	}

	namespace := uuid.NewSHA1(uuid.NameSpaceURL, []byte("anvesana:"+collection))
	for start := 0; start < len(entries); start += c.batchSize {
		end := min(start+c.batchSize, len(entries))
		points := make([]point, 0, end-start)
		for i := start; i < end; i++ {
			meta := entries[i].Passage.Metadata
			if meta.Title == "" {
				meta.Title = domain.DefaultTitle
			}
			points = append(points, point{
				ID:     uuid.NewSHA1(namespace, fmt.Appendf(nil, "%d", i)).String(),
				Vector: entries[i].Vector,
				Payload: map[string]any{
					"title": meta.Title,
					"link":  meta.Link,
					"text":  entries[i].Passage.Text,
					"seq":   i,
				},
			})
		}
		body := map[string]any{"points": points}
		if err := c.do(ctx, http.MethodPut, path+"/points?wait=true", body, nil, "upsert points"); err != nil {
			return fmt.Errorf("upsert points %d-%d: %w", start, end, err)
		}
	}
	return nil
}

func (c *Client) Open(ctx context.Context, collection string) (ports.Collection, error) {
	var resp struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	err := c.do(ctx, http.MethodGet, collectionPath(collection), nil, &resp, "get collection")
	if err != nil {
		var statusErr *resilience.HTTPStatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, domain.WrapError(domain.ErrCollectionNotFound, "open collection", fmt.Errorf("collection %q", collection))
		}
		return nil, err
	}
	return &Collection{client: c, name: collection, dimension: resp.Result.Config.Params.Vectors.Size}, nil
}

// Collection is a read-only handle on one Qdrant collection.
type Collection struct {
	client    *Client
	name      string
	dimension int
}

func (c *Collection) Name() string   { return c.name }
func (c *Collection) Dimension() int { return c.dimension }

func (c *Collection) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	body := map[string]any{"exact": true}
	if err := c.client.do(ctx, http.MethodPost, collectionPath(c.name)+"/points/count", body, &resp, "count points"); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func (c *Collection) Search(ctx context.Context, queryVector []float32, limit int) ([]domain.ScoredEntry, error) {
	if len(queryVector) != c.dimension {
		return nil, domain.WrapError(
			domain.ErrDimensionMismatch,
			"search collection",
			fmt.Errorf("query has dimension %d, collection %q expects %d", len(queryVector), c.name, c.dimension),
		)
	}
	if limit <= 0 {
		return []domain.ScoredEntry{}, nil
	}

	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
		"with_vector":  true,
	}
	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
			Vector  []float32      `json:"vector"`
		} `json:"result"`
	}
	if err := c.client.do(ctx, http.MethodPost, collectionPath(c.name)+"/points/search", reqBody, &searchResp, "search points"); err != nil {
		return nil, err
	}

	type ranked struct {
		entry domain.ScoredEntry
		seq   float64
	}
	hits := make([]ranked, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		seq, _ := r.Payload["seq"].(float64)
		hits = append(hits, ranked{
			seq: seq,
			entry: domain.ScoredEntry{
				Passage: domain.Passage{
					Text: getStringPayload(r.Payload, "text"),
					Metadata: domain.PassageMetadata{
						Title: getStringPayload(r.Payload, "title"),
						Link:  getStringPayload(r.Payload, "link"),
					},
				},
				Vector: r.Vector,
				Score:  r.Score,
			},
		})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].entry.Score != hits[j].entry.Score {
			return hits[i].entry.Score > hits[j].entry.Score
		}
		return hits[i].seq < hits[j].seq
	})

	out := make([]domain.ScoredEntry, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.entry)
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any, out any, operation string) error {
	var body []byte
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", operation, err)
		}
		body = raw
	}

	call := func(callCtx context.Context) error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(callCtx, method, c.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("create %s request: %w", operation, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("qdrant %s request: %w", operation, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return resilience.NewHTTPStatusError(serviceName, operation, resp)
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
		return nil
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "qdrant."+strings.ReplaceAll(operation, " ", "_"), call, resilience.ClassifyHTTPError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return resilience.WrapTemporary("qdrant "+operation, err)
	}
	return nil
}

func collectionPath(name string) string {
	return "/collections/" + url.PathEscape(name)
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
