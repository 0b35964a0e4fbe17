package mediawiki

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/anvesana/internal/core/domain"
	"github.com/kirillkom/anvesana/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/anvesana/internal/infrastructure/resilience"
)

const (
	DefaultPageLimit = 500

	FormatText = "text"
	FormatHTML = "html"

	serviceName = "mediawiki"
)

type Options struct {
	PageLimit      int
	ExtractFormat  string
	RequestTimeout time.Duration
	// RateLimit is requests per second across all callers; zero disables throttling.
	RateLimit  float64
	RateBurst  int
	HTTPClient *http.Client
	Executor   *resilience.Executor
}

// Client reads page titles and extracts from a MediaWiki action API endpoint.
type Client struct {
	apiURL     string
	pageLimit  int
	format     string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
	extractor  *plaintext.Extractor
}

func New(apiURL string, options Options) (*Client, error) {
	apiURL = strings.TrimSpace(apiURL)
	if apiURL == "" {
		return nil, domain.WrapError(domain.ErrConfiguration, "mediawiki client", errors.New("api url is not set"))
	}
	parsed, err := url.Parse(apiURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, domain.WrapError(domain.ErrConfiguration, "mediawiki client", fmt.Errorf("invalid api url %q", apiURL))
	}

	format := strings.ToLower(strings.TrimSpace(options.ExtractFormat))
	if format == "" {
		format = FormatText
	}
	if format != FormatText && format != FormatHTML {
		return nil, domain.WrapError(domain.ErrConfiguration, "mediawiki client", fmt.Errorf("unsupported extract format %q", options.ExtractFormat))
	}

	pageLimit := options.PageLimit
	if pageLimit <= 0 {
		pageLimit = DefaultPageLimit
	}
	timeout := options.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if options.RateLimit > 0 {
		burst := options.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(options.RateLimit), burst)
	}

	return &Client{
		apiURL:     apiURL,
		pageLimit:  pageLimit,
		format:     format,
		httpClient: httpClient,
		limiter:    limiter,
		executor:   options.Executor,
		extractor:  plaintext.NewExtractor(),
	}, nil
}

type allPagesResponse struct {
	Query struct {
		AllPages []struct {
			Title string `json:"title"`
		} `json:"allpages"`
	} `json:"query"`
	Continue struct {
		APContinue string `json:"apcontinue"`
	} `json:"continue"`
}

type extractsResponse struct {
	Query struct {
		Pages map[string]struct {
			Title   string `json:"title"`
			Extract string `json:"extract"`
			FullURL string `json:"fullurl"`
		} `json:"pages"`
	} `json:"query"`
}

// ListDocumentIDs walks the allpages listing until the server stops returning
// a continuation token.
func (c *Client) ListDocumentIDs(ctx context.Context) ([]string, error) {
	titles := make([]string, 0, c.pageLimit)
	token := ""
	for page := 1; ; page++ {
		params := url.Values{
			"action":  {"query"},
			"list":    {"allpages"},
			"aplimit": {strconv.Itoa(c.pageLimit)},
			"format":  {"json"},
		}
		if token != "" {
			params.Set("apcontinue", token)
		}

		var resp allPagesResponse
		if err := c.get(ctx, "list pages", params, &resp); err != nil {
			return nil, err
		}
		for _, p := range resp.Query.AllPages {
			titles = append(titles, p.Title)
		}
		slog.Info("crawl_page_fetched", "page", page, "batch", len(resp.Query.AllPages), "total", len(titles))

		next := resp.Continue.APContinue
		if next == "" {
			return titles, nil
		}
		if next == token {
			return nil, fmt.Errorf("mediawiki list pages: continuation token %q did not advance", next)
		}
		token = next
	}
}

// FetchDocument returns the page extract and canonical URL. Missing pages and
// pages without an extract come back with empty Content.
func (c *Client) FetchDocument(ctx context.Context, id string) (domain.Document, error) {
	params := url.Values{
		"action": {"query"},
		"prop":   {"extracts|info"},
		"titles": {id},
		"inprop": {"url"},
		"format": {"json"},
	}
	if c.format == FormatText {
		params.Set("explaintext", "1")
	}

	var resp extractsResponse
	if err := c.get(ctx, "fetch page", params, &resp); err != nil {
		return domain.Document{}, err
	}

	doc := domain.Document{Title: id}
	for _, page := range resp.Query.Pages {
		doc.Content = page.Extract
		doc.Link = page.FullURL
		break
	}
	if c.format == FormatHTML && doc.Content != "" {
		text, err := c.extractor.Extract(doc.Content)
		if err != nil {
			return domain.Document{}, fmt.Errorf("mediawiki fetch page %q: %w", id, err)
		}
		doc.Content = text
	}
	return doc, nil
}

func (c *Client) get(ctx context.Context, operation string, params url.Values, out any) error {
	call := func(callCtx context.Context) error {
		if err := c.limiter.Wait(callCtx); err != nil {
			return err
		}
		return c.doGet(callCtx, operation, params, out)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "mediawiki."+strings.ReplaceAll(operation, " ", "_"), call, resilience.ClassifyHTTPError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return resilience.WrapTemporary("mediawiki "+operation, err)
	}
	return nil
}

func (c *Client) doGet(ctx context.Context, operation string, params url.Values, out any) error {
	endpoint := c.apiURL
	if strings.Contains(endpoint, "?") {
		endpoint += "&" + params.Encode()
	} else {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "anvesana-crawler/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mediawiki %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resilience.NewHTTPStatusError(serviceName, operation, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}
