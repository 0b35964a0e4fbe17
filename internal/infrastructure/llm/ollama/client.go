package ollama

import (
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/anvesana/internal/infrastructure/resilience"
)

const (
	serviceName    = "ollama"
	defaultTimeout = 120 * time.Second
)

type Options struct {
	GenModel   string
	EmbedModel string
	// Timeout bounds one HTTP exchange; zero means two minutes.
	Timeout  time.Duration
	Executor *resilience.Executor
}

// Client is the shared REST transport for the embedder and generator.
type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL string, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   opts.GenModel,
		embedModel: opts.EmbedModel,
		httpClient: &http.Client{Timeout: timeout},
		executor:   opts.Executor,
	}
}
