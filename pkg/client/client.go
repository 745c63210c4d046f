// Package client implements the endpoint client that drives paginated
// record extraction: it composes request URLs from a registered endpoint
// catalog, attaches credentials, throttles and retries request execution,
// and streams extracted records page by page.
package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pagepull/pagepull/pkg/auth"
	"github.com/pagepull/pagepull/pkg/config"
)

// Prometheus metrics for request execution.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagepull_requests_total",
		Help: "Total requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pagepull_request_duration_seconds",
		Help:    "Request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	pagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagepull_pages_total",
		Help: "Pages successfully extracted by endpoint",
	}, []string{"endpoint"})

	recordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagepull_records_extracted_total",
		Help: "Records extracted by endpoint",
	}, []string{"endpoint"})

	extractionErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagepull_errors_total",
		Help: "Terminal extraction errors by kind",
	}, []string{"kind"})
)

// EndpointConfig declares one extractable endpoint: a path template
// relative to the client's base URL plus any static headers and query
// parameters every request to it carries. Path, header values and query
// values may contain ${VAR} placeholders.
type EndpointConfig struct {
	Path    string
	Headers map[string]string
	Query   map[string]string
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the absolute root every endpoint path is resolved
	// against, e.g. "https://api.example.com".
	BaseURL string

	// BasePath is an optional path prefix inserted between the base URL
	// and endpoint paths, e.g. "/v2".
	BasePath string

	// Endpoints maps endpoint names to their declarations.
	Endpoints map[string]EndpointConfig

	// Vars supplies values for ${VAR} placeholders in BasePath, endpoint
	// paths, header values and query values. Placeholders are resolved
	// once, at construction; an unresolved placeholder fails New.
	Vars map[string]string

	// Credentials optionally authenticates requests. Defaults to none.
	Credentials auth.Credentials

	// Transport optionally overrides request execution. Defaults to an
	// HTTPTransport with a 30 second timeout.
	Transport Transport

	// DefaultRateLimit and DefaultRetry apply to Paginate calls that do
	// not override them.
	DefaultRateLimit config.RateLimit
	DefaultRetry     config.Retry
}

// endpoint is a fully resolved endpoint registration.
type endpoint struct {
	url     string
	headers http.Header
	query   url.Values
}

// Client extracts records from the paginated JSON endpoints registered on
// it. A single client may serve many concurrent extractions; the only
// state they share is the credential token cache and any shared limiter.
type Client struct {
	endpoints map[string]*endpoint
	creds     auth.Credentials
	transport Transport
	defaults  Config
	logger    zerolog.Logger

	// sleep is swapped out by tests asserting backoff timing.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a client, resolving all ${VAR} placeholders and validating
// the endpoint catalog up front so configuration errors surface before any
// network call.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, &ConfigError{Detail: fmt.Sprintf("base_url must be absolute, got %q", cfg.BaseURL), Err: err}
	}

	basePath, err := config.ResolvePlaceholders(cfg.BasePath, cfg.Vars)
	if err != nil {
		return nil, &ConfigError{Detail: err.Error(), Err: err}
	}

	endpoints := make(map[string]*endpoint, len(cfg.Endpoints))
	for name, decl := range cfg.Endpoints {
		if decl.Path == "" {
			return nil, &ConfigError{Endpoint: name, Detail: "endpoint path must not be empty"}
		}
		resolved, err := resolveEndpoint(name, base, basePath, decl, cfg.Vars)
		if err != nil {
			return nil, err
		}
		endpoints[name] = resolved
	}

	creds := cfg.Credentials
	if creds == nil {
		creds = auth.None()
	}
	transport := cfg.Transport
	if transport == nil {
		transport = NewHTTPTransport(nil)
	}

	return &Client{
		endpoints: endpoints,
		creds:     creds,
		transport: transport,
		defaults:  cfg,
		logger:    log.With().Str("component", "endpoint-client").Logger(),
		sleep:     sleepContext,
	}, nil
}

// resolveEndpoint expands placeholders and composes the endpoint's
// absolute URL from base URL, base path and relative path.
func resolveEndpoint(name string, base *url.URL, basePath string, decl EndpointConfig, vars map[string]string) (*endpoint, error) {
	path, err := config.ResolvePlaceholders(decl.Path, vars)
	if err != nil {
		return nil, &ConfigError{Endpoint: name, Detail: err.Error(), Err: err}
	}

	headers := http.Header{}
	for key, value := range decl.Headers {
		resolved, err := config.ResolvePlaceholders(value, vars)
		if err != nil {
			return nil, &ConfigError{Endpoint: name, Detail: err.Error(), Err: err}
		}
		headers.Set(key, resolved)
	}

	query := url.Values{}
	for key, value := range decl.Query {
		resolved, err := config.ResolvePlaceholders(value, vars)
		if err != nil {
			return nil, &ConfigError{Endpoint: name, Detail: err.Error(), Err: err}
		}
		query.Set(key, resolved)
	}

	return &endpoint{
		url:     composeURL(base, basePath, path),
		headers: headers,
		query:   query,
	}, nil
}

// composeURL joins the base URL's path, the optional base path, and the
// endpoint's relative path with exactly one slash at each seam.
func composeURL(base *url.URL, basePath, relPath string) string {
	composed := *base
	segments := strings.TrimRight(base.Path, "/")
	if basePath != "" {
		segments += "/" + strings.Trim(basePath, "/")
	}
	segments += "/" + strings.TrimLeft(relPath, "/")
	composed.Path = segments
	return composed.String()
}

// EndpointURL returns the resolved absolute URL for a registered endpoint.
func (c *Client) EndpointURL(name string) (string, error) {
	ep, ok := c.endpoints[name]
	if !ok {
		return "", &ConfigError{Endpoint: name, Detail: "endpoint not registered", Err: ErrUnknownEndpoint}
	}
	return ep.url, nil
}
