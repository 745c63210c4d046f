package client

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pagepull/pagepull/pkg/config"
	"github.com/pagepull/pagepull/pkg/extract"
	"github.com/pagepull/pagepull/pkg/pagination"
	"github.com/pagepull/pagepull/pkg/ratelimit"
)

// PaginateOptions configures one extraction call.
type PaginateOptions struct {
	// Pagination declares the strategy. Required.
	Pagination config.Pagination

	// RateLimit overrides the client default throttle when non-nil.
	RateLimit *config.RateLimit

	// Retry overrides the client default retry policy when non-nil.
	Retry *config.Retry

	// Limiter overrides throttle construction entirely, for extractions
	// sharing one limiter instance (or a ratelimit.RedisWindow) across
	// calls. Takes precedence over RateLimit.
	Limiter ratelimit.Limiter

	// Query adds per-call query parameters on top of the endpoint's
	// static ones. Pagination parameters win any key collision.
	Query map[string]string

	// Headers adds per-call headers on top of the endpoint's static ones.
	Headers map[string]string
}

// Pages is a lazy sequence of record pages. Typical use:
//
//	pages := client.Paginate(ctx, "list_users", opts)
//	for pages.Next() {
//		for _, record := range pages.Records() {
//			…
//		}
//	}
//	if err := pages.Err(); err != nil {
//		…
//	}
//
// Each Next call issues at most one request (plus retries); abandoning the
// sequence issues no further requests. A Pages is restartable only from
// the beginning: create a new one via Paginate.
type Pages struct {
	ctx      context.Context
	client   *Client
	name     string
	url      string
	headers  http.Header
	query    url.Values
	strategy *pagination.Strategy
	limiter  ratelimit.Limiter
	retry    config.Retry
	records  string // records path
	cursors  string // cursor path

	current []map[string]any
	err     error
	done    bool
}

// Paginate starts a lazy extraction of the named endpoint. Configuration
// problems (unknown endpoint, bad pagination config) surface on the first
// Next call, before any network I/O.
func (c *Client) Paginate(ctx context.Context, name string, opts PaginateOptions) *Pages {
	ep, ok := c.endpoints[name]
	if !ok {
		return &Pages{err: &ConfigError{Endpoint: name, Detail: "endpoint not registered", Err: ErrUnknownEndpoint}}
	}
	return c.newPages(ctx, name, ep, opts)
}

// PaginateURL starts a lazy extraction of a pre-composed absolute URL,
// bypassing the endpoint registry. The URL is used as-is; credentials,
// throttling and retries apply exactly as in Paginate.
func (c *Client) PaginateURL(ctx context.Context, rawURL string, opts PaginateOptions) *Pages {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return &Pages{err: &ConfigError{Detail: fmt.Sprintf("url must be absolute, got %q", rawURL), Err: err}}
	}
	return c.newPages(ctx, rawURL, &endpoint{url: rawURL, headers: http.Header{}, query: url.Values{}}, opts)
}

func (c *Client) newPages(ctx context.Context, name string, ep *endpoint, opts PaginateOptions) *Pages {
	strategy, err := pagination.New(opts.Pagination)
	if err != nil {
		return &Pages{err: &ConfigError{Endpoint: name, Detail: err.Error(), Err: err}}
	}

	limiter := opts.Limiter
	if limiter == nil {
		rateCfg := c.defaults.DefaultRateLimit
		if opts.RateLimit != nil {
			rateCfg = *opts.RateLimit
		}
		limiter = ratelimit.NewLimiter(rateCfg, c.logger)
	}

	retryCfg := c.defaults.DefaultRetry
	if opts.Retry != nil {
		retryCfg = *opts.Retry
	}

	headers := ep.headers.Clone()
	if headers == nil {
		headers = http.Header{}
	}
	for key, value := range opts.Headers {
		headers.Set(key, value)
	}

	query := url.Values{}
	maps.Copy(query, ep.query)
	for key, value := range opts.Query {
		query.Set(key, value)
	}

	return &Pages{
		ctx:      ctx,
		client:   c,
		name:     name,
		url:      ep.url,
		headers:  headers,
		query:    query,
		strategy: strategy,
		limiter:  limiter,
		retry:    retryCfg.Normalized(),
		records:  opts.Pagination.RecordsPath,
		cursors:  opts.Pagination.CursorPath,
	}
}

// Next fetches the next page. It returns false when the sequence is
// exhausted or a terminal error occurred; check Err afterwards to tell the
// two apart. A failure is never converted into a silent stop.
func (p *Pages) Next() bool {
	if p.err != nil || p.done {
		return false
	}
	if p.strategy.Done() {
		p.done = true
		return false
	}

	page := p.strategy.Pages() + 1
	records, err := p.fetchPage(page)
	if err != nil {
		p.fail(err)
		return false
	}

	p.current = records
	pagesTotal.WithLabelValues(p.name).Inc()
	recordsTotal.WithLabelValues(p.name).Add(float64(len(records)))
	return true
}

// Records returns the records of the page fetched by the last Next call.
// The returned slice is owned by the caller until the next Next call.
func (p *Pages) Records() []map[string]any { return p.current }

// Err returns the terminal error, if the sequence ended on one.
func (p *Pages) Err() error { return p.err }

// Count returns the number of records yielded so far. A sequence that
// failed before a strategy existed has yielded nothing.
func (p *Pages) Count() int {
	if p.strategy == nil {
		return 0
	}
	return p.strategy.Records()
}

// fetchPage runs one full page cycle: throttle, authenticate, execute with
// retries, extract, advance.
func (p *Pages) fetchPage(page int) ([]map[string]any, error) {
	if err := p.limiter.Wait(p.ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	headers := p.headers.Clone()
	if err := p.client.creds.Attach(p.ctx, headers); err != nil {
		return nil, &AuthError{Endpoint: p.name, Err: err}
	}

	query := url.Values{}
	maps.Copy(query, p.query)
	for key, value := range p.strategy.Params() {
		query.Set(key, value) // pagination params win collisions
	}

	p.client.logger.Debug().
		Str("endpoint", p.name).
		Int("page", page).
		Msg("Fetching page")

	start := time.Now()
	resp, attempts, err := retryWithBackoff(p.ctx, p.retry, p.client.logger, p.client.sleep, func() (*Response, error) {
		return p.client.transport.Execute(p.ctx, http.MethodGet, p.url, headers, query)
	})
	requestDuration.WithLabelValues(p.name).Observe(time.Since(start).Seconds())

	if err != nil {
		status := 0
		class := ErrorClassNetwork
		if resp != nil {
			status = resp.StatusCode
			class = classifyStatus(status)
		}
		requestsTotal.WithLabelValues(p.name, statusLabel(status)).Inc()
		return nil, &RequestError{
			Endpoint: p.name,
			URL:      p.url,
			Status:   status,
			Attempts: attempts,
			Retried:  attempts > 1,
			Class:    class,
			Err:      err,
		}
	}
	requestsTotal.WithLabelValues(p.name, strconv.Itoa(resp.StatusCode)).Inc()

	body, err := resp.JSON()
	if err != nil {
		return nil, &PaginationError{Endpoint: p.name, Page: page, Err: err}
	}

	records, err := extract.Records(body, p.records)
	if err != nil {
		return nil, &PaginationError{Endpoint: p.name, Path: pathOf(err, p.records), Page: page, Err: err}
	}

	var cursor any
	var hasCursor bool
	if p.strategy.Style() == config.TypeCursor {
		cursor, hasCursor, err = extract.Cursor(body, p.cursors)
		if err != nil {
			return nil, &PaginationError{Endpoint: p.name, Path: pathOf(err, p.cursors), Page: page, Err: err}
		}
	}

	p.strategy.Advance(len(records), cursor, hasCursor)
	return records, nil
}

func (p *Pages) fail(err error) {
	p.err = err
	p.done = true
	p.current = nil
	extractionErrorsTotal.WithLabelValues(errorKind(err)).Inc()

	p.client.logger.Error().
		Str("endpoint", p.name).
		Fields(errorFields(err)).
		Msg("Extraction failed")
}

// All drains the sequence into a single slice. Prefer ranging over Next
// for large extractions; All buffers every record in memory.
func (p *Pages) All() ([]map[string]any, error) {
	var all []map[string]any
	for p.Next() {
		all = append(all, p.Records()...)
	}
	if err := p.Err(); err != nil {
		return nil, err
	}
	return all, nil
}

// statusLabel renders an HTTP status for the requests metric; status 0
// (network failure) becomes "network_error".
func statusLabel(status int) string {
	if status == 0 {
		return "network_error"
	}
	return strconv.Itoa(status)
}

// pathOf prefers the offending path reported by the extractor over the
// configured one.
func pathOf(err error, configured string) string {
	var pathErr *extract.PathError
	if errors.As(err, &pathErr) && pathErr.Path != "" {
		return pathErr.Path
	}
	return configured
}

// errorKind maps an engine error to its taxonomy name for metrics.
func errorKind(err error) string {
	switch {
	case isAs[*ConfigError](err):
		return "configuration_error"
	case isAs[*AuthError](err):
		return "api_auth_error"
	case isAs[*PaginationError](err):
		return "pagination_error"
	case isAs[*RequestError](err):
		return "api_request_error"
	default:
		return "other"
	}
}

// errorFields renders an engine error's structured context for logging.
func errorFields(err error) map[string]any {
	type mapper interface{ AsMap() map[string]any }
	var m mapper
	if errors.As(err, &m) {
		return m.AsMap()
	}
	return map[string]any{"message": err.Error()}
}

func isAs[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}
