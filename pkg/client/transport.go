package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Transport executes a single HTTP request. It is the engine's seam to the
// outside world: timeouts, connection pooling and TLS are its concern, not
// the engine's. A transport-level failure must be returned as a
// *NetworkError so the retry policy can tell it apart from an HTTP error
// status; non-2xx responses are returned as a Response, not an error.
type Transport interface {
	Execute(ctx context.Context, method, rawURL string, headers http.Header, query url.Values) (*Response, error)
}

// Response is the transport's view of one HTTP exchange.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// JSON decodes the response body.
func (r *Response) JSON() (any, error) {
	var body any
	if err := json.Unmarshal(r.Body, &body); err != nil {
		return nil, fmt.Errorf("decode response body: %w", err)
	}
	return body, nil
}

// HTTPTransport is the default Transport, backed by net/http.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport wraps an http.Client as a Transport. A nil client gets
// a 30 second timeout default.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPTransport{client: client}
}

// Execute performs the request, merging query into any parameters already
// present on rawURL.
func (t *HTTPTransport) Execute(ctx context.Context, method, rawURL string, headers http.Header, query url.Values) (*Response, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Err: err}
	}

	if len(query) > 0 {
		merged := parsed.Query()
		for key, values := range query {
			merged[key] = values
		}
		parsed.RawQuery = merged.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, parsed.String(), nil)
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Err: err}
	}
	for key, values := range headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: parsed.String(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{URL: parsed.String(), Err: err}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		Headers:    resp.Header,
	}, nil
}
