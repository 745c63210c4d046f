// Package testutil provides a scripted mock JSON API server for testing
// the paginated extraction engine.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
)

// MockResponse is one scripted response for a path.
type MockResponse struct {
	Status  int
	Body    string
	Headers map[string]string
}

// MockAPI is a configurable mock provider API. Paths can be scripted with
// a fixed sequence of responses (the last one repeats) or handled by a
// custom handler; every request's query parameters are captured for
// assertions.
type MockAPI struct {
	server *httptest.Server

	mu        sync.Mutex
	handlers  map[string]http.HandlerFunc
	responses map[string][]MockResponse
	counts    map[string]int
	queries   map[string][]url.Values
	headers   map[string][]http.Header
}

// NewMockAPI starts a mock API server. Callers own Close.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		handlers:  make(map[string]http.HandlerFunc),
		responses: make(map[string][]MockResponse),
		counts:    make(map[string]int),
		queries:   make(map[string][]url.Values),
		headers:   make(map[string][]http.Header),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		mock.mu.Lock()
		index := mock.counts[path]
		mock.counts[path]++
		mock.queries[path] = append(mock.queries[path], r.URL.Query())
		mock.headers[path] = append(mock.headers[path], r.Header.Clone())
		handler := mock.handlers[path]
		script := mock.responses[path]
		mock.mu.Unlock()

		if handler != nil {
			handler(w, r)
			return
		}

		if len(script) > 0 {
			if index >= len(script) {
				index = len(script) - 1
			}
			resp := script[index]
			for key, value := range resp.Headers {
				w.Header().Set(key, value)
			}
			if w.Header().Get("Content-Type") == "" {
				w.Header().Set("Content-Type", "application/json")
			}
			w.WriteHeader(resp.Status)
			w.Write([]byte(resp.Body))
			return
		}

		http.NotFound(w, r)
	}))

	return mock
}

// URL returns the mock server base URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Respond scripts a sequence of responses for a path. The i-th request
// receives the i-th response; requests beyond the script receive the last.
func (m *MockAPI) Respond(path string, responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[path] = responses
}

// SetHandler installs a custom handler for a path, overriding any script.
func (m *MockAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// Requests returns how many requests the path has received.
func (m *MockAPI) Requests(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[path]
}

// Queries returns the query parameters of every request to the path, in
// arrival order.
func (m *MockAPI) Queries(path string) []url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]url.Values(nil), m.queries[path]...)
}

// LastHeader returns the headers of the most recent request to the path,
// or nil if none arrived.
func (m *MockAPI) LastHeader(path string) http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	captured := m.headers[path]
	if len(captured) == 0 {
		return nil
	}
	return captured[len(captured)-1]
}
