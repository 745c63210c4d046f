package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrUnknownEndpoint is returned when an endpoint name was never
	// registered on the client.
	ErrUnknownEndpoint = errors.New("unknown endpoint")
)

// ErrorClass classifies a request failure for retry decisions and metrics.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx responses other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents transport-level failures with no HTTP
	// status at all.
	ErrorClassNetwork ErrorClass = "network"
)

// classifyStatus maps an HTTP error status to its class.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == 429:
		return ErrorClassRateLimit
	case status >= 500:
		return ErrorClassServer
	case status >= 400:
		return ErrorClassClient
	default:
		return ""
	}
}

// retryable reports whether a failure of the given class may be retried.
// Network-level failures are configurable; 4xx other than 429 never are.
func retryable(class ErrorClass, retryNetwork bool) bool {
	switch class {
	case ErrorClassServer, ErrorClassRateLimit:
		return true
	case ErrorClassNetwork:
		return retryNetwork
	default:
		return false
	}
}

// NetworkError is a transport-level failure: the request never produced an
// HTTP status. The retry policy treats it differently from error statuses.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error requesting %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RequestError reports a network/HTTP failure that survived the retry
// policy (or was never retryable).
type RequestError struct {
	Endpoint string
	URL      string
	Status   int // 0 when the failure was network-level
	Attempts int
	Retried  bool
	Class    ErrorClass
	Err      error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request to %q failed (status=%d attempts=%d class=%s): %v",
		e.Endpoint, e.Status, e.Attempts, e.Class, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// AsMap renders the error as a structured log record.
func (e *RequestError) AsMap() map[string]any {
	return map[string]any{
		"kind":     "api_request_error",
		"endpoint": e.Endpoint,
		"url":      e.URL,
		"status":   e.Status,
		"attempts": e.Attempts,
		"retried":  e.Retried,
		"class":    string(e.Class),
		"message":  fmt.Sprint(e.Err),
	}
}

// AuthError reports a credential acquisition or refresh failure. It is
// never retried.
type AuthError struct {
	Endpoint string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication for %q failed: %v", e.Endpoint, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// AsMap renders the error as a structured log record.
func (e *AuthError) AsMap() map[string]any {
	return map[string]any{
		"kind":     "api_auth_error",
		"endpoint": e.Endpoint,
		"message":  fmt.Sprint(e.Err),
	}
}

// PaginationError reports a malformed response: a records or cursor path
// that could not be resolved, or a body that is not JSON. Never retried.
type PaginationError struct {
	Endpoint string
	Path     string // offending dot path, when one was involved
	Page     int    // 1-based page number being fetched
	Err      error
}

func (e *PaginationError) Error() string {
	return fmt.Sprintf("pagination of %q failed at page %d (path=%q): %v",
		e.Endpoint, e.Page, e.Path, e.Err)
}

func (e *PaginationError) Unwrap() error { return e.Err }

// AsMap renders the error as a structured log record.
func (e *PaginationError) AsMap() map[string]any {
	return map[string]any{
		"kind":     "pagination_error",
		"endpoint": e.Endpoint,
		"path":     e.Path,
		"page":     e.Page,
		"message":  fmt.Sprint(e.Err),
	}
}

// ConfigError reports bad configuration: an unknown endpoint, an
// unresolved placeholder, or a contradictory pagination config. Always
// raised before any network call.
type ConfigError struct {
	Endpoint string
	Detail   string
	Err      error
}

func (e *ConfigError) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("configuration error for %q: %s", e.Endpoint, e.Detail)
	}
	return fmt.Sprintf("configuration error: %s", e.Detail)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// AsMap renders the error as a structured log record.
func (e *ConfigError) AsMap() map[string]any {
	return map[string]any{
		"kind":     "configuration_error",
		"endpoint": e.Endpoint,
		"message":  e.Detail,
	}
}
