package client

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorClass
	}{
		{429, ErrorClassRateLimit},
		{400, ErrorClassClient},
		{404, ErrorClassClient},
		{499, ErrorClassClient},
		{500, ErrorClassServer},
		{503, ErrorClassServer},
		{200, ""},
		{304, ""},
	}

	for _, tt := range tests {
		if got := classifyStatus(tt.status); got != tt.want {
			t.Errorf("classifyStatus(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		class        ErrorClass
		retryNetwork bool
		want         bool
	}{
		{ErrorClassServer, false, true},
		{ErrorClassRateLimit, false, true},
		{ErrorClassClient, true, false},
		{ErrorClassNetwork, false, false},
		{ErrorClassNetwork, true, true},
	}

	for _, tt := range tests {
		if got := retryable(tt.class, tt.retryNetwork); got != tt.want {
			t.Errorf("retryable(%q, %v) = %v, want %v", tt.class, tt.retryNetwork, got, tt.want)
		}
	}
}

func TestRequestErrorAsMap(t *testing.T) {
	err := &RequestError{
		Endpoint: "list_users",
		URL:      "https://api.example.com/users",
		Status:   503,
		Attempts: 3,
		Retried:  true,
		Class:    ErrorClassServer,
		Err:      fmt.Errorf("%w after 3 attempts", ErrRetryExhausted),
	}

	m := err.AsMap()
	if m["kind"] != "api_request_error" {
		t.Errorf(`kind = %v, want "api_request_error"`, m["kind"])
	}
	if m["endpoint"] != "list_users" {
		t.Errorf(`endpoint = %v, want "list_users"`, m["endpoint"])
	}
	if m["status"] != 503 {
		t.Errorf("status = %v, want 503", m["status"])
	}
	if m["attempts"] != 3 {
		t.Errorf("attempts = %v, want 3", m["attempts"])
	}

	if !errors.Is(err, ErrRetryExhausted) {
		t.Error("RequestError must unwrap to ErrRetryExhausted")
	}
}

func TestPaginationErrorAsMap(t *testing.T) {
	err := &PaginationError{
		Endpoint: "list_users",
		Path:     "data.items",
		Page:     4,
		Err:      errors.New("key not found"),
	}

	m := err.AsMap()
	if m["kind"] != "pagination_error" {
		t.Errorf(`kind = %v, want "pagination_error"`, m["kind"])
	}
	if m["path"] != "data.items" {
		t.Errorf(`path = %v, want "data.items"`, m["path"])
	}
	if m["page"] != 4 {
		t.Errorf("page = %v, want 4", m["page"])
	}
}

func TestConfigErrorUnknownEndpoint(t *testing.T) {
	err := &ConfigError{Endpoint: "nope", Detail: "endpoint not registered", Err: ErrUnknownEndpoint}
	if !errors.Is(err, ErrUnknownEndpoint) {
		t.Error("ConfigError must unwrap to ErrUnknownEndpoint")
	}
	if m := err.AsMap(); m["kind"] != "configuration_error" {
		t.Errorf(`kind = %v, want "configuration_error"`, m["kind"])
	}
}

func TestAuthErrorAsMap(t *testing.T) {
	err := &AuthError{Endpoint: "list_users", Err: errors.New("invalid_client")}
	m := err.AsMap()
	if m["kind"] != "api_auth_error" {
		t.Errorf(`kind = %v, want "api_auth_error"`, m["kind"])
	}
}
