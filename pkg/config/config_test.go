package config

import (
	"testing"
	"time"
)

func TestDecodePagination(t *testing.T) {
	raw := map[string]any{
		"type":         "cursor",
		"cursor_param": "after",
		"cursor_path":  "meta.next",
		"page_size":    "50", // string coerced to int
		"max_records":  500,
		// Fields foreign to the cursor shape are ignored, not rejected.
		"page_param": "page",
		"size_param": "per_page",
		// Entirely unknown keys are ignored too.
		"provider_hint": "v2",
	}

	cfg, err := DecodePagination(raw)
	if err != nil {
		t.Fatalf("DecodePagination() error = %v", err)
	}
	if cfg.Type != TypeCursor {
		t.Errorf("Type = %q, want %q", cfg.Type, TypeCursor)
	}
	if cfg.CursorParam != "after" {
		t.Errorf("CursorParam = %q, want %q", cfg.CursorParam, "after")
	}
	if cfg.PageSize != 50 {
		t.Errorf("PageSize = %d, want 50", cfg.PageSize)
	}
	if cfg.MaxRecords != 500 {
		t.Errorf("MaxRecords = %d, want 500", cfg.MaxRecords)
	}
}

func TestDecodePaginationExplicitZeroStart(t *testing.T) {
	cfg, err := DecodePagination(map[string]any{
		"type":       "offset",
		"start_page": 0,
	})
	if err != nil {
		t.Fatalf("DecodePagination() error = %v", err)
	}
	if cfg.StartPage == nil || *cfg.StartPage != 0 {
		t.Errorf("StartPage = %v, want explicit 0", cfg.StartPage)
	}
}

func TestDecodeRateLimit(t *testing.T) {
	cfg, err := DecodeRateLimit(map[string]any{"max_per_sec": 5})
	if err != nil {
		t.Fatalf("DecodeRateLimit() error = %v", err)
	}
	if cfg.MaxPerSec != 5 {
		t.Errorf("MaxPerSec = %d, want 5", cfg.MaxPerSec)
	}
	if !cfg.Enabled() {
		t.Error("Enabled() = false, want true")
	}

	var zero RateLimit
	if zero.Enabled() {
		t.Error("zero value Enabled() = true, want false")
	}
}

func TestRateLimitSleepDuration(t *testing.T) {
	cfg := RateLimit{SleepSeconds: 0.25}
	if got := cfg.SleepDuration(); got != 250*time.Millisecond {
		t.Errorf("SleepDuration() = %v, want 250ms", got)
	}
}

func TestRetryNormalized(t *testing.T) {
	tests := []struct {
		name         string
		in           Retry
		wantAttempts int
		wantBackoff  float64
	}{
		{"zero value", Retry{}, 1, 1},
		{"negative attempts", Retry{MaxAttempts: -2, Backoff: 0.5}, 1, 0.5},
		{"valid config kept", Retry{MaxAttempts: 4, Backoff: 2}, 4, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalized()
			if got.MaxAttempts != tt.wantAttempts {
				t.Errorf("MaxAttempts = %d, want %d", got.MaxAttempts, tt.wantAttempts)
			}
			if got.Backoff != tt.wantBackoff {
				t.Errorf("Backoff = %v, want %v", got.Backoff, tt.wantBackoff)
			}
		})
	}
}

func TestResolvePlaceholders(t *testing.T) {
	vars := map[string]string{"TENANT": "acme", "REGION": "eu"}

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"single placeholder", "/tenants/${TENANT}/users", "/tenants/acme/users", false},
		{"multiple placeholders", "${REGION}.${TENANT}.example.com", "eu.acme.example.com", false},
		{"no placeholders", "/users", "/users", false},
		{"unresolved placeholder", "/tenants/${MISSING}", "", true},
		{"partially resolved", "${TENANT}/${MISSING}", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolvePlaceholders(tt.in, vars)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ResolvePlaceholders() = %q, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolvePlaceholders() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolvePlaceholders() = %q, want %q", got, tt.want)
			}
		})
	}
}
