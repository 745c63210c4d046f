// Package config holds the declarative configuration shapes the extraction
// engine is driven by: pagination strategy, request throttling, and retry
// behavior.
//
// Decoding is deliberately permissive: configurations arrive as loosely
// typed maps (parsed from YAML or JSON pipeline definitions), and fields
// that belong to an inactive pagination shape are ignored rather than
// rejected.
package config

import (
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// Pagination type discriminants.
const (
	TypePage   = "page"
	TypeOffset = "offset"
	TypeCursor = "cursor"
)

// Pagination declares how a provider paginates an endpoint. Exactly one
// shape is active per extraction, selected by Type; fields foreign to the
// active shape are ignored.
type Pagination struct {
	// Type selects the pagination convention: "page", "offset" or "cursor".
	Type string `mapstructure:"type" yaml:"type"`

	// PageParam is the query parameter carrying the page number ("page"
	// style) or the offset ("offset" style).
	PageParam string `mapstructure:"page_param" yaml:"page_param"`

	// SizeParam is the query parameter carrying the page size or limit.
	SizeParam string `mapstructure:"size_param" yaml:"size_param"`

	// StartPage is the first page number (default 1) or start offset
	// (default 0). A pointer so that an explicit 0 survives decoding.
	StartPage *int `mapstructure:"start_page" yaml:"start_page"`

	// PageSize is the number of records requested per page.
	PageSize int `mapstructure:"page_size" yaml:"page_size"`

	// RecordsPath is the dot path to the record array within the response
	// body. Empty means the body itself is the array.
	RecordsPath string `mapstructure:"records_path" yaml:"records_path"`

	// MaxPages caps the number of pages fetched. Zero means no cap.
	MaxPages int `mapstructure:"max_pages" yaml:"max_pages"`

	// MaxRecords is a soft cap on records yielded: the page that crosses
	// the cap is completed, then pagination stops. Zero means no cap.
	MaxRecords int `mapstructure:"max_records" yaml:"max_records"`

	// CursorParam is the query parameter carrying the cursor token.
	CursorParam string `mapstructure:"cursor_param" yaml:"cursor_param"`

	// CursorPath is the dot path to the next-cursor value in the response.
	CursorPath string `mapstructure:"cursor_path" yaml:"cursor_path"`

	// StartCursor optionally resumes a cursor extraction mid-stream.
	StartCursor string `mapstructure:"start_cursor" yaml:"start_cursor"`
}

// RateLimit declares outbound request throttling. The two modes are
// mutually exclusive in intent; when both are set the sliding window wins.
// The zero value disables throttling.
type RateLimit struct {
	// SleepSeconds is a fixed delay between consecutive requests.
	SleepSeconds float64 `mapstructure:"sleep_seconds" yaml:"sleep_seconds"`

	// MaxPerSec caps requests in any trailing one-second window.
	MaxPerSec int `mapstructure:"max_per_sec" yaml:"max_per_sec"`
}

// Enabled reports whether any throttling is configured.
func (r RateLimit) Enabled() bool {
	return r.SleepSeconds > 0 || r.MaxPerSec > 0
}

// SleepDuration returns SleepSeconds as a time.Duration.
func (r RateLimit) SleepDuration() time.Duration {
	return time.Duration(r.SleepSeconds * float64(time.Second))
}

// Retry declares the retry policy for a single request execution.
type Retry struct {
	// MaxAttempts is the total number of attempts, the first included.
	// Values below 1 are normalized to 1 (no retries).
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts"`

	// Backoff is the base delay in seconds for exponential backoff: the
	// delay before attempt n+1 is Backoff * 2^(n-1).
	Backoff float64 `mapstructure:"backoff" yaml:"backoff"`

	// RetryNetworkErrors enables retries for network-level failures in
	// addition to retryable HTTP statuses (5xx and 429).
	RetryNetworkErrors bool `mapstructure:"retry_network_errors" yaml:"retry_network_errors"`
}

// DefaultRetry returns the policy used when no retry block is configured:
// a single attempt with a one-second backoff base.
func DefaultRetry() Retry {
	return Retry{MaxAttempts: 1, Backoff: 1}
}

// Normalized returns a copy with out-of-range fields clamped to defaults.
func (r Retry) Normalized() Retry {
	if r.MaxAttempts < 1 {
		r.MaxAttempts = 1
	}
	if r.Backoff <= 0 {
		r.Backoff = 1
	}
	return r
}

// BackoffDuration returns the base backoff as a time.Duration.
func (r Retry) BackoffDuration() time.Duration {
	return time.Duration(r.Backoff * float64(time.Second))
}

// DecodePagination decodes a loosely typed configuration map into a
// Pagination. Unknown keys are ignored and scalar types are coerced
// leniently (e.g. "100" decodes into an int field).
func DecodePagination(raw map[string]any) (Pagination, error) {
	var cfg Pagination
	if err := decode(raw, &cfg); err != nil {
		return Pagination{}, fmt.Errorf("decode pagination config: %w", err)
	}
	return cfg, nil
}

// DecodeRateLimit decodes a loosely typed configuration map into a RateLimit.
func DecodeRateLimit(raw map[string]any) (RateLimit, error) {
	var cfg RateLimit
	if err := decode(raw, &cfg); err != nil {
		return RateLimit{}, fmt.Errorf("decode rate limit config: %w", err)
	}
	return cfg, nil
}

// DecodeRetry decodes a loosely typed configuration map into a Retry.
func DecodeRetry(raw map[string]any) (Retry, error) {
	var cfg Retry
	if err := decode(raw, &cfg); err != nil {
		return Retry{}, fmt.Errorf("decode retry config: %w", err)
	}
	return cfg, nil
}

func decode(raw map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}
