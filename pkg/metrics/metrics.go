// Package metrics provides the centralized Prometheus metrics registry for
// the extraction engine. All metrics are defined in their respective
// packages (client, ratelimit) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the extraction engine.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Throttle Metrics (pkg/ratelimit):
//   - pagepull_throttle_waits_total{mode} (Counter): Throttle waits by mode (sleep, window, redis_window)
//   - pagepull_throttle_wait_seconds{mode} (Histogram): Time spent waiting on the throttle
//
// Request Metrics (pkg/client):
//   - pagepull_requests_total{endpoint, status} (Counter): Total requests by endpoint and HTTP status
//     (status "network_error" for requests that never reached the server)
//   - pagepull_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - pagepull_pages_total{endpoint} (Counter): Pages successfully extracted by endpoint
//   - pagepull_records_extracted_total{endpoint} (Counter): Records extracted by endpoint
//   - pagepull_errors_total{kind} (Counter): Terminal extraction errors by taxonomy kind
//     (api_request_error, api_auth_error, pagination_error, configuration_error)
//
// Retry Metrics (pkg/client):
//   - pagepull_retries_total{error_class} (Counter): Retry attempts by error class
//   - pagepull_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - pagepull_retry_exhausted_total{error_class} (Counter): Requests that exhausted max attempts
//
// Example Prometheus Queries:
//
//   # Records per second by endpoint
//   rate(pagepull_records_extracted_total[5m])
//
//   # Request Error Rate
//   sum(rate(pagepull_errors_total[5m]))
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(pagepull_request_duration_seconds_bucket[5m]))
//
//   # Retry Pressure
//   rate(pagepull_retries_total[5m]) / rate(pagepull_requests_total[5m])
