package client

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/pagepull/pagepull/pkg/config"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagepull_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pagepull_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagepull_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// attemptOutcome captures one execution attempt for classification.
type attemptOutcome struct {
	resp  *Response
	class ErrorClass
	err   error
}

// retryWithBackoff wraps one request execution with bounded retries and
// exponential backoff. The first attempt is attempt 1 and runs
// immediately; the delay before attempt n+1 is backoff * 2^(n-1). 5xx and
// 429 statuses are always retryable, other 4xx never, and network-level
// failures only when the policy enables it. A non-retryable failure
// returns immediately without consuming the remaining attempts.
//
// It returns the successful response, the number of attempts consumed, and
// the terminal outcome of the last attempt on failure.
func retryWithBackoff(ctx context.Context, policy config.Retry, logger zerolog.Logger, sleep func(context.Context, time.Duration) error, op func() (*Response, error)) (*Response, int, error) {
	policy = policy.Normalized()

	var last attemptOutcome
	for attempt := 1; ; attempt++ {
		resp, err := op()

		switch {
		case err != nil:
			last = attemptOutcome{resp: nil, class: ErrorClassNetwork, err: err}
		case resp.StatusCode >= 400:
			class := classifyStatus(resp.StatusCode)
			last = attemptOutcome{
				resp:  resp,
				class: class,
				err:   fmt.Errorf("http status %d", resp.StatusCode),
			}
		default:
			if attempt > 1 {
				logger.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return resp, attempt, nil
		}

		if !retryable(last.class, policy.RetryNetworkErrors) {
			logger.Debug().
				Str("error_class", string(last.class)).
				Int("attempt", attempt).
				Msg("Failure is not retryable")
			return last.resp, attempt, last.err
		}

		if attempt >= policy.MaxAttempts {
			retryExhaustedTotal.WithLabelValues(string(last.class)).Inc()
			logger.Warn().
				Str("error_class", string(last.class)).
				Int("max_attempts", policy.MaxAttempts).
				Msg("Retry attempts exhausted")
			return last.resp, attempt, fmt.Errorf("%w after %d attempts: %v", ErrRetryExhausted, attempt, last.err)
		}

		delay := backoffDelay(policy.BackoffDuration(), attempt)
		retriesTotal.WithLabelValues(string(last.class)).Inc()
		retryBackoffSeconds.WithLabelValues(string(last.class)).Observe(delay.Seconds())

		logger.Debug().
			Str("error_class", string(last.class)).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("Retrying request after backoff")

		if err := sleep(ctx, delay); err != nil {
			return last.resp, attempt, fmt.Errorf("retry backoff interrupted: %w", err)
		}
	}
}

// backoffDelay returns base * 2^(attempt-1): the delay preceding the
// attempt after the given one.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(1<<(attempt-1))
}

// sleepContext sleeps for d, returning early if ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
