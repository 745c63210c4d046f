package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pagepull/pagepull/pkg/config"
)

// scriptedOp returns responses/errors in sequence.
func scriptedOp(outcomes []attemptOutcome) (func() (*Response, error), *int) {
	calls := 0
	return func() (*Response, error) {
		out := outcomes[calls]
		calls++
		return out.resp, out.err
	}, &calls
}

func recordingSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestRetrySucceedsAfterServerErrors(t *testing.T) {
	// 503, 503, 200 with max_attempts=3: exactly 3 attempts, backoff
	// delays of base*1 and base*2, no error surfaced.
	op, calls := scriptedOp([]attemptOutcome{
		{resp: &Response{StatusCode: 503}},
		{resp: &Response{StatusCode: 503}},
		{resp: &Response{StatusCode: 200, Body: []byte(`{}`)}},
	})
	var delays []time.Duration

	policy := config.Retry{MaxAttempts: 3, Backoff: 2}
	resp, attempts, err := retryWithBackoff(context.Background(), policy, zerolog.Nop(), recordingSleep(&delays), op)
	if err != nil {
		t.Fatalf("retryWithBackoff() error = %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if attempts != 3 || *calls != 3 {
		t.Errorf("attempts = %d (calls %d), want 3", attempts, *calls)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, delays[i], want[i])
		}
	}
}

func TestRetryNonRetryableFailsImmediately(t *testing.T) {
	// A 404 consumes exactly one attempt and incurs no backoff delay.
	op, calls := scriptedOp([]attemptOutcome{
		{resp: &Response{StatusCode: 404}},
	})
	var delays []time.Duration

	policy := config.Retry{MaxAttempts: 3, Backoff: 1}
	resp, attempts, err := retryWithBackoff(context.Background(), policy, zerolog.Nop(), recordingSleep(&delays), op)
	if err == nil {
		t.Fatal("retryWithBackoff() = nil error, want failure")
	}
	if errors.Is(err, ErrRetryExhausted) {
		t.Error("404 must not be reported as retry exhaustion")
	}
	if attempts != 1 || *calls != 1 {
		t.Errorf("attempts = %d (calls %d), want 1", attempts, *calls)
	}
	if len(delays) != 0 {
		t.Errorf("delays = %v, want none", delays)
	}
	if resp == nil || resp.StatusCode != 404 {
		t.Errorf("resp = %+v, want the 404 response", resp)
	}
}

func TestRetry429IsRetryable(t *testing.T) {
	op, calls := scriptedOp([]attemptOutcome{
		{resp: &Response{StatusCode: 429}},
		{resp: &Response{StatusCode: 200, Body: []byte(`{}`)}},
	})
	var delays []time.Duration

	policy := config.Retry{MaxAttempts: 2, Backoff: 1}
	_, attempts, err := retryWithBackoff(context.Background(), policy, zerolog.Nop(), recordingSleep(&delays), op)
	if err != nil {
		t.Fatalf("retryWithBackoff() error = %v", err)
	}
	if attempts != 2 || *calls != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestRetryNetworkErrorsFlag(t *testing.T) {
	netErr := &NetworkError{URL: "http://x", Err: errors.New("connection refused")}

	t.Run("disabled", func(t *testing.T) {
		op, calls := scriptedOp([]attemptOutcome{{err: netErr}})
		var delays []time.Duration
		_, attempts, err := retryWithBackoff(context.Background(),
			config.Retry{MaxAttempts: 3, Backoff: 1}, zerolog.Nop(), recordingSleep(&delays), op)
		if err == nil {
			t.Fatal("want error")
		}
		if attempts != 1 || *calls != 1 {
			t.Errorf("attempts = %d, want 1 when network retries are disabled", attempts)
		}
	})

	t.Run("enabled", func(t *testing.T) {
		op, calls := scriptedOp([]attemptOutcome{
			{err: netErr},
			{resp: &Response{StatusCode: 200, Body: []byte(`{}`)}},
		})
		var delays []time.Duration
		_, attempts, err := retryWithBackoff(context.Background(),
			config.Retry{MaxAttempts: 3, Backoff: 1, RetryNetworkErrors: true}, zerolog.Nop(), recordingSleep(&delays), op)
		if err != nil {
			t.Fatalf("retryWithBackoff() error = %v", err)
		}
		if attempts != 2 || *calls != 2 {
			t.Errorf("attempts = %d, want 2 when network retries are enabled", attempts)
		}
	})
}

func TestRetryExhaustion(t *testing.T) {
	op, calls := scriptedOp([]attemptOutcome{
		{resp: &Response{StatusCode: 500}},
		{resp: &Response{StatusCode: 502}},
		{resp: &Response{StatusCode: 503}},
	})
	var delays []time.Duration

	policy := config.Retry{MaxAttempts: 3, Backoff: 1}
	resp, attempts, err := retryWithBackoff(context.Background(), policy, zerolog.Nop(), recordingSleep(&delays), op)
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("error = %v, want ErrRetryExhausted", err)
	}
	if attempts != 3 || *calls != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if resp == nil || resp.StatusCode != 503 {
		t.Errorf("resp = %+v, want last 503 response", resp)
	}
	if len(delays) != 2 {
		t.Errorf("delays = %v, want 2 (no delay after the final attempt)", delays)
	}
}

func TestBackoffDelayDoubles(t *testing.T) {
	base := 500 * time.Millisecond
	want := []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second, 4 * time.Second}
	for i, expected := range want {
		if got := backoffDelay(base, i+1); got != expected {
			t.Errorf("backoffDelay(attempt %d) = %v, want %v", i+1, got, expected)
		}
	}
}

func TestRetryBackoffCancellable(t *testing.T) {
	op, _ := scriptedOp([]attemptOutcome{
		{resp: &Response{StatusCode: 503}},
		{resp: &Response{StatusCode: 503}},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	policy := config.Retry{MaxAttempts: 2, Backoff: 60}
	_, _, err := retryWithBackoff(ctx, policy, zerolog.Nop(), sleepContext, op)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled from interrupted backoff", err)
	}
}
