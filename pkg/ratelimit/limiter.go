// Package ratelimit throttles outbound requests to honor provider rate
// limits. Two modes are supported: a fixed sleep between consecutive
// requests, and a sliding one-second window capping requests per second.
//
// Limiter state is shared by every extraction using the same instance, so
// all bookkeeping is serialized under a mutex: the window's correctness
// depends on a consistent view of requests issued so far.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/pagepull/pagepull/pkg/config"
)

// Prometheus metrics for throttling.
var (
	throttleWaitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagepull_throttle_waits_total",
		Help: "Total number of requests delayed by the rate limiter, by mode",
	}, []string{"mode"})

	throttleWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pagepull_throttle_wait_seconds",
		Help:    "Time spent waiting on the rate limiter, by mode",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"mode"})
)

// Limiter gates outbound requests. Wait blocks until the next request may
// be issued or the context is cancelled.
type Limiter interface {
	Wait(ctx context.Context) error
}

// NewLimiter builds a Limiter for the given configuration. With no
// throttling configured the returned limiter is a no-op. When both modes
// are set, the sliding window takes precedence.
func NewLimiter(cfg config.RateLimit, logger zerolog.Logger) Limiter {
	switch {
	case cfg.MaxPerSec > 0:
		return newWindowLimiter(cfg.MaxPerSec, logger)
	case cfg.SleepSeconds > 0:
		return &sleepLimiter{
			delay:  cfg.SleepDuration(),
			logger: logger,
			sleep:  sleepContext,
		}
	default:
		return noopLimiter{}
	}
}

type noopLimiter struct{}

func (noopLimiter) Wait(context.Context) error { return nil }

// sleepLimiter sleeps a fixed duration before each request after the first.
type sleepLimiter struct {
	mu      sync.Mutex
	delay   time.Duration
	started bool
	logger  zerolog.Logger
	sleep   func(context.Context, time.Duration) error
}

func (l *sleepLimiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.started {
		l.started = true
		return nil
	}

	throttleWaitsTotal.WithLabelValues("sleep").Inc()
	throttleWaitSeconds.WithLabelValues("sleep").Observe(l.delay.Seconds())
	l.logger.Debug().
		Dur("delay", l.delay).
		Msg("Sleeping between requests")
	return l.sleep(ctx, l.delay)
}

// windowLimiter enforces a sliding one-second window of at most max request
// timestamps. The window is a bounded ring: it never holds more than max
// entries, so memory stays fixed regardless of run length.
type windowLimiter struct {
	mu     sync.Mutex
	max    int
	window []time.Time
	logger zerolog.Logger
	now    func() time.Time
	sleep  func(context.Context, time.Duration) error
}

func newWindowLimiter(maxPerSec int, logger zerolog.Logger) *windowLimiter {
	return &windowLimiter{
		max:    maxPerSec,
		window: make([]time.Time, 0, maxPerSec),
		logger: logger,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

func (l *windowLimiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delay := windowDelay(l.now(), l.window, l.max)
	if delay > 0 {
		throttleWaitsTotal.WithLabelValues("window").Inc()
		throttleWaitSeconds.WithLabelValues("window").Observe(delay.Seconds())
		l.logger.Debug().
			Dur("delay", delay).
			Int("max_per_sec", l.max).
			Msg("Throttling to stay within window")
		if err := l.sleep(ctx, delay); err != nil {
			return err
		}
	}

	l.record(l.now())
	return nil
}

// record appends a request timestamp, evicting the oldest entry once the
// ring holds max timestamps.
func (l *windowLimiter) record(t time.Time) {
	if len(l.window) == l.max {
		copy(l.window, l.window[1:])
		l.window = l.window[:l.max-1]
	}
	l.window = append(l.window, t)
}

// windowDelay computes how long a request at time now must wait so that no
// more than max requests fall within any trailing one-second window, given
// the timestamps of requests already issued (oldest first). It is a pure
// function of its inputs so the throttle math is testable without clocks.
func windowDelay(now time.Time, window []time.Time, max int) time.Duration {
	if max <= 0 || len(window) < max {
		return 0
	}
	// The request max slots back must have left the window before this
	// one may proceed.
	earliest := window[len(window)-max]
	delay := earliest.Add(time.Second).Sub(now)
	if delay < 0 {
		return 0
	}
	return delay
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
