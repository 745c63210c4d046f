package ratelimit

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// redisWindowTTL bounds how long window entries survive in Redis after the
// last request, so abandoned keys do not linger.
const redisWindowTTL = 5 * time.Second

// windowScript prunes expired entries, then checks and records a request in
// one atomic step, so two processes sharing a key cannot both slip through
// the same free slot. Returns -1 when the request was admitted, otherwise
// the score of the oldest entry still in the window (or '0' if the window
// emptied between calls).
var windowScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '0', ARGV[1])
local count = redis.call('ZCARD', KEYS[1])
if count < tonumber(ARGV[2]) then
	redis.call('ZADD', KEYS[1], ARGV[3], ARGV[4])
	redis.call('PEXPIRE', KEYS[1], ARGV[5])
	return -1
end
local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
if oldest[2] then
	return oldest[2]
end
return '0'
`)

// RedisWindow is a sliding-window limiter whose window lives in a Redis
// sorted set, letting a fleet of extractor processes share one provider
// quota. Within a single process the in-memory windowLimiter is cheaper;
// use RedisWindow only when several processes hit the same provider.
type RedisWindow struct {
	rdb    *redis.Client
	key    string
	max    int
	seq    atomic.Uint64
	logger zerolog.Logger
	now    func() time.Time
	sleep  func(context.Context, time.Duration) error
}

// NewRedisWindow creates a Redis-backed sliding-window limiter. All
// processes sharing the same key share the same maxPerSec budget.
func NewRedisWindow(rdb *redis.Client, key string, maxPerSec int, logger zerolog.Logger) *RedisWindow {
	return &RedisWindow{
		rdb:    rdb,
		key:    key,
		max:    maxPerSec,
		logger: logger,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// Wait blocks until a request may be issued without exceeding maxPerSec
// requests in the trailing one-second window across all sharers of the key.
func (w *RedisWindow) Wait(ctx context.Context) error {
	for {
		now := w.now()
		cutoff := now.Add(-time.Second)

		// Sequence suffix keeps members unique when two requests land on
		// the same nanosecond.
		member := strconv.FormatInt(now.UnixNano(), 10) + "-" + strconv.FormatUint(w.seq.Add(1), 10)

		res, err := windowScript.Run(ctx, w.rdb, []string{w.key},
			cutoff.UnixNano(),
			w.max,
			now.UnixNano(),
			member,
			redisWindowTTL.Milliseconds(),
		).Result()
		if err != nil {
			return err
		}

		if admitted, ok := res.(int64); ok && admitted < 0 {
			return nil
		}

		// Window is full; wait for the oldest entry to expire out of it.
		delay := 50 * time.Millisecond
		if raw, ok := res.(string); ok {
			if score, err := strconv.ParseFloat(raw, 64); err == nil && score > 0 {
				expiresAt := time.Unix(0, int64(score)).Add(time.Second)
				if d := expiresAt.Sub(now); d > delay {
					delay = d
				}
			}
		}

		throttleWaitsTotal.WithLabelValues("redis_window").Inc()
		throttleWaitSeconds.WithLabelValues("redis_window").Observe(delay.Seconds())
		w.logger.Debug().
			Dur("delay", delay).
			Str("key", w.key).
			Msg("Shared window full, waiting")

		if err := w.sleep(ctx, delay); err != nil {
			return err
		}
	}
}
