//go:build integration

package ratelimit

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client
func setupRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to ping Redis: %v", err)
	}

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}
	return client, cleanup
}

func TestRedisWindowEnforcesSharedCap(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	const max = 3
	const requests = 9

	// Two limiters sharing one key, as two processes would.
	limiterA := NewRedisWindow(client, "pagepull:test:window", max, zerolog.Nop())
	limiterB := NewRedisWindow(client, "pagepull:test:window", max, zerolog.Nop())

	ctx := context.Background()
	var issued []time.Time
	for i := 0; i < requests; i++ {
		limiter := limiterA
		if i%2 == 1 {
			limiter = limiterB
		}
		if err := limiter.Wait(ctx); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
		issued = append(issued, time.Now())
	}

	for i := range issued {
		count := 1
		for j := i + 1; j < len(issued); j++ {
			if issued[j].Sub(issued[i]) < time.Second {
				count++
			}
		}
		// Allow one extra for clock skew between Wait returning and the
		// timestamp being taken.
		if count > max+1 {
			t.Fatalf("window starting at %v contains %d requests, cap is %d", issued[i], count, max)
		}
	}

	// 9 requests at 3/s should take at least 2 seconds end to end.
	if elapsed := issued[len(issued)-1].Sub(issued[0]); elapsed < 1500*time.Millisecond {
		t.Errorf("9 requests completed in %v, expected throttling to stretch them past 1.5s", elapsed)
	}
}

// TestRedisWindowConcurrentAdmission races goroutines across two limiters
// sharing one key and verifies on the Redis side that the in-window entry
// count never exceeds the cap: check-and-add must be one atomic step, or
// two racers can both take the same free slot.
func TestRedisWindowConcurrentAdmission(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	const max = 2
	const key = "pagepull:test:concurrent"

	limiterA := NewRedisWindow(client, key, max, zerolog.Nop())
	limiterB := NewRedisWindow(client, key, max, zerolog.Nop())

	ctx := context.Background()
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	violations := make(chan int64, 8)

	for i := 0; i < 4; i++ {
		limiter := limiterA
		if i%2 == 1 {
			limiter = limiterB
		}
		wg.Add(1)
		go func(l *RedisWindow) {
			defer wg.Done()
			for j := 0; j < 2; j++ {
				if err := l.Wait(ctx); err != nil {
					errs <- err
					return
				}
				cutoff := time.Now().Add(-time.Second).UnixNano()
				count, err := client.ZCount(ctx, key,
					strconv.FormatInt(cutoff, 10), "+inf").Result()
				if err != nil {
					errs <- err
					return
				}
				if count > max {
					violations <- count
				}
			}
		}(limiter)
	}
	wg.Wait()
	close(errs)
	close(violations)

	for err := range errs {
		t.Fatalf("Wait() error = %v", err)
	}
	for count := range violations {
		t.Errorf("window held %d entries, cap is %d", count, max)
	}
}

func TestRedisWindowCancellation(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	limiter := NewRedisWindow(client, "pagepull:test:cancel", 1, zerolog.Nop())

	ctx := context.Background()
	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("first Wait() error = %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := limiter.Wait(cancelled); err == nil {
		t.Error("Wait() with cancelled context = nil, want error")
	}
}
