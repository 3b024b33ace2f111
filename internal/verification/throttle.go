package verification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Throttle limits how often codes can be issued for one identity. Resend and
// first issue share the same budget.
type Throttle interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// InMemoryThrottle is a per-key sliding window. Single-instance only; use
// RedisThrottle when running more than one replica.
type InMemoryThrottle struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	windows map[string][]time.Time
}

// NewInMemoryThrottle creates a sliding-window throttle allowing limit issues
// per window per key.
func NewInMemoryThrottle(limit int, window time.Duration) *InMemoryThrottle {
	return &InMemoryThrottle{
		limit:   limit,
		window:  window,
		windows: make(map[string][]time.Time),
	}
}

func (t *InMemoryThrottle) Allow(ctx context.Context, key string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-t.window)
	stamps := t.windows[key]
	i := 0
	for ; i < len(stamps); i++ {
		if stamps[i].After(cutoff) {
			break
		}
	}
	stamps = stamps[i:]

	if len(stamps) >= t.limit {
		t.windows[key] = stamps
		return false, nil
	}
	t.windows[key] = append(stamps, now)
	return true, nil
}

// RedisThrottle is a fixed-window counter shared across instances.
type RedisThrottle struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewRedisThrottle creates a Redis-backed issue throttle.
func NewRedisThrottle(client *redis.Client, limit int, window time.Duration) *RedisThrottle {
	return &RedisThrottle{client: client, limit: limit, window: window}
}

func (t *RedisThrottle) Allow(ctx context.Context, key string) (bool, error) {
	k := "gatepass:throttle:" + key

	pipe := t.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.ExpireNX(ctx, k, t.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("throttle check: %w", err)
	}
	return incr.Val() <= int64(t.limit), nil
}
