// Package ratelimit provides a fixed-window request limiter backed by Redis.
package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "rate_limit:"

// Counter increments a windowed counter and returns the new count. The
// implementation must reset the counter when the window expires.
type Counter interface {
	IncrWithExpire(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisCounter implements Counter on a Redis client using INCR + EXPIRE in a
// transactional pipeline.
type RedisCounter struct {
	client *redis.Client
}

// NewRedisCounter returns a Counter backed by the given Redis client.
func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

func (c *RedisCounter) IncrWithExpire(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incrCmd := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incrCmd.Val(), nil
}

// Dial connects to Redis at the given URL (redis:// or rediss://) and verifies
// connectivity. Caller must call Close on the returned client when done.
func Dial(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// Limiter caps the number of requests per key within a fixed window.
type Limiter struct {
	counter Counter
	limit   int
	window  time.Duration
}

// NewLimiter returns a Limiter allowing limit requests per window per key.
// A nil Limiter allows everything; callers may keep a nil pointer when rate
// limiting is disabled.
func NewLimiter(counter Counter, limit int, window time.Duration) *Limiter {
	return &Limiter{counter: counter, limit: limit, window: window}
}

// Allow reports whether the request identified by key fits within the window.
// The first limit requests in a window pass; the rest are rejected until the
// window rolls over.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	if l == nil || l.counter == nil || l.limit <= 0 {
		return true, nil
	}
	n, err := l.counter.IncrWithExpire(ctx, keyPrefix+key, l.window)
	if err != nil {
		return false, err
	}
	return n <= int64(l.limit), nil
}
