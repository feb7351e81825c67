// Package ratelimit throttles public contact-form submissions per client IP
// using a Redis fixed window.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter counts submissions per key inside a fixed window. The count is a
// single atomic INCR so concurrent submissions from one IP are never
// undercounted.
type Limiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

// NewLimiter connects to Redis and verifies the connection.
func NewLimiter(redisURL string, limit int, window time.Duration) (*Limiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewLimiterWithClient(client, limit, window), nil
}

// NewLimiterWithClient builds a limiter from an existing Redis client.
func NewLimiterWithClient(client *redis.Client, limit int, window time.Duration) *Limiter {
	return &Limiter{
		client: client,
		prefix: "contact:",
		limit:  limit,
		window: window,
	}
}

// Allow records one submission for key and reports whether it is within
// the window's budget. The window starts at the first submission.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := l.prefix + key
	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("increment rate counter: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return false, fmt.Errorf("set rate window: %w", err)
		}
	}
	return count <= int64(l.limit), nil
}

// Close closes the Redis connection.
func (l *Limiter) Close() error {
	return l.client.Close()
}
