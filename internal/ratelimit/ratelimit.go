// Package ratelimit implements a per-client request counter stored in Redis.
//
// The counter expiry is reset to the full window on every accepted request,
// so a client that keeps submitting stays limited until it goes quiet for a
// whole window. Concurrent requests from one client may read the same count;
// that race is tolerated.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:"

// Limiter allows up to Limit requests per client within Window.
type Limiter struct {
	rdb    redis.Cmdable
	limit  int
	window time.Duration
}

// New constructs a Limiter.
func New(rdb redis.Cmdable, limit int, window time.Duration) *Limiter {
	return &Limiter{rdb: rdb, limit: limit, window: window}
}

// Allow records a request from clientKey and reports whether it may proceed.
// Rejected requests are not counted.
func (l *Limiter) Allow(ctx context.Context, clientKey string) (bool, error) {
	key := keyPrefix + clientKey

	count, err := l.rdb.Get(ctx, key).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("read rate counter: %w", err)
	}
	if count >= l.limit {
		return false, nil
	}

	if err := l.rdb.Set(ctx, key, count+1, l.window).Err(); err != nil {
		return false, fmt.Errorf("write rate counter: %w", err)
	}
	return true, nil
}
