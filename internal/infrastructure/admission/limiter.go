// Package admission shields the store from overload: a per-identity rate
// limiter, a bounded concurrency gate, and an adaptive controller that
// resizes the gate from observed load.
package admission

import (
	"context"
	"fmt"
	"time"

	"github.com/glintdate/glint-backend/internal/config"
	"github.com/glintdate/glint-backend/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window counter in Redis, shared across engine
// instances: INCR the window key, set the expiry on first hit.
type RateLimiter struct {
	rdb    *redis.Client
	max    int64
	window time.Duration
}

func NewRateLimiter(rdb *redis.Client, cfg config.AdmissionConfig) *RateLimiter {
	return &RateLimiter{rdb: rdb, max: cfg.RateLimitMax, window: cfg.RateLimitWindow}
}

// Allow counts a request against the identity's current window. On
// rejection retryAfter says when the window rolls over. Redis being down
// fails open: rate limiting is protection, not a dependency.
func (l *RateLimiter) Allow(ctx context.Context, identity string) (allowed bool, retryAfter time.Duration, err error) {
	key := fmt.Sprintf("glint:ratelimit:%s", identity)

	n, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return true, 0, err
	}
	if n == 1 {
		l.rdb.Expire(ctx, key, l.window)
	}
	if n <= l.max {
		return true, 0, nil
	}

	ttl, err := l.rdb.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		ttl = l.window
	}
	return false, ttl, domain.ErrRateLimited
}
