package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/mselim/campaign-gateway/pkg/redis"
)

// Limiter enforces a per-key send budget over a rolling window. The counter
// lives in redis so every process sending on behalf of the same messaging
// identity draws from one shared budget.
type Limiter struct {
	adapter redis.RedisAdapter
	key     string
	limit   int64
	window  time.Duration
}

type Config struct {
	Key    string
	Limit  int64
	Window time.Duration
}

func New(adapter redis.RedisAdapter, cfg Config) (*Limiter, error) {
	if cfg.Key == "" {
		return nil, fmt.Errorf("rate limit key is required")
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 30
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &Limiter{
		adapter: adapter,
		key:     "ratelimit:" + cfg.Key,
		limit:   cfg.Limit,
		window:  cfg.Window,
	}, nil
}

// Allow consumes one token. When the budget is exhausted it returns false
// together with the time until the current window expires.
func (l *Limiter) Allow() (bool, time.Duration, error) {
	n, err := l.adapter.Incr(l.key)
	if err != nil {
		return false, 0, fmt.Errorf("rate limit incr: %w", err)
	}

	if n == 1 {
		if _, err := l.adapter.Expire(l.key, l.window); err != nil {
			return false, 0, fmt.Errorf("rate limit expire: %w", err)
		}
	}

	if n <= l.limit {
		return true, 0, nil
	}

	ttl, err := l.adapter.PTTL(l.key)
	if err != nil || ttl <= 0 {
		// Counter without a TTL would block forever; reset it.
		_ = l.adapter.Del(l.key)
		ttl = l.window
	}
	return false, ttl, nil
}

// Wait blocks until a token is available or the context is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		allowed, retryIn, err := l.Allow()
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryIn):
		}
	}
}
