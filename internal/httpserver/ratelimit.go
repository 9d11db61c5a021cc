package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter decides whether key may make another request in the current
// window.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisLimiter is a fixed-window counter per key kept in Redis.
type RedisLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

// NewRedisLimiter allows limit requests per key in each window.
func NewRedisLimiter(client *redis.Client, limit int64, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window}
}

// Allow increments the key's counter and reports whether it is still within
// the limit. The expiry is only set on the first hit of a window.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := "novelle:rl:" + key
	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.ExpireNX(ctx, k, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return incr.Val() <= l.limit, nil
}

// limitViewer throttles authenticated writes per viewer. A failing limiter
// lets the request through.
func limitViewer(limiter RateLimiter, logger *slog.Logger, next http.HandlerFunc) http.HandlerFunc {
	if limiter == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		viewer := viewerFrom(r.Context())
		allowed, err := limiter.Allow(r.Context(), viewer)
		if err != nil {
			logger.Warn("rate limiter unavailable, allowing request", "viewer", viewer, "error", err)
			next(w, r)
			return
		}
		if !allowed {
			writeError(w, http.StatusTooManyRequests, "RateLimited", "too many requests, slow down")
			return
		}
		next(w, r)
	}
}
