package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/raphaelgruber/chatblocks/internal/auth"
	"github.com/raphaelgruber/chatblocks/internal/metrics"
)

// RateLimiter is a fixed-window limiter backed by Redis. Counters are keyed
// by user when the request is authenticated and by client IP otherwise.
type RateLimiter struct {
	client   redis.Cmdable
	requests int
	window   time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewRateLimiter allows requests per window for each caller.
func NewRateLimiter(client redis.Cmdable, requests int, window time.Duration, logger *slog.Logger) *RateLimiter {
	// Buckets are whole seconds.
	window = max(window.Truncate(time.Second), time.Second)
	if logger == nil {
		logger = slog.Default()
	}
	return &RateLimiter{client: client, requests: requests, window: window, logger: logger, now: time.Now}
}

// Allow counts one request for key. It returns whether the request is
// within the limit, how many remain and when the window resets. Redis
// failures let the request through.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, int, time.Time) {
	now := rl.now()
	bucket := now.Unix() / int64(rl.window.Seconds())
	resetAt := time.Unix((bucket+1)*int64(rl.window.Seconds()), 0)
	windowKey := fmt.Sprintf("%s:%d", key, bucket)

	pipe := rl.client.TxPipeline()
	incr := pipe.Incr(ctx, windowKey)
	pipe.Expire(ctx, windowKey, rl.window*2)
	if _, err := pipe.Exec(ctx); err != nil {
		rl.logger.Warn("rate limiter unavailable, allowing request", "error", err)
		return true, rl.requests, resetAt
	}

	count := int(incr.Val())
	remaining := max(rl.requests-count, 0)
	return count <= rl.requests, remaining, resetAt
}

// Middleware enforces the limit on the wrapped routes, labelling hits with
// endpoint.
func (rl *RateLimiter) Middleware(endpoint string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ratelimit:" + endpoint + ":" + callerKey(r)
			allowed, remaining, resetAt := rl.Allow(r.Context(), key)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.requests))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

			if !allowed {
				metrics.RateLimitHits.WithLabelValues(endpoint).Inc()
				rl.logger.Warn("rate limit exceeded", "endpoint", endpoint, "key", key)
				w.Header().Set("Retry-After", strconv.Itoa(max(int(time.Until(resetAt).Seconds()), 1)))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func callerKey(r *http.Request) string {
	if userID, ok := auth.UserFromContext(r.Context()); ok {
		return "user:" + userID
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	return "ip:" + ip
}
