package middleware

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/redis/go-redis/v9"

	"github.com/texas38923/node-mongo-api/internal/utils"
)

const rateLimitPrefix = "rl:books"

// RateLimiter allows Limit requests per client IP in each fixed Window,
// counting in Redis so that several API processes share one budget.
type RateLimiter struct {
	Client *redis.Client
	Limit  int
	Window time.Duration

	now func() time.Time
}

func NewRateLimiter(client *redis.Client, limit int, window time.Duration) *RateLimiter {
	if limit < 1 {
		limit = 1
	}
	if window < time.Second {
		window = time.Second
	}
	return &RateLimiter{Client: client, Limit: limit, Window: window, now: time.Now}
}

// Middleware passes requests through untouched when no Redis client is set.
// Redis failures also let the request through.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	if l == nil || l.Client == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := l.now()
		windowSecs := int64(l.Window / time.Second)
		bucket := now.Unix() / windowSecs
		key := fmt.Sprintf("%s:%s:%d", rateLimitPrefix, clientIP(r), bucket)

		ctx := r.Context()
		pipe := l.Client.TxPipeline()
		incr := pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, l.Window)
		if _, err := pipe.Exec(ctx); err != nil {
			grip.Warning(message.WrapError(err, message.Fields{
				"message": "rate limiter unavailable, allowing request",
				"key":     key,
			}))
			next.ServeHTTP(w, r)
			return
		}

		count := incr.Val()
		remaining := int64(l.Limit) - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(l.Limit) {
			resetAt := time.Unix((bucket+1)*windowSecs, 0)
			secs := int(math.Ceil(resetAt.Sub(now).Seconds()))
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			utils.JSONError(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
	return host
}
