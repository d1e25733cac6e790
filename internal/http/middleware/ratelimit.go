// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements per-identity rate limiting. Two limiters are provided:
//
//   - LocalLimiter: in-memory token buckets (golang.org/x/time/rate) with
//     opportunistic eviction of idle buckets. Suitable for a single instance.
//   - RedisLimiter: a fixed one-second window counter in Redis shared by every
//     API instance.
//
// Both plug into RateLimit, which keys requests by the resolved user (falling
// back to the client IP) and lets idempotent replays through without spending
// a token.
package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limiter decides whether one more request for key is allowed now.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// keyFunc selects the identity used to key a rate-limit bucket.
type keyFunc func(*gin.Context) string

// KeyByUserOrIP prefers the resolved user ID and falls back to the client IP.
// Keys are namespaced ("user:abc123" vs "ip:203.0.113.7").
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if s := userIDFromCtx(c); s != "" {
			return "user:" + s
		}
		return "ip:" + c.ClientIP()
	}
}

// visitor holds a single token bucket and the last time it was used.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LocalLimiter is a process-local token-bucket Limiter. It is safe for
// concurrent use.
type LocalLimiter struct {
	rps      rate.Limit
	burst    int
	mu       sync.Mutex
	visitors map[string]*visitor

	ttl      time.Duration
	cleanupN uint64
}

// NewLocalLimiter returns a limiter refilling rps tokens per second with the
// given burst; burst values <= 0 are coerced to 1.
func NewLocalLimiter(rps float64, burst int) *LocalLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &LocalLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute,
	}
}

// Allow implements Limiter.
func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, error) {
	return l.getVisitor(key).Allow(), nil
}

// getVisitor returns the bucket for key, creating it if absent. Every 5000
// lookups idle buckets are evicted first, so a stale bucket is replaced even
// when it is the one being fetched.
func (l *LocalLimiter) getVisitor(key string) *rate.Limiter {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.cleanupN++
	if l.cleanupN >= 5000 {
		for k, vv := range l.visitors {
			if now.Sub(vv.lastSeen) >= l.ttl {
				delete(l.visitors, k)
			}
		}
		l.cleanupN = 0
	}

	if v, ok := l.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(l.rps, l.burst)
	l.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// RedisLimiter allows up to limit requests per key per second across all
// instances sharing client.
type RedisLimiter struct {
	client redis.UniversalClient
	prefix string
	limit  int64
}

// NewRedisLimiter returns a shared limiter. The per-second allowance is
// rps+burst so short bursts behave like the local token bucket.
func NewRedisLimiter(client redis.UniversalClient, prefix string, rps float64, burst int) *RedisLimiter {
	limit := int64(rps) + int64(burst)
	if limit < 1 {
		limit = 1
	}
	return &RedisLimiter{client: client, prefix: prefix, limit: limit}
}

// Allow implements Limiter.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	window := time.Now().Unix()
	k := l.prefix + ":" + key + ":" + strconv.FormatInt(window, 10)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, 2*time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return incr.Val() <= l.limit, nil
}

// IsRateBypass reports whether IdempotencyValidator marked this request as a
// replay, which is served without spending a token.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// RateLimit enforces l per key. A limiter error fails open and is logged.
//
// Rejections look like:
//
//	HTTP/1.1 429 Too Many Requests
//	Retry-After: 1
//	{"request_id": "<uuid>", "code": "rate_limited", "message": "rate limit exceeded"}
func RateLimit(l Limiter, keyFn keyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		allowed, err := l.Allow(c.Request.Context(), keyFn(c))
		if err != nil {
			LoggerFrom(c).Warn().Err(err).Msg("rate limiter unavailable")
			c.Next()
			return
		}
		if allowed {
			c.Next()
			return
		}

		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}
