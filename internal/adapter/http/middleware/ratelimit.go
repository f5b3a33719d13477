package middleware

import (
	"strconv"
	"time"

	"acoruss-gateway/internal/core/ports"
	"acoruss-gateway/pkg/apperror"
	"acoruss-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	// DefaultRateLimitWindow and DefaultRateLimitMax are the §6 defaults;
	// config overrides these per deployment.
	DefaultRateLimitWindow = 60 * time.Second
	DefaultRateLimitMax    = 60
)

// RateLimiter creates a sliding-window rate-limiting middleware backed by
// ports.RateLimiter (C5), keyed by the authenticated tenant's API key.
func RateLimiter(limiter ports.RateLimiter, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rateLimitKey(c)

		allowed, remaining, resetAt := limiter.Allow(key, limit, window)

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !allowed {
			retryAfter := int64(time.Until(resetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			response.Error(c, apperror.ErrRateLimitExceeded())
			c.Abort()
			return
		}

		c.Next()
	}
}

// rateLimitKey uses the full bearer API key when present, falling back to
// the client IP when no bearer key is sent. SetupRouter mounts the limiter
// only after BearerAuth on the /payments API group, so the verify and
// processor webhook routes are not rate limited. The
// key is never truncated here — shardedRateLimiter hashes it internally
// for shard selection, but a truncated prefix would let two tenants whose
// keys share a prefix collide onto the same limiter bucket.
func rateLimitKey(c *gin.Context) string {
	if apiKey := bearerToken(c.GetHeader(HeaderAPIKey)); apiKey != "" {
		return apiKey
	}
	return c.ClientIP()
}
