package middleware

import (
	"context"
	"net/http"
	"strconv"

	"pulse-chat/internal/metrics"
	"pulse-chat/internal/redis"
	"pulse-chat/internal/services"
	"pulse-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type limitFunc func(ctx context.Context, userID string) (*redis.RateLimitResult, error)

// MessageRateLimitMiddleware limits message sends per user.
// Should be applied to message endpoints after auth middleware
func MessageRateLimitMiddleware(limiter *redis.RateLimiter) gin.HandlerFunc {
	if limiter == nil {
		return passThrough
	}
	return userRateLimit("messages", "message rate limit exceeded", limiter.AllowMessage)
}

// CallRateLimitMiddleware limits call initiation per user.
// Should be applied to call initiation endpoints after auth middleware
func CallRateLimitMiddleware(limiter *redis.RateLimiter) gin.HandlerFunc {
	if limiter == nil {
		return passThrough
	}
	return userRateLimit("calls", "call rate limit exceeded", limiter.AllowCall)
}

func userRateLimit(endpoint, message string, allow limitFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := services.UserIDFromContext(c.Request.Context())
		if !ok {
			// No user context, skip rate limiting (auth middleware will handle)
			c.Next()
			return
		}

		result, err := allow(c.Request.Context(), userID.String())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse("rate limit unavailable", httpdto.CodeServiceUnavailable))
			c.Abort()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			metrics.RateLimitHits.WithLabelValues(endpoint).Inc()
			c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse(message, httpdto.CodeRateLimited))
			c.Abort()
			return
		}

		c.Next()
	}
}

func passThrough(c *gin.Context) {
	c.Next()
}

// setRateLimitHeaders sets standard rate limit response headers
func setRateLimitHeaders(c *gin.Context, result *redis.RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(result.ResetIn.Seconds()), 10))
}
