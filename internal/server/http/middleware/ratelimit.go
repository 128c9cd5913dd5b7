package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RateLimiter decides whether another call under key is admitted.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimit throttles an authenticated route per user. Limiter failures let the request through.
func RateLimit(limiter RateLimiter, bucket string, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("%s:%d", bucket, Actor(c).UserID)
		allowed, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logger.Warn("rate limiter unavailable", slog.String("key", key), slog.String("error", err.Error()))
			c.Next()
			return
		}
		if !allowed {
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}
		c.Next()
	}
}
