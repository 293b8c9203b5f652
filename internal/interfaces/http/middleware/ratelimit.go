package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/maxnet-vpn/maxnet/internal/infrastructure/ratelimit"
	"github.com/maxnet-vpn/maxnet/internal/shared/logger"
	"github.com/maxnet-vpn/maxnet/internal/shared/utils"
)

// RateLimit rejects callers exceeding the per-IP request budget. A limiter
// backend failure lets the request through.
func RateLimit(limiter ratelimit.RateLimiter, cfg ratelimit.Config, log logger.Interface) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, err := limiter.Allow(c.Request.Context(), c.ClientIP(), cfg)
		if err != nil {
			log.Warnw("rate limiter unavailable, allowing request",
				"client_ip", c.ClientIP(), "error", err)
			c.Next()
			return
		}
		if !allowed {
			utils.ErrorResponse(c, http.StatusTooManyRequests, "rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}
