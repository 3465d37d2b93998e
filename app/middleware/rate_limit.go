package middleware

import (
	"math"
	"net/http"
	"strconv"

	"ugc-forge/app/logger"
	"ugc-forge/app/ratelimit"
	"ugc-forge/app/utils"

	"github.com/gin-gonic/gin"
)

// RateLimit admits requests per client ip through limiter. A nil limiter admits
// everything.
func RateLimit(limiter *ratelimit.Limiter, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		ip := utils.ClientIP(c.Request)
		d, err := limiter.Allow(c.Request.Context(), ip)
		if err != nil {
			log.Warnf("rate limit store unavailable, admitting %s: %v", ip, err)
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

		if !d.Allowed {
			retryAfter := int(math.Ceil(d.RetryAfter.Seconds()))
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			log.Warnf("rate limit exceeded for %s, retry in %ds", ip, retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success":     false,
				"error":       "Too many requests",
				"retry_after": retryAfter,
			})
			return
		}
		c.Next()
	}
}
