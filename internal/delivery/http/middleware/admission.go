package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/glintdate/glint-backend/internal/infrastructure/admission"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimit rejects identities that exceed their fixed window, with a
// Retry-After hint. Limiter errors fail open: losing Redis must not take
// the engine down with it.
func RateLimit(limiter *admission.RateLimiter, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, retryAfter, err := limiter.Allow(c.Request.Context(), RateKey(c))
		if allowed {
			if err != nil {
				log.Warn("rate limiter unavailable", zap.Error(err))
			}
			c.Next()
			return
		}
		seconds := int(retryAfter.Seconds())
		if seconds < 1 {
			seconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(seconds))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":               "rate limit exceeded",
			"retry_after_seconds": seconds,
		})
	}
}

// Gate admits requests through the bounded concurrency gate, holding the
// slot for the duration of the handler.
func Gate(gate *admission.Gate, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		release, err := gate.Acquire(c.Request.Context())
		if err != nil {
			log.Debug("request rejected at admission gate", zap.Error(err))
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error":               "service at capacity, try again shortly",
				"retry_after_seconds": 1,
			})
			return
		}
		defer release()
		c.Next()
	}
}

// RequestLogger logs each request in the structured format the rest of
// the process uses.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)))
	}
}
