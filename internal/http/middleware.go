package http

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// CustomLoggerMiddleware returns a Gin middleware that logs requests with slog.
// The request id stamped by the requestid middleware is included when present.
func CustomLoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		attrs := []any{
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		}
		if rid := requestid.Get(c); rid != "" {
			attrs = append(attrs, slog.String("request_id", rid))
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("errors", c.Errors.String()))
		}

		logger.Info("http request", attrs...)
	}
}

// perKeyLimiter hands out one token bucket per key. Entries are never evicted;
// the key space here is surveys under active unlock attempts, which stays small.
type perKeyLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func (p *perKeyLimiter) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	limiter, ok := p.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(p.limit, p.burst)
		p.limiters[key] = limiter
	}
	return limiter
}

// UnlockRateLimitMiddleware returns a Gin middleware that throttles unlock
// attempts per survey, slowing down online guessing of factor secrets.
// Requests over the limit receive 429 Too Many Requests.
func UnlockRateLimitMiddleware(requestsPerSec float64, burst int) gin.HandlerFunc {
	limiters := &perKeyLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(requestsPerSec),
		burst:    burst,
	}

	return func(c *gin.Context) {
		key := c.Param("survey_id")
		if key == "" {
			key = c.ClientIP()
		}

		if !limiters.get(key).Allow() {
			c.AbortWithStatusJSON(429, gin.H{
				"error":   "rate_limited",
				"message": "too many unlock attempts, slow down",
			})
			return
		}

		c.Next()
	}
}
