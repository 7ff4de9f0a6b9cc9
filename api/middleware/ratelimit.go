package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/gruhmate/pricewatch/config"
	"github.com/gruhmate/pricewatch/models"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit returns token-bucket rate limiting middleware, one bucket per
// identity (the API key set by Auth, or the client IP when auth is off).
// Every allowed request costs a full browser-driven scrape, so the bucket
// is deliberately small.
//
// Buckets idle for an hour are evicted by a sweep every 5 minutes.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	var mu sync.Mutex
	buckets := make(map[string]*limiterEntry)

	take := func(identity string) bool {
		mu.Lock()
		defer mu.Unlock()
		entry, ok := buckets[identity]
		if !ok {
			entry = &limiterEntry{
				limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
			}
			buckets[identity] = entry
		}
		entry.lastSeen = time.Now()
		return entry.limiter.Allow()
	}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			cutoff := time.Now().Add(-time.Hour)
			mu.Lock()
			for id, entry := range buckets {
				if entry.lastSeen.Before(cutoff) {
					delete(buckets, id)
				}
			}
			mu.Unlock()
		}
	}()

	return func(c *gin.Context) {
		identity := c.GetString("api_key")
		if identity == "" {
			identity = c.ClientIP()
		}

		if !take(identity) {
			slog.Warn("rate limit exceeded",
				"path", c.Request.URL.Path, "ip", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded, please slow down",
				"code":  models.ErrCodeRateLimited,
			})
			return
		}

		c.Next()
	}
}
