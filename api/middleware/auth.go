// Package middleware holds the gin middleware guarding the search endpoints.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gruhmate/pricewatch/models"
)

// Auth returns API-key authentication middleware for the search routes.
//
// Keys are accepted from either header style:
//
//	X-API-Key: <key>
//	Authorization: Bearer <key>
//
// With no keys configured the middleware is a no-op, matching the default
// open-access deployment. Rejections carry the error code so clients can
// distinguish auth failures from scraping failures without parsing prose.
func Auth(apiKeys []string) gin.HandlerFunc {
	if len(apiKeys) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	keySet := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			keySet[k] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		key := requestAPIKey(c)
		if key == "" {
			slog.Warn("request without API key rejected",
				"path", c.Request.URL.Path, "ip", c.ClientIP())
			abortUnauthorized(c, "missing API key: provide X-API-Key header or Authorization: Bearer <key>")
			return
		}
		if _, valid := keySet[key]; !valid {
			slog.Warn("request with unknown API key rejected",
				"path", c.Request.URL.Path, "ip", c.ClientIP())
			abortUnauthorized(c, "invalid API key")
			return
		}

		// Recorded so the rate limiter buckets by key instead of IP.
		c.Set("api_key", key)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": msg,
		"code":  models.ErrCodeUnauthorized,
	})
}

// requestAPIKey tries X-API-Key first, then Authorization: Bearer.
func requestAPIKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
