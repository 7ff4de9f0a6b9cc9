package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gruhmate/pricewatch/browser"
	"github.com/gruhmate/pricewatch/models"
)

// Health returns a handler for GET /health.
//
// Reports browser state; the service stays "healthy" even with the browser
// down, since it relaunches lazily on the next search.
func Health(pool *browser.Pool, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  "healthy",
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Browser: pool.Stats(),
			Version: "0.1.0",
		})
	}
}
