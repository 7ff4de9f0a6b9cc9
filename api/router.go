package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gruhmate/pricewatch/api/handler"
	"github.com/gruhmate/pricewatch/api/middleware"
	"github.com/gruhmate/pricewatch/browser"
	"github.com/gruhmate/pricewatch/compare"
	"github.com/gruhmate/pricewatch/config"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	Search:  Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
func NewRouter(o handler.Comparer, pool *browser.Pool, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	// Health — no auth required.
	r.GET("/health", handler.Health(pool, startTime))

	// Search endpoints — auth + rate limit.
	search := r.Group("")
	if cfg.Auth.Enabled {
		search.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	search.Use(middleware.RateLimit(cfg.RateLimit))

	search.POST("/search-grocery", handler.Search(o, compare.Grocery))
	search.POST("/search-tech", handler.Search(o, compare.Tech))

	return r
}
