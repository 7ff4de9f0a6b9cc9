package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gruhmate/pricewatch/compare"
	"github.com/gruhmate/pricewatch/models"
)

// Comparer is the orchestration dependency of the search handlers; the
// concrete implementation is compare.Orchestrator.
type Comparer interface {
	Compare(ctx context.Context, category compare.Category, query, location string) (*models.Comparison, error)
}

// Search returns the handler for POST /search-grocery and POST /search-tech
// (the category decides which retailer pair is scraped).
//
// Per-site scraping failures never surface here — the orchestrator converts
// them to empty result lists — so a 500 means the comparison itself could
// not run (browser launch failure, unknown category).
func Search(o Comparer, category compare.Category) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SearchRequest
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Product) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Product is required"})
			return
		}
		req.Defaults()

		result, err := o.Compare(c.Request.Context(), category, req.Product, req.Location)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Failed to scrape data",
				"details": err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, searchResponse(result))
	}
}

// searchResponse flattens a comparison into the wire shape: one array per
// store key, plus the summary message and the cache marker.
func searchResponse(result *models.Comparison) gin.H {
	resp := gin.H{"message": result.Message}
	for key, products := range result.Sites {
		resp[key] = products
	}
	if result.Cached {
		resp["cached"] = true
	}
	return resp
}
