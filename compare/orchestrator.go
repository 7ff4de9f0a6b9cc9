// Package compare fans a price search out to a category's site extractors
// concurrently, tolerates per-site failure, and caches merged results.
package compare

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"

	"github.com/gruhmate/pricewatch/cache"
	"github.com/gruhmate/pricewatch/models"
	"github.com/gruhmate/pricewatch/retry"
)

// Category selects which retailer pair a comparison runs against.
type Category string

const (
	Grocery Category = "grocery"
	Tech    Category = "tech"
)

// Extractor is one retailer's scraper. compare depends on this interface
// rather than the concrete scraper type so orchestration is testable
// without a browser.
type Extractor interface {
	// StoreName is the retailer label used in log lines and summaries.
	StoreName() string
	// ResponseKey is the retailer's field name in the comparison result.
	ResponseKey() string
	// Retry returns the retailer's retry tuning.
	Retry() (maxRetries int, baseDelay time.Duration)
	// Extract performs one extraction pass.
	Extract(ctx context.Context, query, location string) ([]models.Product, error)
}

// BrowserPool is the slice of browser.Pool the orchestrator needs: a warm-up
// call that fails fast when Chrome cannot launch.
type BrowserPool interface {
	Acquire(ctx context.Context) (*rod.Browser, error)
}

// Orchestrator coordinates cache, browser warm-up, and concurrent
// extraction for both categories.
type Orchestrator struct {
	pool       BrowserPool
	cache      *cache.Cache
	categories map[Category][]Extractor
}

// New creates an Orchestrator over the given category extractor sets.
func New(pool BrowserPool, c *cache.Cache, grocery, tech []Extractor) *Orchestrator {
	return &Orchestrator{
		pool:  pool,
		cache: c,
		categories: map[Category][]Extractor{
			Grocery: grocery,
			Tech:    tech,
		},
	}
}

// Compare runs a price comparison for the query across the category's
// retailers. Results are served from cache when a fresh entry exists.
//
// Extraction failures never fail the comparison: a site whose extractor
// errors out (after its retries) contributes an empty list. Only failures
// in shared setup — an unknown category or a browser that cannot launch —
// are returned as errors.
func (o *Orchestrator) Compare(ctx context.Context, category Category, query, location string) (*models.Comparison, error) {
	extractors, ok := o.categories[category]
	if !ok {
		return nil, models.NewScrapeError(
			models.ErrCodeInternal,
			fmt.Sprintf("unknown category %q", category),
			nil,
		)
	}

	if hit, found := o.cache.Get(query, location); found {
		slog.Info("cache hit", "category", category, "query", query, "location", location)
		return &models.Comparison{
			Sites:   hit.Sites,
			Message: hit.Message + " (from cache)",
			Cached:  true,
		}, nil
	}

	// Warm the shared browser up front so a launch failure surfaces as an
	// orchestration error instead of N identical per-site failures.
	if _, err := o.pool.Acquire(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	slog.Info("comparison started",
		"category", category, "query", query, "location", location)

	// allSettled fan-out: every extractor runs to completion; one site's
	// failure neither cancels nor fails the others.
	settled := make([][]models.Product, len(extractors))
	var wg sync.WaitGroup
	for i, ex := range extractors {
		wg.Add(1)
		go func(slot int, ex Extractor) {
			defer wg.Done()

			maxRetries, baseDelay := ex.Retry()
			products, err := retry.Do(ctx, maxRetries, baseDelay,
				func(ctx context.Context) ([]models.Product, error) {
					return ex.Extract(ctx, query, location)
				})
			if err != nil {
				slog.Error("extractor failed after retries",
					"store", ex.StoreName(), "error", err)
				products = nil
			}
			settled[slot] = products
		}(i, ex)
	}
	wg.Wait()

	result := &models.Comparison{
		Sites:   make(map[string][]models.Product, len(extractors)),
		Message: summarize(extractors, settled),
	}
	for i, ex := range extractors {
		products := settled[i]
		if products == nil {
			products = []models.Product{}
		}
		result.Sites[ex.ResponseKey()] = products
	}

	// Never cache a fully empty comparison: it is more likely a transient
	// failure than a true no-result, and should be retried on the next
	// identical request instead of pinned for the whole TTL.
	if result.Total() > 0 {
		o.cache.Set(query, location, result)
	}

	slog.Info("comparison finished",
		"category", category,
		"query", query,
		"products", result.Total(),
		"duration", time.Since(start).Round(10*time.Millisecond),
	)
	return result, nil
}

// summarize builds the per-site count message, e.g.
// "Found 3 Zepto products and 2 JioMart products".
func summarize(extractors []Extractor, settled [][]models.Product) string {
	parts := make([]string, len(extractors))
	for i, ex := range extractors {
		parts[i] = fmt.Sprintf("%d %s products", len(settled[i]), ex.StoreName())
	}
	if len(parts) == 0 {
		return "Found no products"
	}
	return "Found " + strings.Join(parts, " and ")
}
