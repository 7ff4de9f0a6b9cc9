// Package scraper drives headless-browser product extraction from retail
// search pages. Each retailer is described declaratively by a Site; the
// SiteExtractor is a generic driver that navigates, waits, scrolls and
// snapshots the rendered DOM, then hands the snapshot to the goquery-based
// parsing heuristics.
package scraper

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/gruhmate/pricewatch/config"
	"github.com/gruhmate/pricewatch/models"
)

// PagePool is the slice of browser.Pool the extractor needs: page checkout
// and return against the shared browser.
type PagePool interface {
	NewPage(ctx context.Context) (*rod.Page, error)
	PutPage(page *rod.Page)
}

// SiteExtractor extracts product records from one retailer. Safe for
// concurrent use; every call drives its own page.
type SiteExtractor struct {
	site Site
	pool PagePool
	cfg  config.ScraperConfig

	// scrape drives one checked-out page through the extraction flow.
	// A field so lifecycle tests can substitute the driver.
	scrape func(ctx context.Context, page *rod.Page, query, location string) ([]models.Product, error)
}

// New builds an extractor for a site, validating its selector vocabulary.
// Non-zero ScraperConfig tunings override the site's own: MaxProducts
// tightens the cap, the rest replace the per-site defaults.
func New(site Site, pool PagePool, cfg config.ScraperConfig) (*SiteExtractor, error) {
	if err := site.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxProducts > 0 && cfg.MaxProducts < site.MaxProducts {
		site.MaxProducts = cfg.MaxProducts
	}
	if cfg.NavTimeout > 0 {
		site.NavTimeout = cfg.NavTimeout
	}
	if cfg.SettleDelay > 0 {
		site.SettleDelay = cfg.SettleDelay
	}
	if len(cfg.BlockedResourceTypes) > 0 {
		site.BlockedResources = cfg.BlockedResourceTypes
	}

	e := &SiteExtractor{site: site, pool: pool, cfg: cfg}
	e.scrape = e.scrapePage
	return e, nil
}

// StoreName returns the retailer label ("Zepto").
func (e *SiteExtractor) StoreName() string { return e.site.Name }

// ResponseKey returns the retailer's field name in API responses ("zepto").
func (e *SiteExtractor) ResponseKey() string { return e.site.Key }

// Retry returns the site's retry tuning for the caller's retry wrapper.
func (e *SiteExtractor) Retry() (maxRetries int, baseDelay time.Duration) {
	return e.site.Retry.MaxRetries, e.site.Retry.BaseDelay
}

// Extract runs one full extraction pass: navigate the retailer's search
// page for the query, probe the card-selector chain, trigger lazy loading,
// and parse the rendered DOM into product records.
//
// A missed selector chain and a detected bot challenge return an empty
// slice, not an error — retrying cannot change either outcome. Other
// failures follow the site's failure policy: "propagate" surfaces them to
// the retry wrapper, "degrade" logs and returns empty.
//
// The page is closed on every path, exactly once.
func (e *SiteExtractor) Extract(ctx context.Context, query, location string) ([]models.Product, error) {
	page, err := e.pool.NewPage(ctx)
	if err != nil {
		return nil, err
	}
	defer e.pool.PutPage(page)

	return e.scrape(ctx, page, query, location)
}

// scrapePage is the real page driver behind Extract.
func (e *SiteExtractor) scrapePage(ctx context.Context, page *rod.Page, query, location string) ([]models.Product, error) {
	// Stealth and interception must be in place before navigation;
	// new-document scripts only affect navigations that follow them.
	applyStealth(page, e.site)
	if router := mountHijack(page, e.site); router != nil {
		defer func() { _ = router.Stop() }()
	}

	p := page.Context(ctx)

	slog.Info("searching", "store", e.site.Name, "query", query, "location", location)

	searchURL := e.site.SearchURL(query, location)
	nav := p.Timeout(e.site.NavTimeout)
	if err := nav.Navigate(searchURL); err != nil {
		return e.fail(models.NewScrapeError(
			models.ErrCodeNavigation,
			e.site.Name+": navigation failed",
			err,
		))
	}
	if err := nav.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("DOM did not stabilize, proceeding",
			"store", e.site.Name, "error", err)
	}

	if err := humanPause(ctx, e.site.SettleDelay); err != nil {
		return nil, err
	}

	if e.site.DetectBotPage {
		doc, err := snapshot(p)
		if err != nil {
			return e.fail(err)
		}
		if isBotChallenge(doc) {
			slog.Warn("bot challenge detected, skipping extraction", "store", e.site.Name)
			return []models.Product{}, nil
		}
	}

	if e.site.DismissPopups {
		dismissPopups(p)
	}

	if e.site.PreScrollPx > 0 {
		scrollBy(p, e.site.PreScrollPx)
		if err := sleepCtx(ctx, 800*time.Millisecond); err != nil {
			return nil, err
		}
	}

	// Give the first matching card selector a chance to appear before
	// snapshotting; each candidate gets its own short wait.
	e.awaitAnyCard(p)

	doc, err := snapshot(p)
	if err != nil {
		return e.fail(err)
	}

	cardSelector := pickCardSelector(doc, e.site)
	if cardSelector == "" && e.site.ScrollRetry {
		slog.Info("no cards matched, trying aggressive scroll", "store", e.site.Name)
		scrollToHalf(p)
		if err := sleepCtx(ctx, time.Second); err != nil {
			return nil, err
		}
		if doc, err = snapshot(p); err != nil {
			return e.fail(err)
		}
		cardSelector = pickCardSelector(doc, e.site)
	}
	if cardSelector == "" {
		e.logNoResults(doc)
		return []models.Product{}, nil
	}

	// Trigger lazy-loaded cards below the fold, then take the final snapshot.
	for i := 0; i < e.site.PostProbeScrolls; i++ {
		scrollBy(p, 800)
		if err := sleepCtx(ctx, 600*time.Millisecond); err != nil {
			return nil, err
		}
	}
	if e.site.PostProbeScrolls > 0 {
		if doc, err = snapshot(p); err != nil {
			return e.fail(err)
		}
	}

	products := parseProducts(doc, e.site, cardSelector)
	slog.Info("extraction complete",
		"store", e.site.Name,
		"query", query,
		"selector", cardSelector,
		"products", len(products),
	)
	return products, nil
}

// fail applies the site's failure policy to an internal error.
func (e *SiteExtractor) fail(err error) ([]models.Product, error) {
	if e.site.OnFailure == Degrade {
		slog.Warn("extraction failed, degrading to empty result",
			"store", e.site.Name, "error", err)
		return []models.Product{}, nil
	}
	return nil, err
}

// awaitAnyCard waits briefly for each card-selector candidate in turn,
// stopping at the first one present in the DOM.
func (e *SiteExtractor) awaitAnyCard(p *rod.Page) {
	timeout := e.cfg.SelectorTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	for _, sel := range e.site.CardSelectors {
		if _, err := p.Timeout(timeout).Element(sel); err == nil {
			return
		}
	}
}

// logNoResults distinguishes a genuinely empty result page from location or
// auth barriers in the logs; callers see an empty slice either way.
func (e *SiteExtractor) logNoResults(doc *goquery.Document) {
	body := doc.Find("body").Text()
	switch {
	case strings.Contains(body, "No products found") || strings.Contains(body, "No results"):
		slog.Info("no products for this search term", "store", e.site.Name)
	case strings.Contains(body, "Sign In") || strings.Contains(body, "delivery to:"):
		slog.Warn("location or auth barrier detected", "store", e.site.Name)
	default:
		snippet := body
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		slog.Warn("no card selector matched",
			"store", e.site.Name, "bodySnippet", snippet)
	}
}

// snapshot captures the rendered DOM and parses it for extraction.
func snapshot(p *rod.Page) (*goquery.Document, error) {
	rendered, err := p.HTML()
	if err != nil {
		code := models.ErrCodeExtraction
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			code = models.ErrCodeNavigation
		}
		return nil, models.NewScrapeError(code, "failed to capture rendered page", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rendered))
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeExtraction, "failed to parse rendered page", err)
	}
	return doc, nil
}

// scrollBy scrolls the viewport down by px, best-effort.
func scrollBy(p *rod.Page, px int) {
	if _, err := p.Eval(`(px) => window.scrollBy(0, px)`, px); err != nil {
		slog.Debug("scroll failed", "error", err)
	}
}

// scrollToHalf jumps to the middle of the document, forcing virtualized
// lists to materialize.
func scrollToHalf(p *rod.Page) {
	if _, err := p.Eval(`() => window.scrollTo(0, document.body.scrollHeight / 2)`); err != nil {
		slog.Debug("scroll failed", "error", err)
	}
}

// popupLabels mark dismissible location/consent dialogs.
var popupLabels = []string{"Enable Location", "Close", "×"}

// dismissPopups clicks away blocking dialogs, best-effort; failures are
// ignored since the page may simply not show one.
func dismissPopups(p *rod.Page) {
	buttons, err := p.Timeout(2 * time.Second).Elements("button")
	if err != nil {
		return
	}
	for _, btn := range buttons {
		text, err := btn.Text()
		if err != nil {
			continue
		}
		for _, label := range popupLabels {
			if strings.Contains(text, label) {
				if err := btn.Click(proto.InputMouseButtonLeft, 1); err == nil {
					slog.Debug("dismissed popup", "label", label)
				}
				return
			}
		}
	}
}

// humanPause sleeps for the base delay plus a random jitter of up to half
// of it, mimicking a human reading pause after page load.
func humanPause(ctx context.Context, base time.Duration) error {
	if base <= 0 {
		return nil
	}
	return sleepCtx(ctx, base+rand.N(base/2+1))
}

// sleepCtx sleeps unless the context expires first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
