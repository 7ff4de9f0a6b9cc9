package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-rod/rod"

	"github.com/gruhmate/pricewatch/config"
	"github.com/gruhmate/pricewatch/models"
)

type countingPool struct {
	newPages int
	putPages int
	newErr   error
}

func (p *countingPool) NewPage(_ context.Context) (*rod.Page, error) {
	p.newPages++
	if p.newErr != nil {
		return nil, p.newErr
	}
	return nil, nil
}

func (p *countingPool) PutPage(_ *rod.Page) { p.putPages++ }

func TestConfigOverridesSiteTuning(t *testing.T) {
	e, err := New(Zepto(), &countingPool{}, config.ScraperConfig{
		MaxProducts:          5,
		NavTimeout:           40 * time.Second,
		SettleDelay:          200 * time.Millisecond,
		BlockedResourceTypes: []string{"Image"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.site.MaxProducts != 5 {
		t.Errorf("MaxProducts = %d, want 5", e.site.MaxProducts)
	}
	if e.site.NavTimeout != 40*time.Second {
		t.Errorf("NavTimeout = %v, want 40s", e.site.NavTimeout)
	}
	if e.site.SettleDelay != 200*time.Millisecond {
		t.Errorf("SettleDelay = %v, want 200ms", e.site.SettleDelay)
	}
	if len(e.site.BlockedResources) != 1 || e.site.BlockedResources[0] != "Image" {
		t.Errorf("BlockedResources = %v, want [Image]", e.site.BlockedResources)
	}
}

func TestZeroConfigKeepsSiteTuning(t *testing.T) {
	want := Amazon()
	e, err := New(Amazon(), &countingPool{}, config.ScraperConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.site.MaxProducts != want.MaxProducts {
		t.Errorf("MaxProducts = %d, want %d", e.site.MaxProducts, want.MaxProducts)
	}
	if e.site.NavTimeout != want.NavTimeout {
		t.Errorf("NavTimeout = %v, want %v", e.site.NavTimeout, want.NavTimeout)
	}
	if e.site.SettleDelay != want.SettleDelay {
		t.Errorf("SettleDelay = %v, want %v", e.site.SettleDelay, want.SettleDelay)
	}
	if len(e.site.BlockedResources) != len(want.BlockedResources) {
		t.Errorf("BlockedResources = %v, want %v", e.site.BlockedResources, want.BlockedResources)
	}
}

func TestMaxProductsOnlyTightens(t *testing.T) {
	e, err := New(Zepto(), &countingPool{}, config.ScraperConfig{MaxProducts: 50})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.site.MaxProducts != 10 {
		t.Errorf("MaxProducts = %d, a looser cap must not raise the site's own", e.site.MaxProducts)
	}
}

func TestNewRejectsInvalidSelectors(t *testing.T) {
	site := Zepto()
	site.CardSelectors = []string{"div[unclosed"}
	if _, err := New(site, &countingPool{}, config.ScraperConfig{}); err == nil {
		t.Fatal("expected an error for an unparsable selector")
	}
}

func TestPageReleasedOnSuccess(t *testing.T) {
	pool := &countingPool{}
	e, err := New(Zepto(), pool, config.ScraperConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e.scrape = func(_ context.Context, _ *rod.Page, _, _ string) ([]models.Product, error) {
		return []models.Product{{Name: "Amul Milk"}}, nil
	}

	products, err := e.Extract(context.Background(), "milk", "Mumbai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(products) != 1 {
		t.Errorf("got %d products, want 1", len(products))
	}
	if pool.newPages != 1 || pool.putPages != 1 {
		t.Errorf("page checked out %d times, returned %d times; want 1 and 1",
			pool.newPages, pool.putPages)
	}
}

func TestPageReleasedOnScrapeFailure(t *testing.T) {
	pool := &countingPool{}
	e, err := New(Zepto(), pool, config.ScraperConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	scrapeErr := models.NewScrapeError(models.ErrCodeNavigation, "navigation failed", nil)
	e.scrape = func(_ context.Context, _ *rod.Page, _, _ string) ([]models.Product, error) {
		return nil, scrapeErr
	}

	if _, err := e.Extract(context.Background(), "milk", "Mumbai"); !errors.Is(err, scrapeErr) {
		t.Fatalf("error = %v, want the scrape error", err)
	}
	if pool.putPages != 1 {
		t.Errorf("page returned %d times after a failed scrape, want exactly 1", pool.putPages)
	}
}

func TestNoReleaseWhenCheckoutFails(t *testing.T) {
	pool := &countingPool{newErr: models.NewScrapeError(models.ErrCodeLaunch, "failed to open page", nil)}
	e, err := New(Zepto(), pool, config.ScraperConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := e.Extract(context.Background(), "milk", "Mumbai"); err == nil {
		t.Fatal("expected the checkout error to propagate")
	}
	if pool.putPages != 0 {
		t.Errorf("returned %d pages that were never checked out", pool.putPages)
	}
}
