package compare

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-rod/rod"

	"github.com/gruhmate/pricewatch/cache"
	"github.com/gruhmate/pricewatch/models"
)

type fakePool struct {
	acquires atomic.Int32
	err      error
}

func (p *fakePool) Acquire(_ context.Context) (*rod.Browser, error) {
	p.acquires.Add(1)
	return nil, p.err
}

type fakeExtractor struct {
	name     string
	key      string
	retries  int
	products []models.Product
	err      error
	calls    atomic.Int32
}

func (e *fakeExtractor) StoreName() string   { return e.name }
func (e *fakeExtractor) ResponseKey() string { return e.key }
func (e *fakeExtractor) Retry() (int, time.Duration) {
	return e.retries, time.Millisecond
}
func (e *fakeExtractor) Extract(_ context.Context, _, _ string) ([]models.Product, error) {
	e.calls.Add(1)
	return e.products, e.err
}

func mkProducts(store string, n int) []models.Product {
	out := make([]models.Product, n)
	for i := range out {
		out[i] = models.Product{
			Name:  store + " item " + string(rune('A'+i)),
			Price: "₹100",
			Store: store,
		}
	}
	return out
}

func newTestOrchestrator(pool *fakePool, grocery ...Extractor) (*Orchestrator, *cache.Cache) {
	c := cache.New(10 * time.Minute)
	return New(pool, c, grocery, nil), c
}

func TestPartialFailureTolerated(t *testing.T) {
	good := &fakeExtractor{name: "Zepto", key: "zepto", products: mkProducts("Zepto", 2)}
	bad := &fakeExtractor{name: "JioMart", key: "jiomart", err: errors.New("navigation timeout")}
	o, _ := newTestOrchestrator(&fakePool{}, good, bad)

	result, err := o.Compare(context.Background(), Grocery, "milk", "Mumbai")
	if err != nil {
		t.Fatalf("one failing site must not fail the comparison: %v", err)
	}
	if len(result.Sites["zepto"]) != 2 {
		t.Errorf("zepto results = %d, want 2", len(result.Sites["zepto"]))
	}
	jio, ok := result.Sites["jiomart"]
	if !ok || jio == nil {
		t.Fatal("failing site must still appear with an empty (non-nil) list")
	}
	if len(jio) != 0 {
		t.Errorf("jiomart results = %d, want 0", len(jio))
	}
	if result.Message != "Found 2 Zepto products and 0 JioMart products" {
		t.Errorf("message = %q", result.Message)
	}
	if result.Cached {
		t.Error("fresh comparison marked cached")
	}
}

func TestRetriesBeforeGivingUp(t *testing.T) {
	bad := &fakeExtractor{name: "Zepto", key: "zepto", retries: 2, err: errors.New("boom")}
	o, _ := newTestOrchestrator(&fakePool{}, bad)

	if _, err := o.Compare(context.Background(), Grocery, "milk", "Mumbai"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := bad.calls.Load(); got != 3 {
		t.Errorf("extractor called %d times, want 3 (1 attempt + 2 retries)", got)
	}
}

func TestEmptyComparisonNotCached(t *testing.T) {
	bad := &fakeExtractor{name: "Zepto", key: "zepto", err: errors.New("boom")}
	o, c := newTestOrchestrator(&fakePool{}, bad)

	if _, err := o.Compare(context.Background(), Grocery, "milk", "Mumbai"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("all-empty comparison was cached (len=%d)", c.Len())
	}

	// A second identical request must re-run extraction.
	before := bad.calls.Load()
	if _, err := o.Compare(context.Background(), Grocery, "milk", "Mumbai"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bad.calls.Load() == before {
		t.Error("second request after empty result did not re-scrape")
	}
}

func TestCacheHitSkipsExtraction(t *testing.T) {
	ex := &fakeExtractor{name: "Zepto", key: "zepto", products: mkProducts("Zepto", 3)}
	pool := &fakePool{}
	o, _ := newTestOrchestrator(pool, ex)

	first, err := o.Compare(context.Background(), Grocery, "milk", "Mumbai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	callsAfterFirst := ex.calls.Load()
	acquiresAfterFirst := pool.acquires.Load()

	second, err := o.Compare(context.Background(), Grocery, "milk", "Mumbai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.Cached {
		t.Error("second identical request not served from cache")
	}
	if second.Message != first.Message+" (from cache)" {
		t.Errorf("cached message = %q", second.Message)
	}
	if ex.calls.Load() != callsAfterFirst {
		t.Error("cache hit still invoked the extractor")
	}
	if pool.acquires.Load() != acquiresAfterFirst {
		t.Error("cache hit still warmed the browser")
	}
	if len(second.Sites["zepto"]) != 3 {
		t.Errorf("cached results = %d, want 3", len(second.Sites["zepto"]))
	}
}

func TestCacheKeyNormalizationAcrossRequests(t *testing.T) {
	ex := &fakeExtractor{name: "Zepto", key: "zepto", products: mkProducts("Zepto", 1)}
	o, _ := newTestOrchestrator(&fakePool{}, ex)

	if _, err := o.Compare(context.Background(), Grocery, "Milk", "Mumbai"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err := o.Compare(context.Background(), Grocery, "  milk ", "MUMBAI")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Cached {
		t.Error("normalized-equal query/location did not hit the cache")
	}
}

func TestUnknownCategory(t *testing.T) {
	o, _ := newTestOrchestrator(&fakePool{})

	_, err := o.Compare(context.Background(), Category("fashion"), "shoes", "Mumbai")
	if err == nil {
		t.Fatal("expected an error for an unknown category")
	}
	var se *models.ScrapeError
	if !errors.As(err, &se) || se.Code != models.ErrCodeInternal {
		t.Errorf("error = %v, want ScrapeError with code %s", err, models.ErrCodeInternal)
	}
}

func TestBrowserLaunchFailureFailsComparison(t *testing.T) {
	launchErr := models.NewScrapeError(models.ErrCodeLaunch, "failed to launch browser", nil)
	ex := &fakeExtractor{name: "Zepto", key: "zepto", products: mkProducts("Zepto", 1)}
	o, _ := newTestOrchestrator(&fakePool{err: launchErr}, ex)

	_, err := o.Compare(context.Background(), Grocery, "milk", "Mumbai")
	if !errors.Is(err, launchErr) {
		t.Fatalf("error = %v, want the launch error", err)
	}
	if ex.calls.Load() != 0 {
		t.Error("extractors ran despite a failed browser warm-up")
	}
}

func TestSummarize(t *testing.T) {
	a := &fakeExtractor{name: "Amazon", key: "amazon"}
	f := &fakeExtractor{name: "Flipkart", key: "flipkart"}
	settled := [][]models.Product{mkProducts("Amazon", 4), mkProducts("Flipkart", 1)}

	got := summarize([]Extractor{a, f}, settled)
	want := "Found 4 Amazon products and 1 Flipkart products"
	if got != want {
		t.Errorf("summarize = %q, want %q", got, want)
	}

	if got := summarize(nil, nil); got != "Found no products" {
		t.Errorf("empty summarize = %q", got)
	}
}
