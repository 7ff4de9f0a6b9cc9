package scraper

import (
	"fmt"
	"net/url"
	"time"

	"github.com/andybalholm/cascadia"
)

// FailurePolicy decides what an extractor does with internal errors
// (navigation timeouts, evaluation failures). "propagate" hands the error to
// the retry wrapper for a fresh attempt; "degrade" swallows it and reports
// zero results. A missing card selector and a detected bot challenge always
// degrade regardless of policy, since retrying cannot change those outcomes.
type FailurePolicy string

const (
	Propagate FailurePolicy = "propagate"
	Degrade   FailurePolicy = "degrade"
)

// RetrySpec tunes the retry wrapper around one site's extraction.
type RetrySpec struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// Site declaratively describes one retailer: how to reach its search page,
// which selector chains locate product cards and fields, and which
// tolerance/stealth knobs apply. The extractor is a generic driver over
// this data; retailers differ only in vocabulary, not control flow.
type Site struct {
	// Name is the store label recorded on every product ("Zepto").
	Name string
	// Key is the store's field name in API responses ("zepto").
	Key string
	// Origin resolves relative image and product URLs.
	Origin string
	// SearchURL builds the search results URL for a query and location.
	SearchURL func(query, location string) string

	ViewportWidth  int
	ViewportHeight int
	UserAgent      string

	// Hardened enables the extra anti-fingerprint measures used against the
	// most bot-sensitive retailer: WebGL vendor spoofing and genuine-browser
	// request headers.
	Hardened bool

	// BlockedResources lists resource types aborted before they load.
	BlockedResources []string
	// BlockTrackers aborts requests to known analytics/ad hosts.
	BlockTrackers bool

	// NavTimeout bounds navigation; SettleDelay is the humanized pause after
	// it (a jitter of up to half the value is added).
	NavTimeout  time.Duration
	SettleDelay time.Duration

	// PreScrollPx scrolls once before probing to trigger lazy rendering.
	PreScrollPx int
	// PostProbeScrolls is the number of scroll-and-wait steps between a
	// successful probe and extraction.
	PostProbeScrolls int

	// CardSelectors is the ordered chain of product-card candidates.
	CardSelectors []string
	// CardEvidence requires a matched selector's first cards to contain
	// price-like or size-like text before it is trusted. Guards the generic
	// selectors ("div[class*=product]") against matching navigation chrome.
	CardEvidence bool
	// ScrollRetry re-probes once after an aggressive half-page scroll when
	// the whole chain missed.
	ScrollRetry bool
	// DismissPopups clicks away location/consent dialogs before probing.
	DismissPopups bool
	// DetectBotPage scans for CAPTCHA markers before extraction.
	DetectBotPage bool

	// NameSelectors is the ordered chain for the product title. An element's
	// title attribute wins over its text when present.
	NameSelectors []string
	// NameLineScan falls back to scanning the card's text lines when no
	// name selector matches.
	NameLineScan bool
	// LineScanMinLen/LineScanMaxLen bound accepted line lengths in the scan.
	LineScanMinLen int
	LineScanMaxLen int

	// PriceSelectors is the ordered chain for the price node.
	PriceSelectors []string
	// PriceWholeFraction composes the price from separate whole/fraction/
	// symbol nodes (Amazon's layout) before falling back to PriceSelectors.
	PriceWholeFraction bool

	ImageSelectors []string
	LinkSelectors  []string

	// WeightSelectors locate the pack-size node; WeightRegex additionally
	// scans the card text for a unit-suffixed quantity. Tech retailers carry
	// no pack size and leave both empty.
	WeightSelectors []string
	WeightRegex     bool

	MaxProducts int
	Retry       RetrySpec
	OnFailure   FailurePolicy
}

const (
	groceryUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	techUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

// Zepto returns the site definition for zeptonow.com grocery search.
func Zepto() Site {
	return Site{
		Name:   "Zepto",
		Key:    "zepto",
		Origin: "https://www.zeptonow.com",
		SearchURL: func(query, _ string) string {
			return "https://www.zeptonow.com/search?query=" + url.QueryEscape(query)
		},
		ViewportWidth:  1280,
		ViewportHeight: 800,
		UserAgent:      groceryUserAgent,

		BlockedResources: []string{"Font", "Media"},

		NavTimeout:  15 * time.Second,
		SettleDelay: time.Second,
		PreScrollPx: 800,

		CardSelectors: []string{
			`a[href*="/pn/"]`,
			`a[href*="/prn/"]`,
			`[data-testid="product-card"]`,
			`div[class*="product"]`,
			`div[class*="ProductCard"]`,
		},

		NameSelectors: []string{
			`[data-testid="product-card-name"]`,
			"h4",
			"h3",
			`[class*="name"]`,
			`[class*="title"]`,
		},
		NameLineScan:   true,
		LineScanMinLen: 3,
		LineScanMaxLen: 100,

		PriceSelectors: []string{
			`[data-testid="product-card-price"]`,
			`[class*="price"]`,
			`[class*="Price"]`,
		},

		ImageSelectors: []string{"img"},
		LinkSelectors:  []string{`a[href*="/pn/"]`, `a[href*="/prn/"]`, "a"},

		WeightSelectors: []string{
			`[data-testid="product-card-quantity"]`,
			`[class*="quantity"]`,
			`[class*="Quantity"]`,
		},
		WeightRegex: true,

		MaxProducts: 10,
		Retry:       RetrySpec{MaxRetries: 2, BaseDelay: 500 * time.Millisecond},
		OnFailure:   Propagate,
	}
}

// JioMart returns the site definition for jiomart.com grocery search.
func JioMart() Site {
	return Site{
		Name:   "JioMart",
		Key:    "jiomart",
		Origin: "https://www.jiomart.com",
		SearchURL: func(query, _ string) string {
			return "https://www.jiomart.com/search/" + url.QueryEscape(query)
		},
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		UserAgent:      groceryUserAgent,

		BlockedResources: []string{"Font", "Media"},

		NavTimeout:  15 * time.Second,
		SettleDelay: time.Second,
		PreScrollPx: 800,

		CardSelectors: []string{
			`a[href*="/p/groceries/"]`,
			`a[href*="/p/"]`,
			`div[class*="plp-card"]`,
			`div[class*="sku-item"]`,
			`div[class*="product"]`,
			`div[data-testid*="product"]`,
		},
		CardEvidence:  true,
		ScrollRetry:   true,
		DismissPopups: true,

		NameLineScan:   true,
		LineScanMinLen: 5,
		LineScanMaxLen: 150,

		ImageSelectors: []string{"img"},
		LinkSelectors:  []string{`a[href*="/p/"]`, "a"},

		WeightRegex: true,

		MaxProducts: 10,
		Retry:       RetrySpec{MaxRetries: 3, BaseDelay: 1500 * time.Millisecond},
		OnFailure:   Propagate,
	}
}

// Amazon returns the site definition for amazon.in search. Amazon gates bots
// most aggressively, so this is the hardened variant with WebGL spoofing,
// header rewrites, tracker blocking and CAPTCHA detection.
func Amazon() Site {
	return Site{
		Name:   "Amazon",
		Key:    "amazon",
		Origin: "https://www.amazon.in",
		SearchURL: func(query, _ string) string {
			return "https://www.amazon.in/s?k=" + url.QueryEscape(query)
		},
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		UserAgent:      techUserAgent,
		Hardened:       true,

		BlockedResources: []string{"Stylesheet", "Font", "Media"},
		BlockTrackers:    true,

		NavTimeout:       25 * time.Second,
		SettleDelay:      time.Second,
		PostProbeScrolls: 2,

		CardSelectors: []string{
			`[data-component-type="s-search-result"]`,
			`.s-result-item[data-asin]`,
			`div[data-asin]:not([data-asin=""])`,
		},
		DetectBotPage: true,

		NameSelectors: []string{
			"h2 a span",
			"h2 span.a-text-normal",
			".a-size-medium.a-text-normal",
			"h2 .a-size-base-plus",
			".s-title-instructions-style span",
			"h2 span",
			"h2 a",
			"h2",
		},

		PriceSelectors: []string{
			".a-price .a-offscreen",
			".a-price",
		},
		PriceWholeFraction: true,

		ImageSelectors: []string{
			"img.s-image",
			"img[data-image-latency]",
			".s-product-image-container img",
			"img",
		},
		LinkSelectors: []string{"h2 a", "a.a-link-normal"},

		MaxProducts: 10,
		Retry:       RetrySpec{MaxRetries: 3, BaseDelay: 2 * time.Second},
		OnFailure:   Propagate,
	}
}

// Flipkart returns the site definition for flipkart.com search.
func Flipkart() Site {
	return Site{
		Name:   "Flipkart",
		Key:    "flipkart",
		Origin: "https://www.flipkart.com",
		SearchURL: func(query, _ string) string {
			return "https://www.flipkart.com/search?q=" + url.QueryEscape(query)
		},
		ViewportWidth:  1280,
		ViewportHeight: 800,
		UserAgent:      techUserAgent,

		BlockedResources: []string{"Stylesheet", "Font", "Media"},
		BlockTrackers:    true,

		NavTimeout:       25 * time.Second,
		SettleDelay:      time.Second,
		PostProbeScrolls: 2,

		CardSelectors: []string{
			"[data-id]",
			"._1AtVbE",
			".tUxRFH",
			"._2kHMtA",
			"._13oc-S",
		},

		NameSelectors: []string{
			"a[title]",
			".s1Q9rs",
			"._4rR01T",
			"a.IRpwTa",
			"._2WkVRV",
			".KzDlHZ",
			"a",
		},

		PriceSelectors: []string{
			"._30jeq3",
			"._1_WHN1",
			".Nx9bqj",
			"._25b18c",
			"._16Jk6d",
		},

		ImageSelectors: []string{
			"img._396cs4",
			"img._2r_T1I",
			`img[loading="eager"]`,
			"img.CXW8mj",
			"img._53J4C-",
			"img",
		},
		LinkSelectors: []string{`a[href*="/p/"]`, "a.s1Q9rs", "a"},

		MaxProducts: 10,
		Retry:       RetrySpec{MaxRetries: 3, BaseDelay: 2 * time.Second},
		OnFailure:   Propagate,
	}
}

// Validate parses every selector chain with cascadia so a typo in the
// vocabulary fails at startup instead of silently matching nothing.
func (s Site) Validate() error {
	chains := map[string][]string{
		"card":   s.CardSelectors,
		"name":   s.NameSelectors,
		"price":  s.PriceSelectors,
		"image":  s.ImageSelectors,
		"link":   s.LinkSelectors,
		"weight": s.WeightSelectors,
	}
	for chain, selectors := range chains {
		for _, sel := range selectors {
			if _, err := cascadia.ParseGroup(sel); err != nil {
				return fmt.Errorf("%s: invalid %s selector %q: %w", s.Name, chain, sel, err)
			}
		}
	}
	if len(s.CardSelectors) == 0 {
		return fmt.Errorf("%s: no card selectors", s.Name)
	}
	if s.SearchURL == nil {
		return fmt.Errorf("%s: no search URL builder", s.Name)
	}
	return nil
}
