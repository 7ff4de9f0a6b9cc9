package models

import "strings"

// Product is the unit of extraction output: one product card scraped from a
// retailer's search results page.
type Product struct {
	// Name is the product title. Always non-empty and at least 3 characters
	// after trimming; cards that yield anything shorter are discarded.
	Name string `json:"name"`

	// Price is the formatted price string as rendered by the site
	// (e.g. "₹249"), or PriceUnavailable when no price could be found.
	// No numeric parsing is guaranteed; sites render prices inconsistently.
	Price string `json:"price"`

	// Image is an absolute image URL, or empty if only placeholder or
	// inline-data images were present.
	Image string `json:"image"`

	// Weight is a free-text pack-size descriptor ("500 g", "1 l"), possibly empty.
	Weight string `json:"weight"`

	// Store identifies the source retailer ("Zepto", "JioMart", "Amazon", "Flipkart").
	Store string `json:"store"`

	// URL is the absolute product page URL, possibly empty.
	URL string `json:"url"`
}

// PriceUnavailable is the sentinel price used when a card carries no
// recognizable price text.
const PriceUnavailable = "Price unavailable"

// NormalizeName returns the lowercased, trimmed form of a product name,
// used for duplicate suppression within a single extraction pass.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Comparison is the aggregate result of one price-comparison run across the
// retailers of a category. Immutable once cached.
type Comparison struct {
	// Sites maps a retailer's response key (e.g. "zepto") to its products.
	// A site that failed or found nothing contributes an empty slice.
	Sites map[string][]Product `json:"-"`

	// Message summarizes the per-site counts for the client.
	Message string `json:"message"`

	// Cached is true when the comparison was served from the result cache.
	Cached bool `json:"cached,omitempty"`
}

// Total returns the number of products across all sites.
func (c *Comparison) Total() int {
	n := 0
	for _, products := range c.Sites {
		n += len(products)
	}
	return n
}
