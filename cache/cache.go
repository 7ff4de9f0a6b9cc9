package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/gruhmate/pricewatch/models"
)

// entry holds a cached comparison with its creation timestamp.
type entry struct {
	result    *models.Comparison
	createdAt time.Time
}

// Cache is an in-memory TTL cache for comparison results, keyed by
// normalized (query, location) pairs. Expiry is lazy: a stale entry is
// evicted on the next lookup for its key, there is no background sweep.
// It is safe for concurrent use.
type Cache struct {
	mu    sync.Mutex
	store map[string]*entry
	ttl   time.Duration
	now   func() time.Time
}

// New creates a Cache with the given time-to-live per entry.
func New(ttl time.Duration) *Cache {
	return &Cache{
		store: make(map[string]*entry),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Key builds the normalized cache key for a query/location pair.
// "Milk"/"MUMBAI" and " milk "/"Mumbai" resolve to the same key.
func Key(query, location string) string {
	return strings.ToLower(strings.TrimSpace(query)) + "_" +
		strings.ToLower(strings.TrimSpace(location))
}

// Get returns the cached comparison for the query/location pair, if present
// and younger than the TTL. A stale entry is deleted and reported absent.
func (c *Cache) Get(query, location string) (*models.Comparison, bool) {
	key := Key(query, location)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.store[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.createdAt) >= c.ttl {
		delete(c.store, key)
		return nil, false
	}
	return e.result, true
}

// Set stores a comparison with the current timestamp, overwriting any prior
// entry for the same key.
func (c *Cache) Set(query, location string, result *models.Comparison) {
	key := Key(query, location)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.store[key] = &entry{
		result:    result,
		createdAt: c.now(),
	}
}

// Len reports the number of entries currently stored, including any that
// have expired but not yet been looked up.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.store)
}
