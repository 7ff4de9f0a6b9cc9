package cache

import (
	"testing"
	"time"

	"github.com/gruhmate/pricewatch/models"
)

func testComparison(msg string) *models.Comparison {
	return &models.Comparison{
		Sites: map[string][]models.Product{
			"zepto": {{Name: "Basmati Rice", Price: "₹120", Store: "Zepto"}},
		},
		Message: msg,
	}
}

func TestSetThenGet(t *testing.T) {
	c := New(10 * time.Minute)
	want := testComparison("found stuff")

	c.Set("rice", "Mumbai", want)

	got, ok := c.Get("rice", "Mumbai")
	if !ok {
		t.Fatal("expected a cache hit immediately after Set")
	}
	if got != want {
		t.Errorf("cache returned a different comparison: got %p, want %p", got, want)
	}
}

func TestGetMiss(t *testing.T) {
	c := New(10 * time.Minute)
	if _, ok := c.Get("rice", "Mumbai"); ok {
		t.Error("expected a miss on an empty cache")
	}
}

func TestExpiry(t *testing.T) {
	c := New(10 * time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set("rice", "Mumbai", testComparison("fresh"))

	// Just inside the TTL.
	now = now.Add(10*time.Minute - time.Second)
	if _, ok := c.Get("rice", "Mumbai"); !ok {
		t.Error("entry expired before the TTL elapsed")
	}

	// Past the TTL: entry is absent and evicted.
	now = now.Add(2 * time.Second)
	if _, ok := c.Get("rice", "Mumbai"); ok {
		t.Error("entry survived past the TTL")
	}
	if c.Len() != 0 {
		t.Errorf("stale entry was not evicted on lookup, %d entries remain", c.Len())
	}
}

func TestKeyNormalization(t *testing.T) {
	c := New(10 * time.Minute)
	c.Set("Milk", "Mumbai", testComparison("dairy"))

	got, ok := c.Get(" milk ", "MUMBAI")
	if !ok {
		t.Fatal("differently-cased query/location should hit the same entry")
	}
	if got.Message != "dairy" {
		t.Errorf("got message %q, want %q", got.Message, "dairy")
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		query, location string
		want            string
	}{
		{"Milk", "Mumbai", "milk_mumbai"},
		{" milk ", "MUMBAI", "milk_mumbai"},
		{"iPhone 15", "Delhi", "iphone 15_delhi"},
	}
	for _, tt := range tests {
		if got := Key(tt.query, tt.location); got != tt.want {
			t.Errorf("Key(%q, %q) = %q, want %q", tt.query, tt.location, got, tt.want)
		}
	}
}

func TestSetOverwrites(t *testing.T) {
	c := New(10 * time.Minute)
	c.Set("rice", "Mumbai", testComparison("old"))
	c.Set("rice", "Mumbai", testComparison("new"))

	got, ok := c.Get("rice", "Mumbai")
	if !ok {
		t.Fatal("expected a hit")
	}
	if got.Message != "new" {
		t.Errorf("got message %q, want the overwritten entry", got.Message)
	}
	if c.Len() != 1 {
		t.Errorf("overwrite should not grow the cache, got %d entries", c.Len())
	}
}
