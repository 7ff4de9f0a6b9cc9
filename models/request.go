package models

// SearchRequest is the payload for POST /search-grocery and POST /search-tech.
type SearchRequest struct {
	// Product is the search term. Required.
	Product string `json:"product"`

	// Location is the delivery location used by location-aware retailers.
	// Defaults to "Mumbai".
	Location string `json:"location,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *SearchRequest) Defaults() {
	if r.Location == "" {
		r.Location = "Mumbai"
	}
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status  string       `json:"status"` // "healthy" or "degraded"
	Uptime  string       `json:"uptime"`
	Browser BrowserStats `json:"browser"`
	Version string       `json:"version"`
}

// BrowserStats reports the state of the shared browser instance.
type BrowserStats struct {
	Connected   bool `json:"connected"`
	ActivePages int  `json:"active_pages"`
}
