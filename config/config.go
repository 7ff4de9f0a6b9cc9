package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Scraper   ScraperConfig
	Cache     CacheConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 5000
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the shared headless-browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker and serverless).
	NoSandbox bool // default: true

	// Serverless forces the constrained launch profile (single process,
	// no zygote, bundled binary). Also enabled automatically when the
	// VERCEL or AWS_LAMBDA_FUNCTION_NAME environment variables are set.
	Serverless bool

	// BrowserBin overrides the Chromium binary path. Required in the
	// serverless profile, optional locally.
	BrowserBin string

	// DefaultProxy is the proxy URL applied to all pages, if any.
	DefaultProxy string
}

// ScraperConfig controls extraction behavior shared by all site extractors.
// Each retailer carries its own tuning; the overrides here apply to every
// site when set.
type ScraperConfig struct {
	// MaxProducts caps the number of products returned per site per call.
	MaxProducts int // default: 10

	// NavTimeout bounds a single page navigation.
	NavTimeout time.Duration // default: 0 (per-site tuning)

	// SelectorTimeout bounds each individual selector-probe wait.
	SelectorTimeout time.Duration // default: 3s

	// SettleDelay is the base post-navigation pause before probing;
	// a random jitter of up to half this value is added on top.
	SettleDelay time.Duration // default: 0 (per-site tuning)

	// BlockedResourceTypes lists resource types aborted by the request
	// interceptor. default: empty (per-site tuning)
	BlockedResourceTypes []string
}

// CacheConfig controls the comparison result cache.
type CacheConfig struct {
	// TTL is how long a cached comparison stays valid.
	TTL time.Duration // default: 10m
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication. Off by default so the
	// search endpoints stay open, matching the public comparison API.
	Enabled bool // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-identity rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key or client IP.
	RequestsPerSecond float64 // default: 2

	// Burst is the maximum burst size per identity.
	Burst int // default: 5
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	serverless := envBoolOr("PRICEWATCH_SERVERLESS", false) ||
		os.Getenv("VERCEL") != "" ||
		os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""

	return &Config{
		Server: ServerConfig{
			Host: envOr("PRICEWATCH_HOST", "0.0.0.0"),
			Port: envIntOr("PRICEWATCH_PORT", 5000),
			Mode: envOr("PRICEWATCH_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:     envBoolOr("PRICEWATCH_HEADLESS", true),
			NoSandbox:    envBoolOr("PRICEWATCH_NO_SANDBOX", true),
			Serverless:   serverless,
			BrowserBin:   os.Getenv("PRICEWATCH_BROWSER_BIN"),
			DefaultProxy: os.Getenv("PRICEWATCH_PROXY"),
		},
		Scraper: ScraperConfig{
			MaxProducts:          envIntOr("PRICEWATCH_MAX_PRODUCTS", 10),
			NavTimeout:           envDurationOr("PRICEWATCH_NAV_TIMEOUT", 0),
			SelectorTimeout:      envDurationOr("PRICEWATCH_SELECTOR_TIMEOUT", 3*time.Second),
			SettleDelay:          envDurationOr("PRICEWATCH_SETTLE_DELAY", 0),
			BlockedResourceTypes: envSliceOr("PRICEWATCH_BLOCKED_RESOURCES", nil),
		},
		Cache: CacheConfig{
			TTL: envDurationOr("PRICEWATCH_CACHE_TTL", 10*time.Minute),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("PRICEWATCH_AUTH_ENABLED", false),
			APIKeys: envSliceOr("PRICEWATCH_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("PRICEWATCH_RATE_RPS", 2.0),
			Burst:             envIntOr("PRICEWATCH_RATE_BURST", 5),
		},
		Log: LogConfig{
			Level:  envOr("PRICEWATCH_LOG_LEVEL", "info"),
			Format: envOr("PRICEWATCH_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
