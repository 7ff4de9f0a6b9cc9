package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/gruhmate/pricewatch/api"
	"github.com/gruhmate/pricewatch/browser"
	"github.com/gruhmate/pricewatch/cache"
	"github.com/gruhmate/pricewatch/compare"
	"github.com/gruhmate/pricewatch/config"
	"github.com/gruhmate/pricewatch/scraper"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	_ = godotenv.Load()
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("pricewatch starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"serverless", cfg.Browser.Serverless,
	)

	// ── 3. Browser pool (lazy: Chrome launches on the first search) ─
	pool := browser.NewPool(cfg.Browser)
	defer pool.Close()

	// ── 4. Site extractors ──────────────────────────────────────────
	grocery, tech, err := buildExtractors(pool, cfg.Scraper)
	if err != nil {
		slog.Error("failed to initialise extractors", "error", err)
		os.Exit(1)
	}

	// ── 5. Cache + orchestrator ─────────────────────────────────────
	cc := cache.New(cfg.Cache.TTL)
	orchestrator := compare.New(pool, cc, grocery, tech)

	// ── 6. Router + HTTP server ─────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(orchestrator, pool, cfg, startTime)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Give in-flight requests 5 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// pool.Close() runs via defer — kills Chrome and any open pages.
	slog.Info("pricewatch stopped")
}

// buildExtractors wires the retailer extractor pairs for both categories.
func buildExtractors(pool *browser.Pool, cfg config.ScraperConfig) (grocery, tech []compare.Extractor, err error) {
	for _, site := range []scraper.Site{scraper.Zepto(), scraper.JioMart()} {
		ex, err := scraper.New(site, pool, cfg)
		if err != nil {
			return nil, nil, err
		}
		grocery = append(grocery, ex)
	}
	for _, site := range []scraper.Site{scraper.Amazon(), scraper.Flipkart()} {
		ex, err := scraper.New(site, pool, cfg)
		if err != nil {
			return nil, nil, err
		}
		tech = append(tech, ex)
	}
	return grocery, tech, nil
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
