// Package browser owns the shared headless-browser instance. All extractors
// open transient pages (tabs) inside one lazily-launched browser process;
// concurrent launch requests are coalesced so only one Chrome ever starts.
package browser

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"golang.org/x/sync/singleflight"

	"github.com/gruhmate/pricewatch/config"
	"github.com/gruhmate/pricewatch/models"
)

// Pool manages the singleton browser handle. It is safe for concurrent use.
type Pool struct {
	cfg config.BrowserConfig

	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher

	launches    singleflight.Group
	activePages atomic.Int32
}

// NewPool creates a Pool. The browser is not launched until the first
// Acquire call.
func NewPool(cfg config.BrowserConfig) *Pool {
	return &Pool{cfg: cfg}
}

// Acquire returns the live shared browser, launching it on first use and
// relaunching it transparently if the previous process died. Concurrent
// callers during a launch all wait on the same launch attempt. A failed
// launch is not cached; the next Acquire retries from scratch.
func (p *Pool) Acquire(ctx context.Context) (*rod.Browser, error) {
	if b := p.connected(); b != nil {
		return b, nil
	}

	v, err, _ := p.launches.Do("launch", func() (any, error) {
		// Re-check under the flight: another caller may have finished
		// the launch between our connected() check and now.
		if b := p.connected(); b != nil {
			return b, nil
		}
		return p.launch()
	})
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return v.(*rod.Browser), nil
}

// connected returns the cached browser if its process still answers, and
// clears the handle otherwise so Acquire relaunches.
func (p *Pool) connected() *rod.Browser {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.browser == nil {
		return nil
	}
	if _, err := (proto.BrowserGetVersion{}).Call(p.browser); err != nil {
		slog.Warn("browser connection lost, will relaunch", "error", err)
		p.browser = nil
		p.launcher = nil
		return nil
	}
	return p.browser
}

// launch starts a fresh browser process and caches the handle.
func (p *Pool) launch() (*rod.Browser, error) {
	l := newLauncher(p.cfg)

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeLaunch,
			"failed to launch browser",
			err,
		)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, models.NewScrapeError(
			models.ErrCodeLaunch,
			"failed to connect to browser",
			err,
		)
	}
	slog.Info("browser launched",
		"controlURL", controlURL,
		"serverless", p.cfg.Serverless,
	)

	p.mu.Lock()
	p.browser = b
	p.launcher = l
	p.mu.Unlock()

	return b, nil
}

// newLauncher builds the launch configuration for the current execution
// environment. The serverless profile targets constrained runtimes (limited
// /dev/shm, process caps) and needs an externally provided Chromium binary;
// the local profile uses rod's managed download. Both disable sandboxing,
// GPU and the automation-detection surfaces.
func newLauncher(cfg config.BrowserConfig) *launcher.Launcher {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.DefaultProxy != "" {
		l = l.Proxy(cfg.DefaultProxy)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "IsolateOrigins,site-per-process,TranslateUI")
	l.Set(flags.Flag("disable-gpu"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-setuid-sandbox"))
	l.Set(flags.Flag("disable-web-security"))
	l.Set(flags.Flag("disable-background-networking"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-breakpad"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("disable-hang-monitor"))
	l.Set(flags.Flag("disable-ipc-flooding-protection"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-prompt-on-repost"))
	l.Set(flags.Flag("disable-sync"))
	l.Set(flags.Flag("metrics-recording-only"))
	l.Set(flags.Flag("mute-audio"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("no-default-browser-check"))

	if cfg.Serverless {
		l.Set(flags.Flag("single-process"))
		l.Set(flags.Flag("no-zygote"))
	}

	return l
}

// NewPage opens a fresh page in the shared browser. The caller must release
// it with PutPage on every code path.
func (p *Pool) NewPage(ctx context.Context) (*rod.Page, error) {
	b, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeLaunch,
			"failed to open page",
			err,
		)
	}
	p.activePages.Add(1)
	return page, nil
}

// PutPage closes a page obtained from NewPage. Safe to call with nil.
func (p *Pool) PutPage(page *rod.Page) {
	if page == nil {
		return
	}
	p.activePages.Add(-1)
	if err := page.Close(); err != nil {
		slog.Warn("page close failed", "error", err)
	}
}

// Stats returns a snapshot of the browser state for the health endpoint.
func (p *Pool) Stats() models.BrowserStats {
	p.mu.Lock()
	alive := p.browser != nil
	p.mu.Unlock()

	return models.BrowserStats{
		Connected:   alive,
		ActivePages: int(p.activePages.Load()),
	}
}

// Close shuts the browser down. Idempotent; invoked on process shutdown.
func (p *Pool) Close() {
	p.mu.Lock()
	b := p.browser
	l := p.launcher
	p.browser = nil
	p.launcher = nil
	p.mu.Unlock()

	if b == nil {
		return
	}
	slog.Info("closing browser")
	if err := b.Close(); err != nil {
		slog.Warn("browser close failed", "error", err)
	}
	if l != nil {
		l.Kill()
	}
}
