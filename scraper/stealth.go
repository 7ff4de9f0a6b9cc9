package scraper

import (
	"log/slog"
	"net/url"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"
)

// fingerprintJS patches the classic headless giveaways before any page
// script runs: the webdriver flag, the empty plugin and language lists, the
// missing window.chrome object, and the erroring notification-permission
// probe. Applied on top of stealth.JS, which covers the long tail.
const fingerprintJS = `() => {
	Object.defineProperty(navigator, 'webdriver', { get: () => false });
	Object.defineProperty(navigator, 'plugins', {
		get: () => [
			{ name: 'Chrome PDF Plugin' },
			{ name: 'Chrome PDF Viewer' },
			{ name: 'Native Client' },
		],
	});
	Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
	window.chrome = window.chrome || { runtime: {} };

	const originalQuery = window.navigator.permissions.query.bind(window.navigator.permissions);
	window.navigator.permissions.query = (parameters) =>
		parameters.name === 'notifications'
			? Promise.resolve({ state: Notification.permission })
			: originalQuery(parameters);
}`

// webglJS masks the SwiftShader renderer strings that betray a GPU-less
// headless Chrome. 37445/37446 are UNMASKED_VENDOR_WEBGL and
// UNMASKED_RENDERER_WEBGL.
const webglJS = `() => {
	const getParameter = WebGLRenderingContext.prototype.getParameter;
	WebGLRenderingContext.prototype.getParameter = function (parameter) {
		if (parameter === 37445) return 'Intel Inc.';
		if (parameter === 37446) return 'Intel Iris OpenGL Engine';
		return getParameter.apply(this, [parameter]);
	};
}`

// genuineHeaders are the navigation headers a real Chrome sends; the
// hardened profile pins them so the intercepted requests don't stand out.
var genuineHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.9",
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "none",
	"Upgrade-Insecure-Requests": "1",
}

// applyStealth configures the page's fingerprint before navigation: viewport
// and user agent per site, the anti-detection scripts, and — for the
// hardened profile — WebGL spoofing plus genuine-browser request headers and
// a plausible search-engine Referer. Everything here must run before
// Navigate; new-document scripts only affect subsequent navigations.
func applyStealth(page *rod.Page, site Site) {
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             site.ViewportWidth,
		Height:            site.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		slog.Warn("viewport override failed", "store", site.Name, "error", err)
	}

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      site.UserAgent,
		AcceptLanguage: "en-US,en;q=0.9",
	}); err != nil {
		slog.Warn("user agent override failed", "store", site.Name, "error", err)
	}

	if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
		slog.Warn("stealth script injection failed", "store", site.Name, "error", err)
	}
	if _, err := page.EvalOnNewDocument(fingerprintJS); err != nil {
		slog.Warn("fingerprint override injection failed", "store", site.Name, "error", err)
	}

	if site.Hardened {
		if _, err := page.EvalOnNewDocument(webglJS); err != nil {
			slog.Warn("webgl override injection failed", "store", site.Name, "error", err)
		}
		setExtraHeaders(page, site)
	}
}

// setExtraHeaders installs the genuine-browser header set plus a Google
// search Referer for the site's hostname.
func setExtraHeaders(page *rod.Page, site Site) {
	headers := make(map[string]string, len(genuineHeaders)+1)
	for k, v := range genuineHeaders {
		headers[k] = v
	}
	if u, err := url.Parse(site.Origin); err == nil {
		headers["Referer"] = "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())
	}

	if err := (proto.NetworkSetExtraHTTPHeaders{
		Headers: toHeadersMap(headers),
	}.Call(page)); err != nil {
		slog.Warn("extra headers failed", "store", site.Name, "error", err)
	}
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
