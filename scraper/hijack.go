package scraper

import (
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// configToProto maps human-readable config strings to Rod protocol resource types.
var configToProto = map[string]proto.NetworkResourceType{
	"Image":      proto.NetworkResourceTypeImage,
	"Stylesheet": proto.NetworkResourceTypeStylesheet,
	"Font":       proto.NetworkResourceTypeFont,
	"Media":      proto.NetworkResourceTypeMedia,
	"Script":     proto.NetworkResourceTypeScript,
}

// trackerFragments is the deny-list of analytics/advertising host fragments.
// Requests whose URL contains any fragment are aborted; none of them carry
// product data and several feed the sites' bot-scoring pipelines.
var trackerFragments = []string{
	"google-analytics",
	"googletagmanager",
	"googlesyndication",
	"doubleclick",
	"amazon-adsystem",
	"facebook",
	"hotjar",
	"mixpanel",
	"/analytics",
}

// isTrackerURL matches a request URL against the deny-list by substring.
func isTrackerURL(u string) bool {
	u = strings.ToLower(u)
	for _, fragment := range trackerFragments {
		if strings.Contains(u, fragment) {
			return true
		}
	}
	return false
}

// mountHijack installs a request interceptor that aborts the site's blocked
// resource types and, when enabled, requests to known tracker hosts.
// Everything else continues unmodified.
//
// Returns the running HijackRouter so the caller can defer router.Stop(),
// or nil when there is nothing to block.
func mountHijack(page *rod.Page, site Site) *rod.HijackRouter {
	blocked := make(map[proto.NetworkResourceType]struct{}, len(site.BlockedResources))
	for _, name := range site.BlockedResources {
		if rt, ok := configToProto[name]; ok {
			blocked[rt] = struct{}{}
		}
	}
	if len(blocked) == 0 && !site.BlockTrackers {
		return nil
	}

	router := page.HijackRequests()

	_ = router.Add("*", "", func(ctx *rod.Hijack) {
		if _, shouldBlock := blocked[ctx.Request.Type()]; shouldBlock {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		if site.BlockTrackers && isTrackerURL(ctx.Request.URL().String()) {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// router.Run() blocks, so it must live in its own goroutine.
	// It will exit when router.Stop() is called.
	go router.Run()

	return router
}
