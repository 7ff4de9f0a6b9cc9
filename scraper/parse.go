package scraper

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/gruhmate/pricewatch/models"
)

var (
	priceRe    = regexp.MustCompile(`₹\s*[\d,]+(?:\.\d+)?`)
	weightRe   = regexp.MustCompile(`(?i)\d+\s*(g|kg|ml|l|gm|ltr|pc|pcs|pack)\b`)
	unitOnlyRe = regexp.MustCompile(`(?i)^\d+\s*(g|kg|ml|l|gm|ltr|pc|pcs|pack)$`)
	bareNumRe  = regexp.MustCompile(`^\d+$`)
	percentRe  = regexp.MustCompile(`(?i)^\d+%(\s*off)?$`)
	sizeHintRe = regexp.MustCompile(`(?i)\d+\s*(g|kg|ml|l)\b`)
)

// buttonLabels are UI strings that the name line-scan must never mistake for
// a product title.
var buttonLabels = map[string]struct{}{
	"ADD":          {},
	"NOTIFY":       {},
	"Notify Me":    {},
	"Out of Stock": {},
	"Buy Now":      {},
	"Add to Cart":  {},
}

// botChallengePhrases mark Amazon's interstitial CAPTCHA page.
var botChallengePhrases = []string{
	"Enter the characters you see below",
	"Type the characters",
}

// pickCardSelector runs the site's card-selector chain against the document
// and returns the first selector that matches at least one element — and,
// when the site demands evidence, whose leading matches contain price-like
// or size-like text. Returns "" when the whole chain misses.
func pickCardSelector(doc *goquery.Document, site Site) string {
	for _, sel := range site.CardSelectors {
		matches := doc.Find(sel)
		if matches.Length() == 0 {
			continue
		}
		if site.CardEvidence && !hasProductEvidence(matches) {
			continue
		}
		return sel
	}
	return ""
}

// hasProductEvidence inspects up to the first three matches for a rupee sign
// or a quantity token, filtering out generic selectors that matched page
// chrome instead of product cards.
func hasProductEvidence(matches *goquery.Selection) bool {
	evidence := false
	matches.EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i >= 3 {
			return false
		}
		text := s.Text()
		if strings.Contains(text, "₹") || sizeHintRe.MatchString(text) {
			evidence = true
			return false
		}
		return true
	})
	return evidence
}

// isBotChallenge reports whether the document is a CAPTCHA/verification
// interstitial rather than search results.
func isBotChallenge(doc *goquery.Document) bool {
	if doc.Find(`form[action*="validateCaptcha"]`).Length() > 0 {
		return true
	}
	body := doc.Find("body").Text()
	for _, phrase := range botChallengePhrases {
		if strings.Contains(body, phrase) {
			return true
		}
	}
	return false
}

// parseProducts extracts up to site.MaxProducts product records from the
// rendered document, deduplicating by normalized name within this pass.
func parseProducts(doc *goquery.Document, site Site, cardSelector string) []models.Product {
	products := make([]models.Product, 0, site.MaxProducts)
	seen := make(map[string]struct{})

	doc.Find(cardSelector).EachWithBreak(func(_ int, card *goquery.Selection) bool {
		if len(products) >= site.MaxProducts {
			return false
		}

		p, ok := parseCard(card, site)
		if !ok {
			return true
		}
		key := models.NormalizeName(p.Name)
		if _, dup := seen[key]; dup {
			return true
		}
		seen[key] = struct{}{}
		products = append(products, p)
		return true
	})

	return products
}

// parseCard extracts one product from a card element. ok is false when no
// acceptable name could be found; everything else degrades to sentinels or
// empty strings.
func parseCard(card *goquery.Selection, site Site) (models.Product, bool) {
	name := extractName(card, site)
	if len(strings.TrimSpace(name)) < 3 {
		return models.Product{}, false
	}

	return models.Product{
		Name:   name,
		Price:  extractPrice(card, site),
		Image:  extractImage(card, site),
		Weight: extractWeight(card, site),
		Store:  site.Name,
		URL:    extractURL(card, site),
	}, true
}

// extractName walks the name-selector chain, preferring a title attribute
// over element text, then falls back to line-scanning the card's full text
// when the site allows it.
func extractName(card *goquery.Selection, site Site) string {
	for _, sel := range site.NameSelectors {
		el := card.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		name := strings.TrimSpace(el.AttrOr("title", ""))
		if name == "" {
			name = strings.TrimSpace(el.Text())
		}
		if len(name) >= 3 {
			return name
		}
	}

	if !site.NameLineScan {
		return ""
	}
	return scanNameLines(textLines(card), site)
}

// scanNameLines picks the first line of card text that does not look like a
// price, a bare number, a quantity, a discount badge, or a button label.
func scanNameLines(lines []string, site Site) string {
	minLen, maxLen := site.LineScanMinLen, site.LineScanMaxLen
	if minLen == 0 {
		minLen = 3
	}
	if maxLen == 0 {
		maxLen = 150
	}

	for _, line := range lines {
		if strings.HasPrefix(line, "₹") {
			continue
		}
		if bareNumRe.MatchString(line) || unitOnlyRe.MatchString(line) || percentRe.MatchString(line) {
			continue
		}
		if _, isButton := buttonLabels[line]; isButton {
			continue
		}
		if len(line) < minLen || len(line) > maxLen {
			continue
		}
		return line
	}
	return ""
}

// extractPrice tries the whole/fraction composition (Amazon's split price
// nodes), then the price-selector chain, then a currency regex over the
// card's raw text, before giving up with the unavailable sentinel.
func extractPrice(card *goquery.Selection, site Site) string {
	if site.PriceWholeFraction {
		if whole := strings.TrimSpace(card.Find(".a-price-whole").First().Text()); whole != "" {
			symbol := strings.TrimSpace(card.Find(".a-price-symbol").First().Text())
			if symbol == "" {
				symbol = "₹"
			}
			price := symbol + strings.ReplaceAll(whole, ",", "")
			if fraction := strings.TrimSpace(card.Find(".a-price-fraction").First().Text()); fraction != "" {
				price += "." + fraction
			}
			return price
		}
	}

	for _, sel := range site.PriceSelectors {
		if text := strings.TrimSpace(card.Find(sel).First().Text()); text != "" {
			if m := priceRe.FindString(text); m != "" {
				return strings.ReplaceAll(m, " ", "")
			}
			return text
		}
	}

	if m := priceRe.FindString(card.Text()); m != "" {
		return strings.ReplaceAll(m, " ", "")
	}
	return models.PriceUnavailable
}

// lazyImageAttrs are tried in order on each image candidate; real sources
// hide behind lazy-load attributes long before src is populated.
var lazyImageAttrs = []string{
	"data-src", "data-lazy", "data-lazy-src", "data-original",
	"srcset", "data-srcset", "src",
}

// extractImage returns the first clean, absolute image URL from the image
// chain. Inline data URIs and placeholder assets are rejected.
func extractImage(card *goquery.Selection, site Site) string {
	for _, sel := range site.ImageSelectors {
		src := ""
		card.Find(sel).EachWithBreak(func(_ int, img *goquery.Selection) bool {
			for _, attr := range lazyImageAttrs {
				v := img.AttrOr(attr, "")
				if v == "" {
					continue
				}
				if attr == "srcset" || attr == "data-srcset" {
					fields := strings.Fields(v)
					if len(fields) == 0 {
						continue
					}
					v = fields[0]
				}
				if usableImageSrc(v) {
					src = v
					return false
				}
			}
			return true
		})
		if src != "" {
			return resolveURL(site.Origin, src)
		}
	}
	return ""
}

func usableImageSrc(src string) bool {
	if len(src) <= 10 {
		return false
	}
	if strings.Contains(src, "data:image") || strings.Contains(src, "base64") {
		return false
	}
	return !strings.Contains(src, "placeholder")
}

// extractURL resolves the product link, checking the card itself first
// (several retailers render the whole card as an anchor) and then the link
// chain.
func extractURL(card *goquery.Selection, site Site) string {
	if href := card.AttrOr("href", ""); href != "" {
		return resolveURL(site.Origin, href)
	}
	for _, sel := range site.LinkSelectors {
		if href := card.Find(sel).First().AttrOr("href", ""); href != "" {
			return resolveURL(site.Origin, href)
		}
	}
	return ""
}

// extractWeight tries the weight-selector chain, then a unit-suffixed
// quantity regex over the card text when enabled.
func extractWeight(card *goquery.Selection, site Site) string {
	for _, sel := range site.WeightSelectors {
		if text := strings.TrimSpace(card.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	if site.WeightRegex {
		return weightRe.FindString(card.Text())
	}
	return ""
}

// resolveURL makes a possibly-relative reference absolute against the
// site's origin.
func resolveURL(origin, ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	if strings.HasPrefix(ref, "//") {
		return "https:" + ref
	}
	if !strings.HasPrefix(ref, "/") {
		return origin + "/" + ref
	}
	return origin + ref
}

// textLines approximates the browser's innerText line splitting: every text
// node in the selection becomes one trimmed, non-empty line.
func textLines(sel *goquery.Selection) []string {
	var lines []string
	for _, node := range sel.Nodes {
		collectTextLines(node, &lines)
	}
	return lines
}

func collectTextLines(n *html.Node, lines *[]string) {
	if n.Type == html.TextNode {
		if line := strings.TrimSpace(n.Data); line != "" {
			*lines = append(*lines, line)
		}
		return
	}
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectTextLines(c, lines)
	}
}
