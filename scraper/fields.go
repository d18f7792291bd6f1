package scraper

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Prioritized selector lists for per-element field extraction. Earlier
// entries are more specific and win over later ones.
var (
	titleSelectors = []string{
		".tour-title", ".package-title", ".product-title", ".card-title",
		"h1", "h2", "h3", "h4", ".title", ".name", "a",
	}
	descriptionSelectors = []string{
		".description", ".summary", ".excerpt", ".card-text", ".tour-description", "p",
	}
	priceSelectors = []string{
		".price", ".cost", ".amount", ".tour-price", "[class*='price']", "[class*='cost']",
	}
	durationSelectors = []string{
		".duration", ".days", ".tour-duration", "[class*='duration']", "[class*='days']",
	}
	locationSelectors = []string{
		".location", ".destination", ".region", "[class*='location']", "[class*='destination']",
	}
	highlightSelectors = []string{".highlights li", ".tour-highlights li"}
	includeSelectors   = []string{".includes li", ".included li", ".inclusions li"}
	excludeSelectors   = []string{".excludes li", ".not-included li", ".exclusions li"}
)

const maxListItems = 10

var (
	priceRe    = regexp.MustCompile(`(?i)(US\$|S/\.?|[$€£]|\b(?:USD|EUR|GBP|PEN)\b)\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)
	dollarRe   = regexp.MustCompile(`\$\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)
	durationRe = regexp.MustCompile(`(?i)\b(\d+)\s*(days?|nights?|hours?|weeks?)\b`)

	numericOnlyRe = regexp.MustCompile(`^[\d\s.,:%$-]+$`)
	bgImageRe     = regexp.MustCompile(`background-image\s*:\s*url\(['"]?([^'")]+)['"]?\)`)
)

// skipTitlePatterns are substrings that mark an element's text as site
// chrome rather than a tour name.
var skipTitlePatterns = []string{
	"home", "about us", "contact", "menu", "login", "sign in", "sign up",
	"register", "search", "newsletter", "subscribe", "privacy", "terms",
	"cookie", "copyright", "follow us", "read more", "view all", "book now",
	"facebook", "instagram", "twitter", "whatsapp",
}

// genericLeadingWords reject titles that start like navigation copy.
var genericLeadingWords = []string{"we ", "our ", "your ", "this ", "these ", "all ", "why "}

const maxImagesPerTour = 5

// imageDenyList filters out site furniture masquerading as tour photos.
var imageDenyList = []string{
	"placeholder", "icon", "logo", "sprite", "pixel", "avatar", "banner",
	"badge", "spacer", "loading", "blank", ".svg",
}

// isSkippableTitle reports whether text looks like navigation or boilerplate
// rather than a tour name.
func isSkippableTitle(text string) bool {
	if text == "" || len(text) < 4 || len(text) > 200 {
		return true
	}
	if numericOnlyRe.MatchString(text) {
		return true
	}
	lower := strings.ToLower(text)
	for _, pat := range skipTitlePatterns {
		if strings.Contains(lower, pat) {
			return true
		}
	}
	for _, w := range genericLeadingWords {
		if strings.HasPrefix(lower, w) {
			return true
		}
	}
	// ALL-CAPS strings are almost always section headers or chrome.
	if text == strings.ToUpper(text) && strings.ContainsAny(text, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		return true
	}
	return false
}

// extractTour pulls all structured fields from one candidate element. Shared
// by the container, link, and grid strategies.
func extractTour(s *goquery.Selection) TourData {
	tour := TourData{
		Title:       extractFieldTitle(s),
		Description: extractFieldDescription(s),
		Location:    extractBySelectors(s, locationSelectors),
		Price:       extractFieldPrice(s),
		Duration:    extractFieldDuration(s),
		Images:      extractImages(s),
		Highlights:  extractList(s, highlightSelectors),
		Includes:    extractList(s, includeSelectors),
		Excludes:    extractList(s, excludeSelectors),
	}

	if href, ok := s.Attr("href"); ok {
		tour.URL = href
	} else if href, ok := s.Find("a[href]").First().Attr("href"); ok {
		tour.URL = href
	}

	return tour
}

func extractFieldTitle(s *goquery.Selection) string {
	for _, sel := range titleSelectors {
		text := CleanText(s.Find(sel).First().Text())
		if text != "" && !isSkippableTitle(text) {
			return text
		}
	}
	// Anchors and headings used directly as candidates carry their own text.
	if text := CleanText(s.Text()); text != "" && !isSkippableTitle(text) && len(text) < 150 {
		return text
	}
	return ""
}

func extractFieldDescription(s *goquery.Selection) string {
	for _, sel := range descriptionSelectors {
		text := CleanText(s.Find(sel).First().Text())
		if len(text) > 20 {
			return text
		}
	}
	return ""
}

// extractList collects the items of the first matching list selector.
func extractList(s *goquery.Selection, selectors []string) []string {
	for _, sel := range selectors {
		var items []string
		s.Find(sel).Each(func(i int, li *goquery.Selection) {
			if len(items) >= maxListItems {
				return
			}
			if text := CleanText(li.Text()); text != "" {
				items = append(items, text)
			}
		})
		if len(items) > 0 {
			return items
		}
	}
	return nil
}

func extractBySelectors(s *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		if text := CleanText(s.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// extractFieldPrice returns the raw price text, e.g. "$1,299.50". It first
// tries the price selectors, then scans the element's full text.
func extractFieldPrice(s *goquery.Selection) string {
	for _, sel := range priceSelectors {
		text := CleanText(s.Find(sel).First().Text())
		if m := priceRe.FindString(text); m != "" {
			return m
		}
	}
	fullText := CleanText(s.Text())
	if m := priceRe.FindString(fullText); m != "" {
		return m
	}
	if m := dollarRe.FindString(fullText); m != "" {
		return m
	}
	return ""
}

func extractFieldDuration(s *goquery.Selection) string {
	for _, sel := range durationSelectors {
		text := CleanText(s.Find(sel).First().Text())
		if m := durationRe.FindString(text); m != "" {
			return m
		}
	}
	return durationRe.FindString(CleanText(s.Text()))
}

// extractImages collects image URLs from img attributes and inline
// background-image styles, filtered and capped.
func extractImages(s *goquery.Selection) []string {
	var images []string
	seen := make(map[string]bool)

	add := func(src string) {
		src = strings.TrimSpace(src)
		if src == "" || seen[src] || !isValidImageURL(src) {
			return
		}
		if len(images) >= maxImagesPerTour {
			return
		}
		seen[src] = true
		images = append(images, src)
	}

	s.Find("img").Each(func(i int, img *goquery.Selection) {
		for _, attr := range []string{"src", "data-src", "data-lazy-src", "data-original"} {
			if src, ok := img.Attr(attr); ok {
				add(src)
				break
			}
		}
	})

	s.Find("[style*='background-image']").Each(func(i int, el *goquery.Selection) {
		style, _ := el.Attr("style")
		if m := bgImageRe.FindStringSubmatch(style); len(m) == 2 {
			add(m[1])
		}
	})
	if style, ok := s.Attr("style"); ok {
		if m := bgImageRe.FindStringSubmatch(style); len(m) == 2 {
			add(m[1])
		}
	}

	return images
}

func isValidImageURL(src string) bool {
	if strings.HasPrefix(src, "data:") {
		return false
	}
	lower := strings.ToLower(src)
	for _, deny := range imageDenyList {
		if strings.Contains(lower, deny) {
			return false
		}
	}
	return true
}

// currencySymbols maps matched symbols and codes to ISO-ish currency codes.
var currencySymbols = map[string]string{
	"$": "USD", "US$": "USD", "USD": "USD",
	"€": "EUR", "EUR": "EUR",
	"£": "GBP", "GBP": "GBP",
	"S/": "PEN", "S/.": "PEN", "PEN": "PEN",
}

// ParsePrice extracts a numeric amount and currency code from heterogeneous
// price text. The currency defaults to USD when only a bare number matches.
func ParsePrice(text string) (float64, string) {
	m := priceRe.FindStringSubmatch(text)
	if m == nil {
		if d := dollarRe.FindStringSubmatch(text); d != nil {
			m = []string{d[0], "$", d[1]}
		} else {
			return 0, ""
		}
	}

	amount, err := strconv.ParseFloat(strings.ReplaceAll(m[2], ",", ""), 64)
	if err != nil {
		return 0, ""
	}

	currency := "USD"
	if code, ok := currencySymbols[strings.ToUpper(strings.TrimSpace(m[1]))]; ok {
		currency = code
	} else if code, ok := currencySymbols[strings.TrimSpace(m[1])]; ok {
		currency = code
	}
	return amount, currency
}
