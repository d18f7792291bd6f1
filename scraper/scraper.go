// Package scraper extracts structured tour records from arbitrary HTML pages
// using a prioritized chain of heuristic strategies.
package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"tourscraper/config"
)

// Strategy is one heuristic for locating tour records in a document. Each
// strategy is independent; the chain tries them in order and stops at the
// first non-empty result.
type Strategy struct {
	Name    string
	Extract func(doc *goquery.Document) []TourData
}

// DefaultStrategies is the extraction chain in priority order.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "generic-container", Extract: extractFromContainers},
		{Name: "link-based", Extract: extractFromLinks},
		{Name: "grid-based", Extract: extractFromGrids},
		{Name: "structured-data", Extract: extractFromStructuredData},
		{Name: "heading-fallback", Extract: extractFromHeadings},
	}
}

// strategiesFor layers configured site-specific selectors on top of the
// default chain. Custom container selectors become the highest-priority
// selector family; custom grid wrappers are tried before the built-in ones.
func strategiesFor(sel config.SelectorsConfig) []Strategy {
	chain := DefaultStrategies()

	if len(sel.TourContainers) > 0 {
		families := append([]string{strings.Join(sel.TourContainers, ", ")}, containerSelectorFamilies...)
		chain[0].Extract = func(doc *goquery.Document) []TourData {
			return extractFromContainerFamilies(doc, families)
		}
	}
	if len(sel.GridWrappers) > 0 {
		wrappers := append(append([]string{}, sel.GridWrappers...), gridWrapperSelectors...)
		chain[2].Extract = func(doc *goquery.Document) []TourData {
			return extractFromGridWrappers(doc, wrappers)
		}
	}
	return chain
}

// CleanText removes extra whitespace from text.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, "\t", " ")

	for strings.Contains(text, "  ") {
		text = strings.ReplaceAll(text, "  ", " ")
	}

	return strings.TrimSpace(text)
}
