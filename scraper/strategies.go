package scraper

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// containerSelectorFamilies is the ordered list of selector families tried by
// the generic-container strategy. The first family producing a titled
// candidate wins.
var containerSelectorFamilies = []string{
	".tour, .tour-item, .tour-card, .package, .package-item, .product, .product-item, .trip, .excursion, .activity-card",
	".card, .item, .listing, .grid-item, .col, .column",
	"a[href*='/tour'], a[href*='/package'], a[href*='/trip'], a[href*='/excursion'], a[href*='/activity']",
	"li",
}

var tourPathRe = regexp.MustCompile(`(?i)/(tours?|packages?|trips?|excursions?|activities|experiences?)(/|$|\?)`)

// gridWrapperSelectors are common grid/list wrappers whose direct children
// are treated as candidates by the grid strategy.
var gridWrapperSelectors = []string{
	".grid", ".row", ".cards", ".list", ".tours", ".packages", ".products",
	"ul.products", ".tour-list", ".tour-grid",
}

// extractFromContainers tries each selector family in order and keeps the
// first one that yields at least one candidate with a usable title.
func extractFromContainers(doc *goquery.Document) []TourData {
	return extractFromContainerFamilies(doc, containerSelectorFamilies)
}

func extractFromContainerFamilies(doc *goquery.Document, families []string) []TourData {
	for _, family := range families {
		var tours []TourData
		doc.Find(family).Each(func(i int, s *goquery.Selection) {
			tour := extractTour(s)
			if tour.Title != "" {
				tours = append(tours, tour)
			}
		})
		if len(tours) > 0 {
			return tours
		}
	}
	return nil
}

// extractFromLinks scans every anchor with a tour-like path, deduplicating by
// href and pulling the remaining fields from the anchor's containing element.
func extractFromLinks(doc *goquery.Document) []TourData {
	var tours []TourData
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(i int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !tourPathRe.MatchString(href) || seen[href] {
			return
		}
		seen[href] = true

		title := CleanText(a.Text())
		if title == "" || isSkippableTitle(title) {
			title = nearbyHeading(a)
		}
		if title == "" {
			title = titleFromSlug(href)
		}
		if title == "" || isSkippableTitle(title) {
			return
		}

		container := a.Closest("article, section, li, div")
		if container.Length() == 0 {
			container = a.Parent()
		}

		tours = append(tours, TourData{
			Title:       title,
			Description: extractFieldDescription(container),
			Location:    extractBySelectors(container, locationSelectors),
			Price:       extractFieldPrice(container),
			Duration:    extractFieldDuration(container),
			Images:      extractImages(container),
			URL:         href,
		})
	})

	return tours
}

// nearbyHeading looks for a heading in the anchor's parent chain.
func nearbyHeading(a *goquery.Selection) string {
	for _, scope := range []*goquery.Selection{a.Parent(), a.Parent().Parent()} {
		text := CleanText(scope.Find("h1, h2, h3, h4").First().Text())
		if text != "" && !isSkippableTitle(text) {
			return text
		}
	}
	return ""
}

// titleFromSlug converts the last path segment of a URL into a readable
// title, e.g. "/tours/sacred-valley-tour" -> "Sacred Valley Tour".
func titleFromSlug(href string) string {
	path := href
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimRight(path, "/")
	seg := path[strings.LastIndex(path, "/")+1:]
	if seg == "" || tourPathRe.MatchString("/"+seg+"/") {
		return ""
	}

	words := strings.FieldsFunc(seg, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	title := strings.Join(words, " ")
	if len(title) < 4 {
		return ""
	}
	return title
}

// extractFromGrids walks common grid wrappers and treats each direct child
// with enough text as a candidate element.
func extractFromGrids(doc *goquery.Document) []TourData {
	return extractFromGridWrappers(doc, gridWrapperSelectors)
}

func extractFromGridWrappers(doc *goquery.Document, wrappers []string) []TourData {
	var tours []TourData
	for _, wrapper := range wrappers {
		doc.Find(wrapper).Each(func(i int, grid *goquery.Selection) {
			grid.Children().Each(func(j int, child *goquery.Selection) {
				if len(CleanText(child.Text())) <= 20 {
					return
				}
				tour := extractTour(child)
				if tour.Title != "" {
					tours = append(tours, tour)
				}
			})
		})
		if len(tours) > 0 {
			return tours
		}
	}
	return nil
}

// ldEntry mirrors the schema.org fields we care about. Image and Type accept
// both scalar and array forms.
type ldEntry struct {
	Type        json.RawMessage `json:"@type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Image       json.RawMessage `json:"image"`
	Location    *ldLocation     `json:"location"`
	Offers      *ldOffers       `json:"offers"`
	Graph       []ldEntry       `json:"@graph"`
}

type ldLocation struct {
	Name string `json:"name"`
}

type ldOffers struct {
	Price         json.RawMessage `json:"price"`
	PriceCurrency string          `json:"priceCurrency"`
}

var acceptedLDTypes = map[string]bool{
	"Product": true, "TouristTrip": true, "Event": true,
}

// extractFromStructuredData parses every application/ld+json block and maps
// accepted schema.org types onto tour candidates. Malformed blocks are
// skipped without aborting the strategy.
func extractFromStructuredData(doc *goquery.Document) []TourData {
	var tours []TourData

	doc.Find("script[type='application/ld+json']").Each(func(i int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}

		var entries []ldEntry
		var single ldEntry
		if err := json.Unmarshal([]byte(raw), &single); err == nil {
			entries = append(entries, single)
			entries = append(entries, single.Graph...)
		} else if err := json.Unmarshal([]byte(raw), &entries); err != nil {
			return
		}

		for _, entry := range entries {
			if tour, ok := tourFromLDEntry(entry); ok {
				tours = append(tours, tour)
			}
		}
	})

	return tours
}

func tourFromLDEntry(entry ldEntry) (TourData, bool) {
	if entry.Name == "" || !hasAcceptedType(entry.Type) {
		return TourData{}, false
	}

	tour := TourData{
		Title:       CleanText(entry.Name),
		Description: CleanText(entry.Description),
		Images:      ldImages(entry.Image),
	}
	if entry.Location != nil {
		tour.Location = CleanText(entry.Location.Name)
	}
	if entry.Offers != nil {
		tour.Price = ldPrice(entry.Offers)
	}
	return tour, true
}

func hasAcceptedType(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var typ string
	if err := json.Unmarshal(raw, &typ); err == nil {
		return acceptedLDTypes[typ]
	}
	var types []string
	if err := json.Unmarshal(raw, &types); err == nil {
		for _, t := range types {
			if acceptedLDTypes[t] {
				return true
			}
		}
	}
	return false
}

// ldPrice renders offers.price plus currency as price text so the shared
// parsing path handles it like any other extracted price.
func ldPrice(offers *ldOffers) string {
	if len(offers.Price) == 0 {
		return ""
	}
	price := strings.Trim(string(offers.Price), `"`)
	if price == "" {
		return ""
	}
	currency := offers.PriceCurrency
	if currency == "" {
		currency = "USD"
	}
	return currency + " " + price
}

func ldImages(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if single == "" {
			return nil
		}
		return []string{single}
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) > maxImagesPerTour {
			list = list[:maxImagesPerTour]
		}
		return list
	}
	var obj struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.URL != "" {
		return []string{obj.URL}
	}
	return nil
}

// extractFromHeadings is the last resort: headings in a plausible title
// range anchor candidates, with the remaining fields pulled from the closest
// tour-like ancestor.
func extractFromHeadings(doc *goquery.Document) []TourData {
	var tours []TourData

	doc.Find("h1, h2, h3").Each(func(i int, h *goquery.Selection) {
		title := CleanText(h.Text())
		if len(title) < 10 || len(title) > 120 || isSkippableTitle(title) {
			return
		}

		container := h.Closest(".tour, .package, .card, .item, article, section, li")
		if container.Length() == 0 {
			container = h.Parent()
		}

		tours = append(tours, TourData{
			Title:       title,
			Description: extractFieldDescription(container),
			Location:    extractBySelectors(container, locationSelectors),
			Price:       extractFieldPrice(container),
			Duration:    extractFieldDuration(container),
			Images:      extractImages(container),
		})
	})

	return tours
}
