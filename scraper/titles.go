package scraper

import (
	"regexp"
	"strings"
)

// Many operator sites embed duration, price, and destinations inside the
// title itself, e.g. "Sacred Valley Tour 5 days from $299 Cusco, Sacred
// Valley". The structured pass splits that in one match; the fallback pass
// strips the pieces one regex at a time.

var (
	structuredTitleRe = regexp.MustCompile(`(?i)^(.+?)\s+(\d+\s*(?:days?|nights?|hours?|weeks?))\s*(?:from\s+)?((?:US\$|S/\.?|[$€£])?\s*[0-9][0-9,]*(?:\.[0-9]{1,2})?)\s*(.*)$`)
	titlePriceRe      = regexp.MustCompile(`(?i)(?:from\s+)?(?:US\$|S/\.?|[$€£])\s*[0-9][0-9,]*(?:\.[0-9]{1,2})?`)
	trailingFromRe    = regexp.MustCompile(`(?i)\s+from\s*$`)
	trailingJunkRe    = regexp.MustCompile(`[\s,;:|-]+$`)
)

// CleanTitle strips embedded duration/price/destination noise from the
// candidate's title and back-fills any field the noise carried.
func CleanTitle(tour *TourData, keywords []string) {
	title := CleanText(tour.Title)
	if title == "" {
		return
	}

	if m := structuredTitleRe.FindStringSubmatch(title); m != nil {
		title = m[1]
		if tour.Duration == "" {
			tour.Duration = CleanText(m[2])
		}
		if tour.Price == "" {
			tour.Price = CleanText(m[3])
		}
		if dests := extractDestinations(m[4], keywords); len(dests) > 0 && tour.Location == "" {
			tour.Location = strings.Join(dests, ", ")
		}
	} else {
		if m := durationRe.FindString(title); m != "" {
			if tour.Duration == "" {
				tour.Duration = m
			}
			title = strings.Replace(title, m, "", 1)
		}
		if m := titlePriceRe.FindString(title); m != "" {
			if tour.Price == "" {
				tour.Price = CleanText(m)
			}
			title = strings.Replace(title, m, "", 1)
		}
		title = trailingFromRe.ReplaceAllString(title, "")
		if dests := extractDestinations(title, keywords); len(dests) > 0 && tour.Location == "" {
			tour.Location = strings.Join(dests, ", ")
		}
	}

	tour.Title = trailingJunkRe.ReplaceAllString(CleanText(title), "")
}

// extractDestinations finds known place names in text, case-insensitively.
// A keyword contained in a longer matched keyword is dropped, which also
// keeps a partial match like "Colca" from leaving a stray "Canyon" behind
// next to "Colca Canyon". Repeated mentions collapse to one.
func extractDestinations(text string, keywords []string) []string {
	lower := strings.ToLower(text)

	var found []string
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			found = append(found, kw)
		}
	}

	var dests []string
	seen := make(map[string]bool)
	for _, kw := range found {
		contained := false
		for _, other := range found {
			if other != kw && strings.Contains(strings.ToLower(other), strings.ToLower(kw)) {
				contained = true
				break
			}
		}
		key := strings.ToLower(kw)
		if contained || seen[key] {
			continue
		}
		seen[key] = true
		dests = append(dests, kw)
	}
	return dests
}
