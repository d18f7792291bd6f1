package scraper

import "strings"

// IsLikelyTour applies the minimum-evidence heuristic: a candidate needs a
// title plus at least two of {price, duration, long description, image} to
// count as a real tour rather than a navigation artifact.
func IsLikelyTour(tour TourData) bool {
	if tour.Title == "" {
		return false
	}

	evidence := 0
	if hasPrice(tour.Price) {
		evidence++
	}
	if tour.Duration != "" {
		evidence++
	}
	if len(tour.Description) > 50 {
		evidence++
	}
	if len(tour.Images) > 0 {
		evidence++
	}
	return evidence >= 2
}

// hasPrice rejects empty and comma-only price text.
func hasPrice(price string) bool {
	return strings.Trim(price, ", ") != ""
}

// Deduplicate collapses candidates sharing a normalized title. Within a
// group the candidate carrying price information wins; otherwise the last
// one seen does.
func Deduplicate(tours []TourData) []TourData {
	byKey := make(map[string]TourData)
	var order []string

	for _, tour := range tours {
		key := normalizeTitle(tour.Title)
		existing, ok := byKey[key]
		if !ok {
			order = append(order, key)
			byKey[key] = tour
			continue
		}
		if hasPrice(existing.Price) && !hasPrice(tour.Price) {
			continue
		}
		byKey[key] = tour
	}

	deduped := make([]TourData, 0, len(order))
	for _, key := range order {
		deduped = append(deduped, byKey[key])
	}
	return deduped
}

// normalizeTitle lower-cases the title and strips all whitespace so minor
// formatting differences don't defeat deduplication.
func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), "")
}
