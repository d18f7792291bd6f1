package scraper

import "context"

// Activity is the structured output record for one bookable tour.
type Activity struct {
	ID          string   `json:"id"`
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Location    string   `json:"location"`
	Price       float64  `json:"price"`
	Currency    string   `json:"currency"`
	Duration    string   `json:"duration"`
	Images      []string `json:"images"`
	Highlights  []string `json:"highlights,omitempty"`
	Includes    []string `json:"includes,omitempty"`
	Excludes    []string `json:"excludes,omitempty"`
}

// TourData is a pre-validation candidate pulled out of the page. The title
// may still carry embedded duration/price text, and Price holds the raw text
// it was matched from.
type TourData struct {
	Title       string
	Description string
	Location    string
	Price       string
	Duration    string
	URL         string
	Images      []string
	Highlights  []string
	Includes    []string
	Excludes    []string
}

// Result is the outcome of a single ScrapeURL call.
type Result struct {
	Success bool       `json:"success"`
	Data    []Activity `json:"data"`
	Errors  []string   `json:"errors,omitempty"`
}

// Fetcher fetches a URL and returns the rendered HTML. Both the headless
// browser pool and the plain HTTP client satisfy it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}
