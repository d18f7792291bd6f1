package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"tourscraper/config"
	"tourscraper/logger"
)

const (
	defaultLocation = "Various Locations"
	defaultCurrency = "USD"
	defaultDuration = "Varies"
)

// Service wires the fetch layer, the strategy chain, validation, and
// post-processing into a single scrape operation.
type Service struct {
	fetcher    Fetcher
	strategies []Strategy
	keywords   []string
	log        zerolog.Logger
}

// NewService builds a scrape service around the given fetcher. The
// destination keyword list comes from configuration so operators targeting
// other regions can swap it out.
func NewService(fetcher Fetcher, cfg config.ScraperConfig) *Service {
	keywords := cfg.DestinationKeywords
	if len(keywords) == 0 {
		keywords = config.DefaultDestinationKeywords
	}
	return &Service{
		fetcher:    fetcher,
		strategies: strategiesFor(cfg.Selectors),
		keywords:   keywords,
		log:        logger.WithComponent("scraper"),
	}
}

// ScrapeURL fetches a page, runs the extraction chain, and returns validated
// Activity records. Fetch and parse failures are returned to the caller; an
// extraction that finds nothing is reported through the Result, not an error.
func (s *Service) ScrapeURL(ctx context.Context, rawURL string) (*Result, error) {
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		rawURL = "https://" + rawURL
	}

	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}

	s.log.Info().Str("url", rawURL).Msg("starting scrape")

	html, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		s.log.Error().Str("url", rawURL).Err(err).Msg("fetch failed")
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		s.log.Error().Str("url", rawURL).Err(err).Msg("parse failed")
		return nil, fmt.Errorf("failed to parse HTML from %s: %w", rawURL, err)
	}

	candidates, strategyName := s.runStrategies(doc)

	valid := make([]TourData, 0, len(candidates))
	for _, tour := range candidates {
		if IsLikelyTour(tour) {
			valid = append(valid, tour)
		}
	}
	deduped := Deduplicate(valid)

	s.log.Debug().
		Int("candidates", len(candidates)).
		Int("valid", len(valid)).
		Int("deduped", len(deduped)).
		Str("strategy", strategyName).
		Msg("extraction finished")

	if len(deduped) == 0 {
		s.log.Warn().Str("url", rawURL).Msg("no tours extracted from page")
		return &Result{
			Success: false,
			Data:    []Activity{},
			Errors:  []string{"no tours found on page"},
		}, nil
	}

	activities := s.buildActivities(deduped, pageURL)

	s.log.Info().
		Str("url", rawURL).
		Int("activities", len(activities)).
		Str("strategy", strategyName).
		Msg("scrape finished")

	return &Result{Success: true, Data: activities}, nil
}

// runStrategies walks the chain in priority order and short-circuits at the
// first strategy producing candidates.
func (s *Service) runStrategies(doc *goquery.Document) ([]TourData, string) {
	for _, strategy := range s.strategies {
		candidates := strategy.Extract(doc)
		s.log.Debug().
			Str("strategy", strategy.Name).
			Int("candidates", len(candidates)).
			Msg("strategy attempted")
		if len(candidates) > 0 {
			return candidates, strategy.Name
		}
	}
	return nil, ""
}

// buildActivities converts surviving candidates into output records:
// title cleanup with field backfill, price parsing, defaults, generated IDs,
// and image/page URL resolution against the page origin.
func (s *Service) buildActivities(tours []TourData, pageURL *url.URL) []Activity {
	now := time.Now().UnixMilli()
	activities := make([]Activity, 0, len(tours))

	for i, tour := range tours {
		CleanTitle(&tour, s.keywords)
		if tour.Title == "" {
			continue
		}

		price, currency := ParsePrice(tour.Price)
		if currency == "" {
			currency = defaultCurrency
		}

		activity := Activity{
			ID:          fmt.Sprintf("tour-%d-%d", now, i),
			Title:       tour.Title,
			Description: tour.Description,
			Location:    tour.Location,
			Price:       price,
			Currency:    currency,
			Duration:    tour.Duration,
			Highlights:  tour.Highlights,
			Includes:    tour.Includes,
			Excludes:    tour.Excludes,
		}
		if activity.Location == "" {
			activity.Location = defaultLocation
		}
		if activity.Duration == "" {
			activity.Duration = defaultDuration
		}

		activity.Images = make([]string, 0, len(tour.Images))
		for _, img := range tour.Images {
			if resolved := ResolveImageURL(img, pageURL); resolved != "" {
				activity.Images = append(activity.Images, resolved)
			}
		}

		if tour.URL != "" {
			if ref, err := url.Parse(tour.URL); err == nil {
				activity.URL = pageURL.ResolveReference(ref).String()
			}
		}
		if activity.URL == "" {
			activity.URL = pageURL.String()
		}

		activities = append(activities, activity)
	}

	return activities
}

// ResolveImageURL turns a possibly-relative image reference into an absolute
// URL. Protocol-relative references get https; everything else resolves
// against the page origin.
func ResolveImageURL(img string, pageURL *url.URL) string {
	img = strings.TrimSpace(img)
	if img == "" {
		return ""
	}
	if strings.HasPrefix(img, "//") {
		return "https:" + img
	}
	ref, err := url.Parse(img)
	if err != nil {
		return ""
	}
	return pageURL.ResolveReference(ref).String()
}
