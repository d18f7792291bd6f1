package scraper

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tourscraper/config"
)

type stubFetcher struct {
	html    string
	err     error
	fetched string
}

func (f *stubFetcher) Fetch(ctx context.Context, url string) (string, error) {
	f.fetched = url
	return f.html, f.err
}

const cardPage = `<html><body>
	<div class="tour-card">
		<h3>Sacred Valley Tour</h3>
		<p class="description">Full day tour of the Sacred Valley with Pisac market and Ollantaytambo fortress visits.</p>
		<span class="price">$299</span>
		<img src="/images/valley.jpg">
	</div>
	<div class="tour-card">
		<h3>Machu Picchu Trek</h3>
		<p class="description">Guided trek through the Andes finishing with a sunrise visit to the citadel of Machu Picchu.</p>
		<span class="duration">4 days</span>
	</div>
	<div class="tour-card">
		<h3>City Walking Tour</h3>
		<p>Short stroll.</p>
	</div>
</body></html>`

func newTestService(f Fetcher) *Service {
	return NewService(f, config.ScraperConfig{})
}

func TestScrapeURLExtractsAndFiltersCards(t *testing.T) {
	svc := newTestService(&stubFetcher{html: cardPage})

	result, err := svc.ScrapeURL(context.Background(), "https://operator.example/tours")
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Len(t, result.Data, 2)

	first := result.Data[0]
	assert.Equal(t, "Sacred Valley Tour", first.Title)
	assert.Equal(t, 299.0, first.Price)
	assert.Equal(t, "USD", first.Currency)
	assert.Equal(t, "Varies", first.Duration)
	assert.Equal(t, "Sacred Valley", first.Location)
	assert.Equal(t, []string{"https://operator.example/images/valley.jpg"}, first.Images)
	assert.Equal(t, "https://operator.example/tours", first.URL)
	assert.True(t, strings.HasPrefix(first.ID, "tour-"))

	second := result.Data[1]
	assert.Equal(t, "Machu Picchu Trek", second.Title)
	assert.Equal(t, 0.0, second.Price)
	assert.Equal(t, "4 days", second.Duration)
	assert.Equal(t, "Machu Picchu", second.Location)
}

func TestScrapeURLFallsThroughToStructuredData(t *testing.T) {
	page := `<html><head><script type="application/ld+json">
	{"@type": "Product",
	 "name": "Inca Trail Adventure",
	 "description": "Four day trek along the classic Inca Trail with camping, porters, and a guided sunrise entry.",
	 "image": "https://cdn.example.com/inca.jpg",
	 "offers": {"price": "450", "priceCurrency": "USD"}}
	</script></head>
	<body><section><p>Operator landing page.</p></section></body></html>`

	svc := newTestService(&stubFetcher{html: page})

	result, err := svc.ScrapeURL(context.Background(), "https://operator.example/")
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Len(t, result.Data, 1)

	act := result.Data[0]
	assert.Equal(t, "Inca Trail Adventure", act.Title)
	assert.Equal(t, 450.0, act.Price)
	assert.Equal(t, "USD", act.Currency)
	assert.Equal(t, "Various Locations", act.Location)
	assert.Equal(t, []string{"https://cdn.example.com/inca.jpg"}, act.Images)
}

func TestScrapeURLPrependsScheme(t *testing.T) {
	fetcher := &stubFetcher{html: "<html><body></body></html>"}
	svc := newTestService(fetcher)

	_, err := svc.ScrapeURL(context.Background(), "operator.example/tours")
	require.NoError(t, err)
	assert.Equal(t, "https://operator.example/tours", fetcher.fetched)
}

func TestScrapeURLReturnsFetchError(t *testing.T) {
	svc := newTestService(&stubFetcher{err: errors.New("connection refused")})

	result, err := svc.ScrapeURL(context.Background(), "https://operator.example/tours")
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "failed to fetch")
}

func TestScrapeURLEmptyPageIsNotAnError(t *testing.T) {
	svc := newTestService(&stubFetcher{html: "<html><body><p>Nothing to see.</p></body></html>"})

	result, err := svc.ScrapeURL(context.Background(), "https://operator.example/empty")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Empty(t, result.Data)
	assert.Equal(t, []string{"no tours found on page"}, result.Errors)
}
