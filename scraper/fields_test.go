package scraper

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func docFrom(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in       string
		amount   float64
		currency string
	}{
		{"From $1,299.50", 1299.50, "USD"},
		{"€850", 850, "EUR"},
		{"£99.99", 99.99, "GBP"},
		{"USD 450", 450, "USD"},
		{"S/. 120", 120, "PEN"},
		{"Price: $35 per person", 35, "USD"},
		{"no price here", 0, ""},
		{"", 0, ""},
	}

	for _, tt := range tests {
		amount, currency := ParsePrice(tt.in)
		assert.Equal(t, tt.amount, amount, "amount for %q", tt.in)
		assert.Equal(t, tt.currency, currency, "currency for %q", tt.in)
	}
}

func TestIsSkippableTitle(t *testing.T) {
	skippable := []string{
		"", "123", "45.00", "HOME AND AWAY", "Contact Us", "Read more",
		"We offer the best deals", "Subscribe to our newsletter",
	}
	for _, title := range skippable {
		assert.True(t, isSkippableTitle(title), "expected %q to be skipped", title)
	}

	kept := []string{
		"Sacred Valley Tour", "Machu Picchu Trek 4 days", "Colca Canyon Adventure",
	}
	for _, title := range kept {
		assert.False(t, isSkippableTitle(title), "expected %q to be kept", title)
	}
}

func TestExtractImagesAttributesAndBackground(t *testing.T) {
	doc := docFrom(t, `<div class="tour">
		<img src="/photos/valley.jpg">
		<img data-src="/photos/lazy.jpg">
		<img src="/assets/logo.png">
		<img src="data:image/gif;base64,AAAA">
		<div style="background-image: url('/photos/bg.jpg')"></div>
	</div>`)

	images := extractImages(doc.Find(".tour"))
	assert.Equal(t, []string{"/photos/valley.jpg", "/photos/lazy.jpg", "/photos/bg.jpg"}, images)
}

func TestExtractImagesCap(t *testing.T) {
	var b strings.Builder
	b.WriteString(`<div class="tour">`)
	for i := 0; i < 8; i++ {
		b.WriteString(`<img src="/photos/p` + string(rune('0'+i)) + `.jpg">`)
	}
	b.WriteString(`</div>`)

	images := extractImages(docFrom(t, b.String()).Find(".tour"))
	assert.Len(t, images, maxImagesPerTour)
}

func TestExtractTourFromCard(t *testing.T) {
	doc := docFrom(t, `<div class="tour-card">
		<h3>Sacred Valley Tour</h3>
		<p class="description">A full-day guided visit through the Sacred Valley with lunch included.</p>
		<span class="price">$299</span>
		<span class="duration">5 days</span>
		<span class="location">Cusco</span>
		<img src="/images/valley.jpg">
	</div>`)

	tour := extractTour(doc.Find(".tour-card"))
	assert.Equal(t, "Sacred Valley Tour", tour.Title)
	assert.Contains(t, tour.Description, "full-day guided visit")
	assert.Equal(t, "$299", tour.Price)
	assert.Equal(t, "5 days", tour.Duration)
	assert.Equal(t, "Cusco", tour.Location)
	assert.Equal(t, []string{"/images/valley.jpg"}, tour.Images)
}

func TestExtractTourPriceFullTextFallback(t *testing.T) {
	doc := docFrom(t, `<div class="tour-card">
		<h3>Lima Food Tour</h3>
		<p>A delicious walk, only $45 per person.</p>
	</div>`)

	tour := extractTour(doc.Find(".tour-card"))
	assert.Equal(t, "$45", tour.Price)
}

func TestResolveImageURL(t *testing.T) {
	page, err := url.Parse("https://site.com/tours/rome")
	require.NoError(t, err)

	assert.Equal(t, "https://site.com/images/tour.jpg", ResolveImageURL("/images/tour.jpg", page))
	assert.Equal(t, "https://cdn.example.com/x.jpg", ResolveImageURL("//cdn.example.com/x.jpg", page))
	assert.Equal(t, "https://other.com/a.jpg", ResolveImageURL("https://other.com/a.jpg", page))
	assert.Equal(t, "https://site.com/tours/thumb.jpg", ResolveImageURL("thumb.jpg", page))
	assert.Equal(t, "", ResolveImageURL("", page))
}

func TestExtractListPicksFirstMatchingSelector(t *testing.T) {
	doc := docFrom(t, `<div class="tour">
		<ul class="includes">
			<li>Hotel pickup</li>
			<li>Entrance fees</li>
			<li></li>
		</ul>
		<ul class="not-included">
			<li>Lunch</li>
		</ul>
	</div>`)

	sel := doc.Find(".tour")
	assert.Equal(t, []string{"Hotel pickup", "Entrance fees"}, extractList(sel, includeSelectors))
	assert.Equal(t, []string{"Lunch"}, extractList(sel, excludeSelectors))
	assert.Nil(t, extractList(sel, highlightSelectors))
}
