package scraper

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(f Fetcher) *Handler {
	return NewHandler(newTestService(f), false, 0)
}

func TestScrapeURLHandlerRejectsNonPost(t *testing.T) {
	h := newTestHandler(&stubFetcher{})

	req := httptest.NewRequest(http.MethodGet, "/scrape", nil)
	rec := httptest.NewRecorder()
	h.ScrapeURLHandler(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestScrapeURLHandlerRequiresURL(t *testing.T) {
	h := newTestHandler(&stubFetcher{})

	req := httptest.NewRequest(http.MethodPost, "/scrape", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.ScrapeURLHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScrapeURLHandlerRejectsInvalidJSON(t *testing.T) {
	h := newTestHandler(&stubFetcher{})

	req := httptest.NewRequest(http.MethodPost, "/scrape", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	h.ScrapeURLHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScrapeURLHandlerReturnsResult(t *testing.T) {
	h := newTestHandler(&stubFetcher{html: cardPage})

	body := strings.NewReader(`{"url": "https://operator.example/tours"}`)
	req := httptest.NewRequest(http.MethodPost, "/scrape", body)
	rec := httptest.NewRecorder()
	h.ScrapeURLHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var result Result
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.True(t, result.Success)
	assert.Len(t, result.Data, 2)
}

func TestScrapeURLHandlerReportsScrapeFailure(t *testing.T) {
	h := newTestHandler(&stubFetcher{err: assert.AnError})

	body := strings.NewReader(`{"url": "https://operator.example/tours"}`)
	req := httptest.NewRequest(http.MethodPost, "/scrape", body)
	rec := httptest.NewRecorder()
	h.ScrapeURLHandler(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
