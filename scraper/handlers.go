package scraper

import (
	"encoding/json"
	"net/http"
	"time"

	"tourscraper/cache"
)

// Handler exposes the scrape service over HTTP.
type Handler struct {
	svc      *Service
	cacheTTL time.Duration
	useCache bool
}

// NewHandler wraps a service. When useCache is set, repeat scrapes of the
// same URL inside the TTL are served from the cache.
func NewHandler(svc *Service, useCache bool, cacheTTL time.Duration) *Handler {
	return &Handler{svc: svc, useCache: useCache, cacheTTL: cacheTTL}
}

// ScrapeURLHandler handles POST /scrape with a {"url": "..."} body.
func (h *Handler) ScrapeURLHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var requestBody struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if requestBody.URL == "" {
		http.Error(w, "URL parameter is required in the request body", http.StatusBadRequest)
		return
	}

	scrape := func() (*Result, error) {
		return h.svc.ScrapeURL(r.Context(), requestBody.URL)
	}

	var result *Result
	var err error
	if h.useCache {
		result, err = cache.Memoize("scrape:"+requestBody.URL, h.cacheTTL, scrape)
	} else {
		result, err = scrape()
	}
	if err != nil {
		http.Error(w, "Error scraping URL: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
