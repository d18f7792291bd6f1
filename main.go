package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"tourscraper/browser"
	"tourscraper/cache"
	"tourscraper/config"
	"tourscraper/fetch"
	"tourscraper/logger"
	"tourscraper/proxy"
	"tourscraper/scraper"
)

var configPath = flag.String("config", "", "Path to config file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Init("info", true)
		lg := logger.WithComponent("main")
		lg.Fatal().Err(err).Msg("failed to load config")
	}

	logger.Init(cfg.Log.Level, cfg.Log.Pretty)
	log := logger.WithComponent("main")

	if cfg.Cache.Enabled {
		cache.Init(cfg.Cache.Addr)
	}

	rotator := buildRotator(cfg.Proxy)
	if rotator != nil {
		rotator.Start()
		defer rotator.Stop()
	}

	fetcher, cleanup, err := buildFetcher(cfg, rotator)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up fetch layer")
	}
	defer cleanup()

	svc := scraper.NewService(fetcher, cfg.Scraper)
	handler := scraper.NewHandler(svc, cfg.Cache.Enabled, cfg.Cache.TTL)

	router := mux.NewRouter()
	router.HandleFunc("/scrape", handler.ScrapeURLHandler).Methods(http.MethodPost)
	router.HandleFunc("/proxies/stats", proxyStatsHandler(rotator)).Methods(http.MethodGet)
	router.HandleFunc("/proxies/reset", proxyResetHandler(rotator)).Methods(http.MethodPost)

	cors := gorillahandlers.CORS(
		gorillahandlers.AllowedOrigins([]string{"*"}),
		gorillahandlers.AllowedMethods([]string{http.MethodGet, http.MethodPost}),
		gorillahandlers.AllowedHeaders([]string{"Content-Type"}),
	)

	server := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      cors(gorillahandlers.CombinedLoggingHandler(os.Stdout, router)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.ListenAddr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}

// buildRotator converts configured proxy entries into a running rotator, or
// nil when no proxies are configured.
func buildRotator(cfg config.RotatorConfig) *proxy.Rotator {
	if len(cfg.Proxies) == 0 {
		return nil
	}

	proxies := make([]*proxy.Config, 0, len(cfg.Proxies))
	for _, entry := range cfg.Proxies {
		proxies = append(proxies, &proxy.Config{
			Host:     entry.Host,
			Port:     entry.Port,
			Username: entry.Username,
			Password: entry.Password,
			Protocol: entry.Protocol,
			Active:   true,
		})
	}

	return proxy.NewRotator(proxy.Options{
		Proxies:             proxies,
		MaxErrorsPerProxy:   cfg.MaxErrorsPerProxy,
		HealthCheckInterval: cfg.HealthCheckInterval,
		HealthCheckURL:      cfg.HealthCheckURL,
		RotationStrategy:    cfg.RotationStrategy,
		RetryFailedProxies:  cfg.RetryFailedProxies,
	})
}

// buildFetcher picks the rendered-page pool when JavaScript execution is
// required and the plain HTTP client otherwise.
func buildFetcher(cfg *config.Config, rotator *proxy.Rotator) (scraper.Fetcher, func(), error) {
	if cfg.Scraper.Browser.EnableJavaScript {
		pool := browser.New(cfg.Scraper.Browser, cfg.Scraper.UserAgent, cfg.Scraper.Throttling.Timeout)
		if err := pool.Initialize(); err != nil {
			return nil, nil, err
		}
		return pool, pool.Shutdown, nil
	}
	return fetch.New(cfg.Scraper, rotator), func() {}, nil
}

func proxyStatsHandler(rotator *proxy.Rotator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if rotator == nil {
			json.NewEncoder(w).Encode(proxy.Stats{})
			return
		}
		json.NewEncoder(w).Encode(rotator.Stats())
	}
}

func proxyResetHandler(rotator *proxy.Rotator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rotator != nil {
			rotator.ResetErrorCounts()
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
