// Package proxy rotates outbound proxies across requests and tracks
// per-proxy health.
package proxy

import (
	"context"
	"crypto/tls"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	netproxy "golang.org/x/net/proxy"

	"tourscraper/logger"
)

const defaultHealthCheckURL = "https://httpbin.org/ip"

// Rotator selects a proxy per request according to its rotation strategy and
// feeds success/error reports back into the pool's health state. All methods
// are safe for concurrent use.
type Rotator struct {
	mu       sync.Mutex
	proxies  []*Config
	rrIndex  int
	stopChan chan struct{}
	wg       sync.WaitGroup
	started  bool

	maxErrors      int
	interval       time.Duration
	healthCheckURL string
	strategy       string
	retryFailed    bool

	log zerolog.Logger
}

// NewRotator builds a rotator over the given pool. Proxies default to active
// with zeroed counters unless the caller pre-populated state.
func NewRotator(opts Options) *Rotator {
	if opts.MaxErrorsPerProxy <= 0 {
		opts.MaxErrorsPerProxy = 3
	}
	if opts.HealthCheckURL == "" {
		opts.HealthCheckURL = defaultHealthCheckURL
	}
	if opts.RotationStrategy == "" {
		opts.RotationStrategy = StrategyRoundRobin
	}

	for _, p := range opts.Proxies {
		if p.ErrorCount == 0 && !p.Active {
			p.Active = true
		}
		if p.Protocol == "" {
			p.Protocol = "http"
		}
	}

	return &Rotator{
		proxies:        opts.Proxies,
		maxErrors:      opts.MaxErrorsPerProxy,
		interval:       opts.HealthCheckInterval,
		healthCheckURL: opts.HealthCheckURL,
		strategy:       opts.RotationStrategy,
		retryFailed:    opts.RetryFailedProxies,
		stopChan:       make(chan struct{}),
		log:            logger.WithComponent("proxy-rotator"),
	}
}

// GetNext returns the next proxy according to the rotation strategy, or nil
// when no active proxy remains. A nil result is not fatal; the caller decides
// whether to proceed without a proxy.
func (r *Rotator) GetNext() *Config {
	r.mu.Lock()
	defer r.mu.Unlock()

	active := r.activeLocked()
	if len(active) == 0 {
		r.log.Warn().Int("pool_size", len(r.proxies)).Msg("no active proxies available")
		return nil
	}

	var selected *Config
	switch r.strategy {
	case StrategyRandom:
		selected = active[rand.Intn(len(active))]
	case StrategyLeastUsed:
		selected = leastUsed(active)
	case StrategyFastest:
		selected = fastest(active)
	default:
		// The counter persists across calls and is taken modulo the current
		// active-list length, so a shrinking pool can skip entries but never
		// index out of range.
		selected = active[r.rrIndex%len(active)]
		r.rrIndex++
	}

	selected.LastUsed = time.Now()
	return selected
}

// activeLocked filters the pool to usable proxies. Caller holds r.mu.
func (r *Rotator) activeLocked() []*Config {
	active := make([]*Config, 0, len(r.proxies))
	for _, p := range r.proxies {
		if p.Active && p.ErrorCount < r.maxErrors {
			active = append(active, p)
		}
	}
	return active
}

func leastUsed(active []*Config) *Config {
	selected := active[0]
	for _, p := range active[1:] {
		if p.LastUsed.Before(selected.LastUsed) {
			selected = p
		}
	}
	return selected
}

// fastest prefers the lowest measured response time. An untested proxy has a
// zero ResponseTime and therefore wins over any measured one, which gives new
// proxies a chance to be measured before the pool settles.
func fastest(active []*Config) *Config {
	selected := active[0]
	for _, p := range active[1:] {
		if p.ResponseTime < selected.ResponseTime {
			selected = p
		}
	}
	return selected
}

// ReportError increments the proxy's error count and deactivates it once the
// count reaches the configured maximum.
func (r *Rotator) ReportError(p *Config, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p.ErrorCount++
	if p.ErrorCount >= r.maxErrors && p.Active {
		p.Active = false
		r.log.Warn().
			Str("proxy", p.Address()).
			Int("errors", p.ErrorCount).
			Err(err).
			Msg("proxy deactivated after repeated errors")
	}
}

// ReportSuccess folds the new measurement into a two-point moving average.
func (r *Rotator) ReportSuccess(p *Config, responseTime time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ResponseTime == 0 {
		p.ResponseTime = responseTime
	} else {
		p.ResponseTime = (p.ResponseTime + responseTime) / 2
	}
}

// ResetErrorCounts reactivates every proxy and zeroes its error count. This
// is an operator escape hatch; deactivated proxies are never reactivated
// automatically outside the retry-failed health check.
func (r *Rotator) ResetErrorCounts() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.proxies {
		p.Active = true
		p.ErrorCount = 0
	}
	r.log.Info().Int("pool_size", len(r.proxies)).Msg("proxy error counts reset")
}

// Stats reports pool-wide counters. The average response time covers the
// whole pool, inactive proxies included.
func (r *Rotator) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := Stats{Total: len(r.proxies)}
	var totalRT time.Duration
	for _, p := range r.proxies {
		if p.Active && p.ErrorCount < r.maxErrors {
			stats.Active++
		}
		totalRT += p.ResponseTime
		stats.TotalErrors += p.ErrorCount
	}
	stats.Inactive = stats.Total - stats.Active
	if stats.Total > 0 {
		stats.AvgResponseTime = totalRT / time.Duration(stats.Total)
	}
	return stats
}

// TestProxy issues a lightweight GET through the proxy against the health
// check URL and feeds the outcome back through ReportSuccess/ReportError.
func (r *Rotator) TestProxy(ctx context.Context, p *Config) error {
	client, err := r.healthCheckClient(p)
	if err != nil {
		r.ReportError(p, err)
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.healthCheckURL, nil)
	if err != nil {
		r.ReportError(p, err)
		return err
	}
	req.Header.Set("Connection", "close")

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		r.ReportError(p, err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err = fmt.Errorf("health check returned HTTP %d", resp.StatusCode)
		r.ReportError(p, err)
		return err
	}

	r.ReportSuccess(p, time.Since(start))
	return nil
}

// healthCheckClient builds a short-lived client routed through the proxy.
// Keep-alives are disabled so each check exercises a fresh connection.
func (r *Rotator) healthCheckClient(p *Config) (*http.Client, error) {
	transport := &http.Transport{
		DisableKeepAlives:     true,
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: true},
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
	}

	switch p.Protocol {
	case "socks5":
		var auth *netproxy.Auth
		if p.Username != "" {
			auth = &netproxy.Auth{User: p.Username, Password: p.Password}
		}
		dialer, err := netproxy.SOCKS5("tcp", p.Address(), auth, netproxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS dialer: %w", err)
		}
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		}
	default:
		transport.Proxy = http.ProxyURL(p.URL())
	}

	return &http.Client{Transport: transport, Timeout: 15 * time.Second}, nil
}

// Start launches the periodic health check loop. A non-positive interval
// disables it.
func (r *Rotator) Start() {
	if r.interval <= 0 || r.started {
		return
	}
	r.started = true

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				r.runHealthChecks()
			case <-r.stopChan:
				return
			}
		}
	}()
}

// Stop terminates the health check loop and waits for any in-flight cycle.
func (r *Rotator) Stop() {
	if !r.started {
		return
	}
	close(r.stopChan)
	r.wg.Wait()
}

// runHealthChecks tests every proxy concurrently. Checks settle
// independently; one proxy failing never aborts the rest of the batch.
func (r *Rotator) runHealthChecks() {
	type target struct {
		proxy       *Config
		wasInactive bool
	}

	r.mu.Lock()
	targets := make([]target, 0, len(r.proxies))
	for _, p := range r.proxies {
		if p.Active || r.retryFailed {
			targets = append(targets, target{proxy: p, wasInactive: !p.Active})
		}
	}
	r.mu.Unlock()

	if len(targets) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, tg := range targets {
		wg.Add(1)
		go func(tg target) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			if err := r.TestProxy(ctx, tg.proxy); err != nil {
				return
			}
			if tg.wasInactive && r.retryFailed {
				r.mu.Lock()
				tg.proxy.Active = true
				tg.proxy.ErrorCount = 0
				r.mu.Unlock()
				r.log.Info().Str("proxy", tg.proxy.Address()).Msg("proxy reactivated after passing health check")
			}
		}(tg)
	}
	wg.Wait()

	stats := r.Stats()
	r.log.Info().
		Int("active", stats.Active).
		Int("total", stats.Total).
		Msg("proxy health check cycle finished")
}
