// Package fetch implements the plain-HTTP fetch layer with throttling,
// retries, response decompression, and proxy-rotated egress.
package fetch

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
	netproxy "golang.org/x/net/proxy"
	"golang.org/x/time/rate"

	"tourscraper/config"
	"tourscraper/logger"
	"tourscraper/proxy"
)

// Client fetches pages over plain HTTP while honoring the scraper's declared
// throttling policy. A nil rotator means all requests go out directly.
type Client struct {
	throttle config.ThrottlingConfig
	ua       config.UserAgentConfig
	rotator  *proxy.Rotator

	limiter *rate.Limiter
	sem     chan struct{}

	mu      sync.Mutex
	uaIndex int

	log zerolog.Logger
}

// New builds a client from the scraper configuration. RequestsPerMinute maps
// onto a token bucket; ConcurrentRequests onto a semaphore.
func New(cfg config.ScraperConfig, rotator *proxy.Rotator) *Client {
	rpm := cfg.Throttling.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}
	concurrent := cfg.Throttling.ConcurrentRequests
	if concurrent <= 0 {
		concurrent = 1
	}

	return &Client{
		throttle: cfg.Throttling,
		ua:       cfg.UserAgent,
		rotator:  rotator,
		limiter:  rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1),
		sem:      make(chan struct{}, concurrent),
		log:      logger.WithComponent("fetch"),
	}
}

// Fetch retrieves the URL, retrying per the throttling policy. Each attempt
// may go out through a different proxy; proxy outcomes feed back into the
// rotator's health state.
func (c *Client) Fetch(ctx context.Context, url string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	select {
	case c.sem <- struct{}{}:
		defer func() { <-c.sem }()
	case <-ctx.Done():
		return "", ctx.Err()
	}

	attempts := c.throttle.RetryAttempts + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := c.throttle.RetryDelay * time.Duration(attempt)
			c.log.Debug().
				Str("url", url).
				Int("attempt", attempt+1).
				Dur("delay", delay).
				Msg("retrying fetch")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		body, err := c.fetchOnce(ctx, url)
		if err == nil {
			if c.throttle.DelayBetweenRequests > 0 {
				time.Sleep(c.throttle.DelayBetweenRequests)
			}
			return body, nil
		}
		lastErr = err
	}

	return "", fmt.Errorf("fetch failed after %d attempts: %w", attempts, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, url string) (string, error) {
	var p *proxy.Config
	if c.rotator != nil {
		p = c.rotator.GetNext()
	}

	client, err := c.httpClient(p)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.nextUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br, zstd")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		if p != nil {
			c.rotator.ReportError(p, err)
		}
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
		if p != nil && (resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests) {
			c.rotator.ReportError(p, err)
		}
		return "", err
	}

	body, err := decodeBody(resp)
	if err != nil {
		return "", err
	}

	if p != nil {
		c.rotator.ReportSuccess(p, time.Since(start))
	}
	return string(body), nil
}

// httpClient builds a transport routed through the given proxy, or a direct
// one when p is nil.
func (c *Client) httpClient(p *proxy.Config) (*http.Client, error) {
	transport := &http.Transport{
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: true},
		TLSHandshakeTimeout: 10 * time.Second,
		// decodeBody handles Content-Encoding itself.
		DisableCompression: true,
	}

	if p != nil {
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
	}

	timeout := c.throttle.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Transport: transport, Timeout: timeout}, nil
}

func (c *Client) nextUserAgent() string {
	list := c.ua.List
	if len(list) == 0 {
		list = config.DefaultUserAgents
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ua.Rotate {
		return list[0]
	}
	ua := list[c.uaIndex%len(list)]
	c.uaIndex++
	return ua
}

// decodeBody reads the response body, decompressing according to the
// Content-Encoding header.
func decodeBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzipReader.Close()
		reader = gzipReader
	case "deflate":
		flateReader := flate.NewReader(resp.Body)
		defer flateReader.Close()
		reader = flateReader
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "zstd":
		zstdReader, err := zstd.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		defer zstdReader.Close()
		reader = zstdReader
	default:
		reader = resp.Body
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}
