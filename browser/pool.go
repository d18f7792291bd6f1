// Package browser implements the rendered-page fetch layer on top of a pool
// of headless browser contexts.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"tourscraper/config"
	"tourscraper/logger"
)

const defaultPoolSize = 4

// Pool manages a fixed set of reusable browser contexts. Fetch borrows a
// context, renders the page, and returns the context to the pool.
type Pool struct {
	contexts    chan context.Context
	cancelFuncs map[context.Context]context.CancelFunc
	mu          sync.Mutex
	allocCtx    context.Context
	allocCancel context.CancelFunc
	initialized bool

	cfg     config.BrowserConfig
	ua      config.UserAgentConfig
	uaIndex int
	timeout time.Duration

	log zerolog.Logger
}

// New creates a browser pool from configuration. The timeout bounds a single
// Fetch, including the post-load wait.
func New(cfg config.BrowserConfig, ua config.UserAgentConfig, timeout time.Duration) *Pool {
	size := cfg.PoolSize
	if size <= 0 {
		size = defaultPoolSize
	}
	cfg.PoolSize = size

	return &Pool{
		contexts:    make(chan context.Context, size),
		cancelFuncs: make(map[context.Context]context.CancelFunc),
		cfg:         cfg,
		ua:          ua,
		timeout:     timeout,
		log:         logger.WithComponent("browser-pool"),
	}
}

// Initialize starts the browser processes. Safe to call once; Fetch fails
// until it has been called.
func (pool *Pool) Initialize() error {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	if pool.initialized {
		return nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", pool.cfg.Headless),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.WindowSize(pool.viewportWidth(), pool.viewportHeight()),
	)
	if len(pool.ua.List) > 0 {
		opts = append(opts, chromedp.UserAgent(pool.ua.List[0]))
	}

	pool.allocCtx, pool.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)

	for i := 0; i < pool.cfg.PoolSize; i++ {
		ctx, cancel := chromedp.NewContext(pool.allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
		if err := chromedp.Run(ctx, chromedp.Navigate("about:blank")); err != nil {
			cancel()
			pool.log.Warn().Err(err).Int("index", i).Msg("failed to initialize browser context")
			continue
		}
		pool.contexts <- ctx
		pool.cancelFuncs[ctx] = cancel
	}

	if len(pool.cancelFuncs) == 0 {
		pool.allocCancel()
		return fmt.Errorf("no browser contexts could be started")
	}

	pool.initialized = true
	pool.log.Info().Int("size", len(pool.cancelFuncs)).Msg("browser pool initialized")
	return nil
}

func (pool *Pool) viewportWidth() int {
	if pool.cfg.ViewportWidth > 0 {
		return pool.cfg.ViewportWidth
	}
	return 1920
}

func (pool *Pool) viewportHeight() int {
	if pool.cfg.ViewportHeight > 0 {
		return pool.cfg.ViewportHeight
	}
	return 1080
}

// Fetch navigates to the URL in a pooled browser context, waits the
// configured settle time, and returns the rendered HTML.
func (pool *Pool) Fetch(ctx context.Context, url string) (string, error) {
	pool.mu.Lock()
	initialized := pool.initialized
	pool.mu.Unlock()
	if !initialized {
		return "", fmt.Errorf("browser pool not initialized")
	}

	var browserCtx context.Context
	select {
	case browserCtx = <-pool.contexts:
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(pool.timeout):
		return "", fmt.Errorf("timeout waiting for a free browser context")
	}
	defer pool.release(browserCtx)

	runCtx, cancel := context.WithTimeout(browserCtx, pool.timeout)
	defer cancel()

	actions := []chromedp.Action{
		network.SetBlockedURLS(blockedURLPatterns(pool.cfg.BlockResources)),
		emulation.SetScriptExecutionDisabled(!pool.cfg.EnableJavaScript),
	}
	if ua := pool.nextUserAgent(); ua != "" {
		actions = append(actions, emulation.SetUserAgentOverride(ua))
	}

	waitTime := pool.cfg.WaitTime
	if waitTime <= 0 {
		waitTime = time.Second
	}

	var htmlContent string
	actions = append(actions,
		chromedp.Navigate(url),
		chromedp.Sleep(waitTime),
		chromedp.OuterHTML("html", &htmlContent, chromedp.ByQuery),
	)

	if err := chromedp.Run(runCtx, actions...); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", url, err)
	}

	return htmlContent, nil
}

// nextUserAgent cycles through the configured list when rotation is on.
func (pool *Pool) nextUserAgent() string {
	if len(pool.ua.List) == 0 {
		return ""
	}
	pool.mu.Lock()
	defer pool.mu.Unlock()

	if !pool.ua.Rotate {
		return pool.ua.List[0]
	}
	ua := pool.ua.List[pool.uaIndex%len(pool.ua.List)]
	pool.uaIndex++
	return ua
}

// release resets a browser context and puts it back in the pool.
func (pool *Pool) release(browserCtx context.Context) {
	resetCtx, cancel := context.WithTimeout(browserCtx, 3*time.Second)
	defer cancel()

	_ = chromedp.Run(resetCtx,
		network.ClearBrowserCookies(),
		chromedp.Navigate("about:blank"),
	)

	select {
	case pool.contexts <- browserCtx:
	default:
		pool.log.Warn().Msg("browser pool full, dropping context")
	}
}

// Shutdown closes every browser process.
func (pool *Pool) Shutdown() {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	if !pool.initialized {
		return
	}

	for ctx, cancel := range pool.cancelFuncs {
		cancel()
		delete(pool.cancelFuncs, ctx)
	}
	if pool.allocCancel != nil {
		pool.allocCancel()
	}
	for len(pool.contexts) > 0 {
		<-pool.contexts
	}

	pool.initialized = false
	pool.log.Info().Msg("browser pool shut down")
}

// blockedURLPatterns maps resource type names to URL patterns understood by
// the devtools protocol.
func blockedURLPatterns(resources []string) []string {
	var patterns []string
	for _, res := range resources {
		switch res {
		case "image":
			patterns = append(patterns, "*.png", "*.jpg", "*.jpeg", "*.gif", "*.webp")
		case "stylesheet":
			patterns = append(patterns, "*.css")
		case "font":
			patterns = append(patterns, "*.woff", "*.woff2", "*.ttf", "*.otf")
		case "media":
			patterns = append(patterns, "*.mp4", "*.webm", "*.mp3", "*.avi")
		}
	}
	return patterns
}
