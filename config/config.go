// Package config loads and validates application configuration from file,
// environment, and built-in defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server" validate:"required"`
	Scraper ScraperConfig `mapstructure:"scraper" validate:"required"`
	Proxy   RotatorConfig `mapstructure:"proxy"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	ListenAddr   string        `mapstructure:"listen_addr" validate:"required,hostname_port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" validate:"required,min=1s,max=5m"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"required,min=1s,max=5m"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" validate:"required,min=1s,max=10m"`
}

// ScraperConfig is the static per-scraper policy. It is set once at startup
// and never mutated afterwards.
type ScraperConfig struct {
	Name                string           `mapstructure:"name" validate:"required,min=1"`
	BaseURL             string           `mapstructure:"base_url"`
	Throttling          ThrottlingConfig `mapstructure:"throttling" validate:"required"`
	Browser             BrowserConfig    `mapstructure:"browser"`
	UserAgent           UserAgentConfig  `mapstructure:"user_agent"`
	Selectors           SelectorsConfig  `mapstructure:"selectors"`
	DestinationKeywords []string         `mapstructure:"destination_keywords"`
}

// SelectorsConfig lets a site-specific deployment put its own CSS selectors
// ahead of the built-in heuristics.
type SelectorsConfig struct {
	TourContainers []string `mapstructure:"tour_containers"`
	GridWrappers   []string `mapstructure:"grid_wrappers"`
}

type ThrottlingConfig struct {
	ConcurrentRequests   int           `mapstructure:"concurrent_requests" validate:"required,min=1,max=100"`
	RequestsPerMinute    int           `mapstructure:"requests_per_minute" validate:"required,min=1,max=6000"`
	RetryAttempts        int           `mapstructure:"retry_attempts" validate:"min=0,max=10"`
	RetryDelay           time.Duration `mapstructure:"retry_delay"`
	Timeout              time.Duration `mapstructure:"timeout" validate:"required,min=1s,max=5m"`
	DelayBetweenRequests time.Duration `mapstructure:"delay_between_requests"`
}

type BrowserConfig struct {
	Headless         bool          `mapstructure:"headless"`
	ViewportWidth    int           `mapstructure:"viewport_width" validate:"min=0,max=7680"`
	ViewportHeight   int           `mapstructure:"viewport_height" validate:"min=0,max=4320"`
	BlockResources   []string      `mapstructure:"block_resources"`
	WaitTime         time.Duration `mapstructure:"wait_time"`
	EnableJavaScript bool          `mapstructure:"enable_javascript"`
	PoolSize         int           `mapstructure:"pool_size" validate:"min=0,max=50"`
}

type UserAgentConfig struct {
	Rotate bool     `mapstructure:"rotate"`
	List   []string `mapstructure:"list"`
}

// RotatorConfig configures the outbound proxy rotator. An empty proxy list
// disables proxying entirely.
type RotatorConfig struct {
	Proxies             []ProxyEntry  `mapstructure:"proxies"`
	MaxErrorsPerProxy   int           `mapstructure:"max_errors_per_proxy" validate:"min=1,max=100"`
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval"`
	HealthCheckURL      string        `mapstructure:"health_check_url"`
	RotationStrategy    string        `mapstructure:"rotation_strategy" validate:"oneof=round-robin random least-used fastest"`
	RetryFailedProxies  bool          `mapstructure:"retry_failed_proxies"`
}

type ProxyEntry struct {
	Host     string `mapstructure:"host" validate:"required,min=1"`
	Port     int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Protocol string `mapstructure:"protocol" validate:"omitempty,oneof=http https socks5"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Addr    string        `mapstructure:"addr"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Pretty bool   `mapstructure:"pretty"`
}

// DefaultUserAgents is used when no user-agent list is configured.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
}

// DefaultDestinationKeywords is the built-in set of place names recognized
// during title cleanup. Sites targeting other regions should override it in
// configuration.
var DefaultDestinationKeywords = []string{
	"Cusco", "Machu Picchu", "Sacred Valley", "Lima", "Arequipa",
	"Colca Canyon", "Puno", "Lake Titicaca", "Nazca", "Paracas",
	"Huacachina", "Rainbow Mountain", "Huaraz", "Iquitos", "Amazon",
	"Trujillo", "Chachapoyas", "Ica", "Ollantaytambo", "Pisac",
}

func setDefaults() {
	viper.SetDefault("server.listen_addr", ":8000")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "60s")
	viper.SetDefault("server.idle_timeout", "90s")

	viper.SetDefault("scraper.name", "tour-operator")
	viper.SetDefault("scraper.throttling.concurrent_requests", 3)
	viper.SetDefault("scraper.throttling.requests_per_minute", 30)
	viper.SetDefault("scraper.throttling.retry_attempts", 2)
	viper.SetDefault("scraper.throttling.retry_delay", "2s")
	viper.SetDefault("scraper.throttling.timeout", "30s")
	viper.SetDefault("scraper.throttling.delay_between_requests", "1s")
	viper.SetDefault("scraper.browser.headless", true)
	viper.SetDefault("scraper.browser.viewport_width", 1920)
	viper.SetDefault("scraper.browser.viewport_height", 1080)
	viper.SetDefault("scraper.browser.block_resources", []string{"font", "media"})
	viper.SetDefault("scraper.browser.wait_time", "1s")
	viper.SetDefault("scraper.browser.enable_javascript", true)
	viper.SetDefault("scraper.browser.pool_size", 4)
	viper.SetDefault("scraper.user_agent.rotate", true)

	viper.SetDefault("proxy.max_errors_per_proxy", 3)
	viper.SetDefault("proxy.health_check_interval", "0s")
	viper.SetDefault("proxy.health_check_url", "https://httpbin.org/ip")
	viper.SetDefault("proxy.rotation_strategy", "round-robin")
	viper.SetDefault("proxy.retry_failed_proxies", false)

	viper.SetDefault("cache.enabled", false)
	viper.SetDefault("cache.addr", "localhost:6379")
	viper.SetDefault("cache.ttl", "15m")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.pretty", true)
}

// Load reads configuration from the given path (or the default search
// locations when empty), merges environment overrides, and validates the
// result.
func Load(configPath string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetEnvPrefix("TOURSCRAPER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if configPath != "" {
		viper.SetConfigFile(configPath)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyFallbacks()

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyFallbacks() {
	if len(c.Scraper.UserAgent.List) == 0 {
		c.Scraper.UserAgent.List = DefaultUserAgents
	}
	if len(c.Scraper.DestinationKeywords) == 0 {
		c.Scraper.DestinationKeywords = DefaultDestinationKeywords
	}
	for i := range c.Proxy.Proxies {
		if c.Proxy.Proxies[i].Protocol == "" {
			c.Proxy.Proxies[i].Protocol = "http"
		}
	}
}
