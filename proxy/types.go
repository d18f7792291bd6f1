package proxy

import (
	"fmt"
	"net/url"
	"time"
)

// Config is a single outbound proxy and its mutable health state. The
// Rotator owns the struct; callers treat it as read-only outside of the
// Report* methods.
type Config struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	Username     string        `json:"username,omitempty"`
	Password     string        `json:"password,omitempty"`
	Protocol     string        `json:"protocol"`
	Active       bool          `json:"active"`
	LastUsed     time.Time     `json:"last_used"`
	ErrorCount   int           `json:"error_count"`
	ResponseTime time.Duration `json:"response_time"`
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// URL builds the proxy URL including credentials when present.
func (c *Config) URL() *url.URL {
	u := &url.URL{
		Scheme: c.Protocol,
		Host:   c.Address(),
	}
	if c.Username != "" {
		u.User = url.UserPassword(c.Username, c.Password)
	}
	return u
}

// Strategy names accepted by the rotator.
const (
	StrategyRoundRobin = "round-robin"
	StrategyRandom     = "random"
	StrategyLeastUsed  = "least-used"
	StrategyFastest    = "fastest"
)

// Options configures a Rotator at construction time.
type Options struct {
	Proxies             []*Config
	MaxErrorsPerProxy   int
	HealthCheckInterval time.Duration
	HealthCheckURL      string
	RotationStrategy    string
	RetryFailedProxies  bool
}

// Stats is a point-in-time snapshot of the pool.
type Stats struct {
	Total           int           `json:"total"`
	Active          int           `json:"active"`
	Inactive        int           `json:"inactive"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
	TotalErrors     int           `json:"total_errors"`
}
