package proxy

import (
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool(n int) []*Config {
	proxies := make([]*Config, 0, n)
	for i := 0; i < n; i++ {
		proxies = append(proxies, &Config{
			Host:     "10.0.0.1",
			Port:     8000 + i,
			Protocol: "http",
			Active:   true,
		})
	}
	return proxies
}

func TestRoundRobinCyclesInOrder(t *testing.T) {
	proxies := newTestPool(3)
	r := NewRotator(Options{Proxies: proxies, RotationStrategy: StrategyRoundRobin})

	want := []int{8000, 8001, 8002, 8000, 8001}
	for i, port := range want {
		p := r.GetNext()
		require.NotNil(t, p, "call %d", i)
		assert.Equal(t, port, p.Port, "call %d", i)
	}
}

func TestGetNextReturnsNilWhenPoolExhausted(t *testing.T) {
	r := NewRotator(Options{Proxies: nil})
	assert.Nil(t, r.GetNext())

	proxies := newTestPool(1)
	r = NewRotator(Options{Proxies: proxies, MaxErrorsPerProxy: 2})
	r.ReportError(proxies[0], errors.New("boom"))
	r.ReportError(proxies[0], errors.New("boom"))
	assert.Nil(t, r.GetNext())
}

func TestReportErrorDeactivatesAtThreshold(t *testing.T) {
	proxies := newTestPool(3)
	r := NewRotator(Options{Proxies: proxies, MaxErrorsPerProxy: 3})

	assert.Equal(t, 3, r.Stats().Active)

	for i := 0; i < 3; i++ {
		r.ReportError(proxies[1], errors.New("connection refused"))
	}

	assert.False(t, proxies[1].Active)
	stats := r.Stats()
	assert.Equal(t, 2, stats.Active)
	assert.Equal(t, 1, stats.Inactive)
	assert.Equal(t, 3, stats.TotalErrors)

	for i := 0; i < 10; i++ {
		p := r.GetNext()
		require.NotNil(t, p)
		assert.NotEqual(t, proxies[1].Port, p.Port)
	}
}

func TestReportSuccessMovingAverage(t *testing.T) {
	proxies := newTestPool(1)
	r := NewRotator(Options{Proxies: proxies})

	r.ReportSuccess(proxies[0], 100*time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, proxies[0].ResponseTime)

	r.ReportSuccess(proxies[0], 200*time.Millisecond)
	assert.Equal(t, 150*time.Millisecond, proxies[0].ResponseTime)
}

func TestLeastUsedPrefersOldest(t *testing.T) {
	proxies := newTestPool(3)
	now := time.Now()
	proxies[0].LastUsed = now.Add(-time.Minute)
	proxies[1].LastUsed = now.Add(-time.Hour)
	proxies[2].LastUsed = now

	r := NewRotator(Options{Proxies: proxies, RotationStrategy: StrategyLeastUsed})
	p := r.GetNext()
	require.NotNil(t, p)
	assert.Equal(t, 8001, p.Port)
}

func TestFastestPrefersUntestedThenLowest(t *testing.T) {
	proxies := newTestPool(3)
	proxies[0].ResponseTime = 100 * time.Millisecond
	proxies[1].ResponseTime = 50 * time.Millisecond

	r := NewRotator(Options{Proxies: proxies, RotationStrategy: StrategyFastest})

	// Untested proxy (zero response time) wins first.
	p := r.GetNext()
	require.NotNil(t, p)
	assert.Equal(t, 8002, p.Port)

	proxies[2].ResponseTime = 200 * time.Millisecond
	p = r.GetNext()
	require.NotNil(t, p)
	assert.Equal(t, 8001, p.Port)
}

func TestResetErrorCountsReactivatesPool(t *testing.T) {
	proxies := newTestPool(2)
	r := NewRotator(Options{Proxies: proxies, MaxErrorsPerProxy: 1})

	r.ReportError(proxies[0], errors.New("boom"))
	r.ReportError(proxies[1], errors.New("boom"))
	assert.Nil(t, r.GetNext())

	r.ResetErrorCounts()
	stats := r.Stats()
	assert.Equal(t, 2, stats.Active)
	assert.Equal(t, 0, stats.TotalErrors)
	assert.NotNil(t, r.GetNext())
}

func TestStatsAveragesWholePool(t *testing.T) {
	proxies := newTestPool(2)
	proxies[0].ResponseTime = 100 * time.Millisecond
	proxies[1].ResponseTime = 300 * time.Millisecond
	proxies[1].Active = false
	proxies[1].ErrorCount = 5

	r := NewRotator(Options{Proxies: proxies, MaxErrorsPerProxy: 3})
	stats := r.Stats()

	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Active)
	assert.Equal(t, 200*time.Millisecond, stats.AvgResponseTime)
	assert.Equal(t, 5, stats.TotalErrors)
}

// healthCheckBackend serves both as the proxy endpoint and the health check
// target, so the whole cycle runs against a local listener.
func healthCheckBackend(t *testing.T) (*httptest.Server, string, int) {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(ts.Close)

	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return ts, host, port
}

func TestRunHealthChecksReactivatesWithRetryFailed(t *testing.T) {
	ts, host, port := healthCheckBackend(t)

	p := &Config{Host: host, Port: port, Protocol: "http", Active: false, ErrorCount: 5}
	r := NewRotator(Options{
		Proxies:            []*Config{p},
		MaxErrorsPerProxy:  3,
		HealthCheckURL:     ts.URL,
		RetryFailedProxies: true,
	})

	r.runHealthChecks()

	assert.True(t, p.Active)
	assert.Equal(t, 0, p.ErrorCount)
	assert.Equal(t, 1, r.Stats().Active)
}

func TestRunHealthChecksSkipsInactiveWithoutRetryFailed(t *testing.T) {
	ts, host, port := healthCheckBackend(t)

	p := &Config{Host: host, Port: port, Protocol: "http", Active: false, ErrorCount: 5}
	r := NewRotator(Options{
		Proxies:           []*Config{p},
		MaxErrorsPerProxy: 3,
		HealthCheckURL:    ts.URL,
	})

	r.runHealthChecks()

	assert.False(t, p.Active)
	assert.Equal(t, 5, p.ErrorCount)
}
