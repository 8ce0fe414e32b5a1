package scraping

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Caia-Tech/caia-harvester/internal/procurement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGate(t *testing.T, robots string, status int) (*PolitenessGate, *procurement.ManualClock, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.WriteHeader(status)
			w.Write([]byte(robots))
			return
		}
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	t.Cleanup(server.Close)

	clock := procurement.NewManualClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	gate := NewPolitenessGate(nil, procurement.NewCrawlState(), clock, server.Client())
	return gate, clock, server
}

func TestPolitenessGate_Allowed(t *testing.T) {
	robots := "User-agent: *\nDisallow: /private\nCrawl-delay: 5\n"
	gate, _, server := newTestGate(t, robots, http.StatusOK)
	ctx := context.Background()

	tests := []struct {
		name    string
		path    string
		allowed bool
	}{
		{"root", "/", true},
		{"public page", "/docs/intro", true},
		{"private root", "/private", false},
		{"private child", "/private/x", false},
		{"query string", "/search?q=go", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, gate.Allowed(ctx, server.URL+tt.path, gate.Agent()))
		})
	}

	host, ok := gate.state.Host(server.URL)
	require.True(t, ok)
	assert.Equal(t, 5*time.Second, host.CrawlDelay)
	assert.NotNil(t, host.Robots)
}

func TestPolitenessGate_FailuresAllowAll(t *testing.T) {
	tests := []struct {
		name   string
		robots string
		status int
	}{
		{"missing robots", "", http.StatusNotFound},
		{"server error", "User-agent: *\nDisallow: /\n", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate, _, server := newTestGate(t, tt.robots, tt.status)

			assert.True(t, gate.Allowed(context.Background(), server.URL+"/anything", gate.Agent()))

			host, ok := gate.state.Host(server.URL)
			require.True(t, ok)
			assert.Nil(t, host.Robots)
			assert.Equal(t, time.Second, host.CrawlDelay)
		})
	}
}

func TestPolitenessGate_UnreachableHost(t *testing.T) {
	clock := procurement.NewManualClock(time.Now())
	gate := NewPolitenessGate(nil, procurement.NewCrawlState(), clock, nil)

	assert.True(t, gate.Allowed(context.Background(), "http://127.0.0.1:1/page", gate.Agent()))
	assert.False(t, gate.Allowed(context.Background(), "ftp://example.com/file", gate.Agent()))
}

func TestPolitenessGate_CachesRobots(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			hits++
		}
		w.Write([]byte("User-agent: *\nAllow: /\n"))
	}))
	defer server.Close()

	gate := NewPolitenessGate(nil, procurement.NewCrawlState(), procurement.NewManualClock(time.Now()), server.Client())
	for i := 0; i < 3; i++ {
		gate.Allowed(context.Background(), server.URL+"/page", gate.Agent())
	}

	assert.Equal(t, 1, hits)
}

func TestPolitenessGate_Throttle(t *testing.T) {
	robots := "User-agent: *\nCrawl-delay: 5\n"
	gate, clock, server := newTestGate(t, robots, http.StatusOK)
	ctx := context.Background()

	require.NoError(t, gate.Throttle(ctx, server.URL))
	first := clock.Now()
	assert.Empty(t, clock.Sleeps)

	clock.Advance(2 * time.Second)
	require.NoError(t, gate.Throttle(ctx, server.URL))
	second := clock.Now()

	require.Len(t, clock.Sleeps, 1)
	assert.Equal(t, 3*time.Second, clock.Sleeps[0])
	assert.GreaterOrEqual(t, second.Sub(first), 5*time.Second)

	// enough time already passed
	clock.Advance(10 * time.Second)
	require.NoError(t, gate.Throttle(ctx, server.URL))
	assert.Len(t, clock.Sleeps, 1)
}

func TestPolitenessGate_ThrottleCancelled(t *testing.T) {
	gate, _, server := newTestGate(t, "User-agent: *\nCrawl-delay: 5\n", http.StatusOK)

	require.NoError(t, gate.Throttle(context.Background(), server.URL))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, gate.Throttle(ctx, server.URL), context.Canceled)
}

func TestParseCrawlDelay(t *testing.T) {
	tests := []struct {
		name     string
		robots   string
		expected time.Duration
		found    bool
	}{
		{"integer", "User-agent: *\nCrawl-delay: 10", 10 * time.Second, true},
		{"fraction", "crawl-delay:0.5", 500 * time.Millisecond, true},
		{"mixed case indented", "User-agent: *\n  Crawl-Delay : 2", 2 * time.Second, true},
		{"absent", "User-agent: *\nDisallow: /tmp", 0, false},
		{"garbage value", "Crawl-delay: soon", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delay, ok := parseCrawlDelay([]byte(tt.robots))
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.expected, delay)
		})
	}
}

func TestOrigin(t *testing.T) {
	origin, u, err := Origin("https://Example.com:8443/a/b?c=d")
	require.NoError(t, err)
	assert.Equal(t, "https://Example.com:8443", origin)
	assert.Equal(t, "/a/b", u.Path)

	_, _, err = Origin("/relative/path")
	assert.Error(t, err)
}

func TestPolitenessGate_HostStats(t *testing.T) {
	gate, _, server := newTestGate(t, "User-agent: *\nCrawl-delay: 3\n", http.StatusOK)
	require.NoError(t, gate.Throttle(context.Background(), server.URL))

	stats := gate.GetAllHostStats()
	require.Len(t, stats, 1)
	assert.Equal(t, server.URL, stats[0].Origin)
	assert.Equal(t, 3*time.Second, stats[0].CrawlDelay)
	assert.True(t, stats[0].HasRules)
	assert.False(t, stats[0].LastRequest.IsZero())

}
