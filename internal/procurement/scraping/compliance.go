package scraping

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/Caia-Tech/caia-harvester/internal/procurement"
	"github.com/Caia-Tech/caia-harvester/pkg/logging"
	"github.com/Caia-Tech/caia-harvester/pkg/pipeline"
	"github.com/temoto/robotstxt"
)

// maxRobotsBytes caps how much of a robots.txt file is read.
const maxRobotsBytes = 512 * 1024

var crawlDelayPattern = regexp.MustCompile(`(?im)^\s*crawl-delay\s*:\s*([0-9]+(?:\.[0-9]+)?)`)

// PolitenessGate enforces robots.txt rules and per-host crawl delays.
type PolitenessGate struct {
	state  *procurement.CrawlState
	config *pipeline.PolitenessConfig
	client *http.Client
	clock  procurement.Clock
}

// NewPolitenessGate creates a gate over the shared crawl state. A nil client
// uses a plain client with the configured robots timeout.
func NewPolitenessGate(config *pipeline.PolitenessConfig, state *procurement.CrawlState, clock procurement.Clock, client *http.Client) *PolitenessGate {
	if config == nil {
		config = pipeline.DefaultHarvesterConfig().Politeness
	}
	if clock == nil {
		clock = procurement.SystemClock{}
	}
	if client == nil {
		client = &http.Client{Timeout: config.RobotsTimeout.Duration}
	}
	return &PolitenessGate{
		state:  state,
		config: config,
		client: client,
		clock:  clock,
	}
}

// Agent is the robots.txt agent name the gate checks by default.
func (g *PolitenessGate) Agent() string {
	return g.config.RobotsAgent
}

// LoadRobots fetches and caches robots.txt for an origin. Any failure caches
// allow-all rules with the default crawl delay.
func (g *PolitenessGate) LoadRobots(ctx context.Context, origin string) *procurement.HostState {
	if host, ok := g.state.Host(origin); ok {
		return host
	}

	logger := logging.GetStageLogger("politeness", logging.StageRobots)
	host := &procurement.HostState{CrawlDelay: g.config.DefaultCrawlDelay.Duration}
	g.state.Hosts[origin] = host

	body, err := g.fetchRobotsTxt(ctx, origin+"/robots.txt")
	if err != nil {
		logger.Debug().Err(err).Str("origin", origin).Msg("robots.txt unavailable, allowing all")
		return host
	}

	rules, err := robotstxt.FromBytes(body)
	if err != nil {
		logger.Debug().Err(err).Str("origin", origin).Msg("robots.txt unparseable, allowing all")
		return host
	}
	host.Robots = rules

	if delay, ok := parseCrawlDelay(body); ok {
		host.CrawlDelay = delay
	}

	logger.Debug().
		Str("origin", origin).
		Dur("crawl_delay", host.CrawlDelay).
		Msg("robots.txt loaded")

	return host
}

// Allowed reports whether agent may fetch rawURL. Robots rules are loaded
// on first contact with the origin.
func (g *PolitenessGate) Allowed(ctx context.Context, rawURL, agent string) bool {
	origin, u, err := Origin(rawURL)
	if err != nil {
		return false
	}

	host := g.LoadRobots(ctx, origin)
	if host.Robots == nil {
		return true
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return host.Robots.TestAgent(path, agent)
}

func (g *PolitenessGate) fetchRobotsTxt(ctx context.Context, robotsURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, g.config.RobotsTimeout.Duration)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", g.config.RobotsAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("robots.txt returned status %d", resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
}

// parseCrawlDelay pulls the first Crawl-delay value out of a robots file.
func parseCrawlDelay(body []byte) (time.Duration, bool) {
	m := crawlDelayPattern.FindSubmatch(body)
	if m == nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(string(m[1]), 64)
	if err != nil || seconds < 0 {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}

// Origin returns scheme://host for an absolute http(s) URL.
func Origin(rawURL string) (string, *url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", nil, fmt.Errorf("not an absolute http(s) URL: %q", rawURL)
	}
	return u.Scheme + "://" + u.Host, u, nil
}
