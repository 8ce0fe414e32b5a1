package scraping

import (
	"context"
	"time"

	"github.com/Caia-Tech/caia-harvester/pkg/logging"
)

// Throttle blocks until the origin's crawl delay has elapsed since the last
// request to it, then stamps the request time.
func (g *PolitenessGate) Throttle(ctx context.Context, origin string) error {
	host := g.LoadRobots(ctx, origin)

	wait := g.delayRemaining(origin)
	if wait > 0 {
		logger := logging.GetStageLogger("politeness", logging.StageFetch)
		logger.Debug().
			Str("origin", origin).
			Dur("wait", wait).
			Msg("Throttling request")

		if err := g.clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}

	host.LastRequest = g.clock.Now()
	return nil
}

// delayRemaining is max(0, delay - (now - lastRequest)).
func (g *PolitenessGate) delayRemaining(origin string) time.Duration {
	host, ok := g.state.Host(origin)
	if !ok || host.LastRequest.IsZero() {
		return 0
	}
	wait := host.CrawlDelay - g.clock.Now().Sub(host.LastRequest)
	if wait < 0 {
		return 0
	}
	return wait
}

// HostStats summarises politeness state for one origin.
type HostStats struct {
	Origin      string        `json:"origin"`
	CrawlDelay  time.Duration `json:"crawl_delay"`
	LastRequest time.Time     `json:"last_request"`
	HasRules    bool          `json:"has_rules"`
}

// GetAllHostStats returns the state of every origin contacted so far.
func (g *PolitenessGate) GetAllHostStats() []HostStats {
	stats := make([]HostStats, 0, len(g.state.Hosts))
	for origin, host := range g.state.Hosts {
		stats = append(stats, HostStats{
			Origin:      origin,
			CrawlDelay:  host.CrawlDelay,
			LastRequest: host.LastRequest,
			HasRules:    host.Robots != nil,
		})
	}
	return stats
}
