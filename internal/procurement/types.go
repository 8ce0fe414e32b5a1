package procurement

import (
	"context"
	"time"
)

// ChatProvider is the chat-completion collaborator used for keyword seeding
// and next-keyword proposal.
type ChatProvider interface {
	Complete(ctx context.Context, systemContext, userPrompt, sessionID string) (string, error)
}

// RobotsRules answers whether an agent may fetch a path on one origin.
type RobotsRules interface {
	TestAgent(path, agent string) bool
}

// HostState tracks politeness for one origin (scheme://host).
type HostState struct {
	LastRequest time.Time     `json:"last_request"`
	CrawlDelay  time.Duration `json:"crawl_delay"`
	Robots      RobotsRules   `json:"-"` // nil means allow-all
}

// CrawlState is the process-lifetime state shared by the pipeline
// components. It is owned by a single control flow and is not safe for
// concurrent use.
type CrawlState struct {
	Hosts        map[string]*HostState
	Fingerprints []uint64
	SeenKeywords map[string]struct{}
}

// NewCrawlState creates empty crawl state.
func NewCrawlState() *CrawlState {
	return &CrawlState{
		Hosts:        make(map[string]*HostState),
		SeenKeywords: make(map[string]struct{}),
	}
}

// Host returns the state for an origin, if robots.txt was loaded for it.
func (s *CrawlState) Host(origin string) (*HostState, bool) {
	h, ok := s.Hosts[origin]
	return h, ok
}

// IsSeen reports whether a normalized keyword was already used.
func (s *CrawlState) IsSeen(keyword string) bool {
	_, ok := s.SeenKeywords[keyword]
	return ok
}

// MarkSeen records a keyword and reports whether it was new.
func (s *CrawlState) MarkSeen(keyword string) bool {
	if s.IsSeen(keyword) {
		return false
	}
	s.SeenKeywords[keyword] = struct{}{}
	return true
}

// Clock abstracts time so pacing can be tested without sleeping.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Sleep blocks for d or until ctx is done.
func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ManualClock is a Clock whose time only moves when Sleep or Advance is
// called. Sleeps are recorded.
type ManualClock struct {
	now    time.Time
	Sleeps []time.Duration
}

// NewManualClock starts a manual clock at now.
func NewManualClock(now time.Time) *ManualClock {
	return &ManualClock{now: now}
}

func (c *ManualClock) Now() time.Time { return c.now }

// Sleep advances the clock by d without blocking.
func (c *ManualClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Sleeps = append(c.Sleeps, d)
	if d > 0 {
		c.now = c.now.Add(d)
	}
	return nil
}

// Advance moves the clock forward without recording a sleep.
func (c *ManualClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}
