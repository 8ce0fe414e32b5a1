package pipeline

import "time"

// Outcome is the terminal state of one URL in a cycle.
type Outcome string

const (
	OutcomeEmitted           Outcome = "emitted"
	OutcomeRobotsDisallowed  Outcome = "robots_disallowed"
	OutcomeFetchFailed       Outcome = "fetch_failed"
	OutcomeExtractionEmpty   Outcome = "extraction_empty"
	OutcomeQualityRejected   Outcome = "quality_rejected"
	OutcomeDuplicateRejected Outcome = "duplicate_rejected"
	OutcomeEmitFailed        Outcome = "emit_failed"
	OutcomePanic             Outcome = "panic"
)

// URLReport records what happened to one search result.
type URLReport struct {
	URL      string  `json:"url"`
	Outcome  Outcome `json:"outcome"`
	Reason   string  `json:"reason,omitempty"`
	Score    float64 `json:"score,omitempty"`
	Distance int     `json:"distance,omitempty"`
	Chunks   int     `json:"chunks"`
	Err      error   `json:"-"`
}

// CycleReport summarizes one SEED_SELECT to PROPOSE_NEXT pass.
type CycleReport struct {
	Cycle       int           `json:"cycle"`
	Keyword     string        `json:"keyword"`
	Source      string        `json:"source"` // discovery, chat, proposal
	Results     int           `json:"results"`
	URLs        []URLReport   `json:"urls"`
	Chunks      int           `json:"chunks"`
	NextKeyword string        `json:"next_keyword,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	Err         error         `json:"-"`
}

// Count returns how many URLs ended with outcome.
func (r *CycleReport) Count(outcome Outcome) int {
	n := 0
	for _, u := range r.URLs {
		if u.Outcome == outcome {
			n++
		}
	}
	return n
}
