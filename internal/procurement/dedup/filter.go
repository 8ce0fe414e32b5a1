package dedup

import (
	"github.com/Caia-Tech/caia-harvester/internal/procurement"
	"github.com/Caia-Tech/caia-harvester/pkg/pipeline"
)

// Verdict is the outcome of a duplicate check.
type Verdict struct {
	Duplicate   bool   `json:"duplicate"`
	Distance    int    `json:"distance"` // smallest distance seen, -1 when nothing was compared
	Fingerprint uint64 `json:"fingerprint"`
	Available   bool   `json:"available"`
}

// Filter rejects documents whose fingerprint is within the configured
// Hamming distance of any accepted one.
type Filter struct {
	state         *procurement.CrawlState
	fingerprinter Fingerprinter
	config        *pipeline.DedupConfig
}

// NewFilter creates a filter over the shared fingerprint set. When dedup is
// disabled in config the Unavailable fingerprinter is used.
func NewFilter(config *pipeline.DedupConfig, state *procurement.CrawlState) *Filter {
	if config == nil {
		config = pipeline.DefaultHarvesterConfig().Dedup
	}
	var fp Fingerprinter = SimHasher{}
	if !config.Enabled {
		fp = Unavailable{}
	}
	return NewFilterWith(config, state, fp)
}

// NewFilterWith creates a filter with an explicit fingerprinter.
func NewFilterWith(config *pipeline.DedupConfig, state *procurement.CrawlState, fp Fingerprinter) *Filter {
	if config == nil {
		config = pipeline.DefaultHarvesterConfig().Dedup
	}
	return &Filter{state: state, fingerprinter: fp, config: config}
}

// Check tests text against the accepted set and records it when unique.
// Fingerprinting failures fail open.
func (f *Filter) Check(text string) Verdict {
	fingerprint, err := f.fingerprinter.Fingerprint(text)
	if err != nil {
		return Verdict{Distance: -1}
	}

	verdict := Verdict{Distance: -1, Fingerprint: fingerprint, Available: true}
	for _, accepted := range f.state.Fingerprints {
		d := HammingDistance(fingerprint, accepted)
		if verdict.Distance < 0 || d < verdict.Distance {
			verdict.Distance = d
		}
		if d <= f.config.MaxHamming {
			verdict.Duplicate = true
			return verdict
		}
	}

	f.remember(fingerprint)
	return verdict
}

func (f *Filter) remember(fingerprint uint64) {
	f.state.Fingerprints = append(f.state.Fingerprints, fingerprint)
	if limit := f.config.MaxFingerprints; limit > 0 && len(f.state.Fingerprints) > limit {
		f.state.Fingerprints = f.state.Fingerprints[len(f.state.Fingerprints)-limit:]
	}
}

// Size is the number of accepted fingerprints held.
func (f *Filter) Size() int {
	return len(f.state.Fingerprints)
}
