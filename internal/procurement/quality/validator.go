package quality

import (
	"math"
	"unicode/utf8"

	"github.com/Caia-Tech/caia-harvester/pkg/pipeline"
)

// Score weights and saturation caps.
const (
	wordWeight   = 0.45
	stopWeight   = 0.25
	titleWeight  = 0.15
	charWeight   = 0.15
	wordCap      = 1200.0
	stopRatioCap = 0.65
	titleCap     = 0.6
	charCap      = 8000.0
)

// Rejection reasons.
const (
	ReasonTooShort = "too-short"
	ReasonLowScore = "low-score"
)

// Signals are the measurements a score is computed from.
type Signals struct {
	WordCount     int     `json:"word_count"`
	StopwordRatio float64 `json:"stopword_ratio"`
	TitleOverlap  float64 `json:"title_overlap"`
	CharCount     int     `json:"char_count"`
}

// Assessment is the outcome of one quality evaluation.
type Assessment struct {
	Signals
	Score    float64 `json:"score"`
	Accepted bool    `json:"accepted"`
	Reason   string  `json:"reason,omitempty"`
}

// Gate scores extracted documents and rejects thin or non-prose text.
type Gate struct {
	config *pipeline.QualityConfig
}

// NewGate creates a quality gate. A nil config uses defaults.
func NewGate(config *pipeline.QualityConfig) *Gate {
	if config == nil {
		config = pipeline.DefaultHarvesterConfig().Quality
	}
	return &Gate{config: config}
}

// Evaluate scores body text against its title.
func (g *Gate) Evaluate(text, title string) *Assessment {
	signals := Measure(text, title)

	if signals.CharCount < g.config.MinTextChars {
		return &Assessment{Signals: signals, Reason: ReasonTooShort}
	}

	assessment := &Assessment{Signals: signals, Score: Score(signals)}
	assessment.Accepted = assessment.Score >= g.config.Threshold
	if !assessment.Accepted {
		assessment.Reason = ReasonLowScore
	}
	return assessment
}

// Measure computes the quality signals of text.
func Measure(text, title string) Signals {
	tokens := Tokenize(text)
	signals := Signals{
		WordCount: len(tokens),
		CharCount: utf8.RuneCountInString(text),
	}
	if len(tokens) == 0 {
		return signals
	}

	stop := 0
	body := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		if IsStopword(tok) {
			stop++
		}
		body[tok] = struct{}{}
	}
	signals.StopwordRatio = float64(stop) / float64(len(tokens))

	titleTerms := make(map[string]struct{})
	for _, tok := range Tokenize(title) {
		if !IsStopword(tok) {
			titleTerms[tok] = struct{}{}
		}
	}
	if len(titleTerms) > 0 {
		hits := 0
		for tok := range titleTerms {
			if _, ok := body[tok]; ok {
				hits++
			}
		}
		signals.TitleOverlap = float64(hits) / float64(len(titleTerms))
	}

	return signals
}

// Score combines signals into a value in [0, 1].
func Score(s Signals) float64 {
	score := wordWeight*(math.Min(float64(s.WordCount), wordCap)/wordCap) +
		stopWeight*(math.Min(s.StopwordRatio, stopRatioCap)/stopRatioCap) +
		titleWeight*math.Min(s.TitleOverlap, titleCap) +
		charWeight*(math.Min(float64(s.CharCount), charCap)/charCap)

	return math.Max(0, math.Min(1, score))
}
