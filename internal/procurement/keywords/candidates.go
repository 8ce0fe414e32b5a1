package keywords

import (
	"sort"
	"strings"
	"unicode"

	"github.com/Caia-Tech/caia-harvester/internal/procurement/quality"
)

// lengthBoost favors multi-word phrases.
var lengthBoost = map[int]float64{1: 1.0, 2: 1.6, 3: 1.5, 4: 1.3}

// Candidate is a scored keyword phrase.
type Candidate struct {
	Text      string  `json:"text"`
	Frequency int     `json:"frequency"`
	Documents int     `json:"documents"`
	Score     float64 `json:"score"`
}

// Tally aggregates phrase occurrences across documents.
type Tally struct {
	frequency map[string]int
	documents map[string]map[int]struct{}
}

func NewTally() *Tally {
	return &Tally{
		frequency: make(map[string]int),
		documents: make(map[string]map[int]struct{}),
	}
}

// Add counts one occurrence of phrase in document doc.
func (t *Tally) Add(doc int, phrase string) {
	if phrase == "" {
		return
	}
	t.frequency[phrase]++
	if t.documents[phrase] == nil {
		t.documents[phrase] = make(map[int]struct{})
	}
	t.documents[phrase][doc] = struct{}{}
}

// AddNGrams counts the 1-4 word n-grams of text for document doc.
func (t *Tally) AddNGrams(doc int, text string) {
	for _, gram := range NGrams(text, MaxKeywordWords) {
		t.Add(doc, gram)
	}
}

// Rank scores every phrase, best first. Ties sort alphabetically.
func (t *Tally) Rank() []Candidate {
	candidates := make([]Candidate, 0, len(t.frequency))
	for phrase, freq := range t.frequency {
		docs := len(t.documents[phrase])
		candidates = append(candidates, Candidate{
			Text:      phrase,
			Frequency: freq,
			Documents: docs,
			Score:     score(phrase, freq, docs),
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Text < candidates[j].Text
	})
	return candidates
}

// score is frequency × cross-document bonus × length boost.
func score(phrase string, frequency, documents int) float64 {
	s := float64(frequency)
	if documents > 1 {
		s *= 1.5
	}
	boost, ok := lengthBoost[len(strings.Fields(phrase))]
	if !ok {
		boost = 1.0
	}
	return s * boost
}

// NGrams returns the n-grams of length 1..maxN in text. A gram with a
// stopword at either end is skipped because its trimmed form comes from a
// shorter window. All-digit grams are dropped, and grams never span lines or
// sentence punctuation.
func NGrams(text string, maxN int) []string {
	var grams []string
	for _, segment := range segments(text) {
		tokens := quality.Tokenize(segment)
		for i := range tokens {
			for n := 1; n <= maxN && i+n <= len(tokens); n++ {
				window := tokens[i : i+n]
				if quality.IsStopword(window[0]) || quality.IsStopword(window[n-1]) {
					continue
				}
				if allDigits(window) {
					continue
				}
				grams = append(grams, strings.Join(window, " "))
			}
		}
	}
	return grams
}

// segments splits text on line breaks and sentence punctuation.
func segments(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		switch r {
		case '\n', '.', '!', '?', ';', ':', '|', '(', ')', '[', ']', '"', '—', '–':
			return true
		}
		return false
	})
}

func allDigits(tokens []string) bool {
	for _, tok := range tokens {
		for _, r := range tok {
			if !unicode.IsDigit(r) {
				return false
			}
		}
	}
	return true
}
