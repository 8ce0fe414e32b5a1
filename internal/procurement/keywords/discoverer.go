package keywords

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Caia-Tech/caia-harvester/internal/procurement"
	"github.com/Caia-Tech/caia-harvester/internal/procurement/search"
	"github.com/Caia-Tech/caia-harvester/pkg/document"
	"github.com/Caia-Tech/caia-harvester/pkg/extractor"
	"github.com/Caia-Tech/caia-harvester/pkg/logging"
	"github.com/Caia-Tech/caia-harvester/pkg/pipeline"
	"github.com/google/uuid"
)

// PageFetcher fetches one page.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*document.FetchedPage, error)
}

// Seed sources.
const (
	SourceDiscovery = "discovery"
	SourceChat      = "chat"
)

// Discoverer finds seed keywords by searching authoritative sites with
// dated query templates and mining the result pages' headings.
type Discoverer struct {
	config   *pipeline.DiscoveryConfig
	chatCfg  *pipeline.ChatConfig
	domains  []string
	searcher search.Searcher
	fetcher  PageFetcher
	chat     procurement.ChatProvider
	clock    procurement.Clock
}

// NewDiscoverer wires a discoverer. chat may be nil, which disables the
// persona fallback.
func NewDiscoverer(config *pipeline.HarvesterConfig, searcher search.Searcher, fetcher PageFetcher, chat procurement.ChatProvider, clock procurement.Clock) *Discoverer {
	if clock == nil {
		clock = procurement.SystemClock{}
	}
	return &Discoverer{
		config:   config.Discovery,
		chatCfg:  config.Chat,
		domains:  config.Search.AuthoritativeDomains,
		searcher: searcher,
		fetcher:  fetcher,
		chat:     chat,
		clock:    clock,
	}
}

// Queries expands the templates with the current year.
func (d *Discoverer) Queries() []string {
	year := strconv.Itoa(d.clock.Now().Year())
	queries := make([]string, len(d.config.Templates))
	for i, tmpl := range d.config.Templates {
		queries[i] = strings.ReplaceAll(tmpl, "{year}", year)
	}
	return queries
}

// Discover returns ranked candidates mined from the template searches.
func (d *Discoverer) Discover(ctx context.Context) []Candidate {
	logger := logging.GetStageLogger("discoverer", logging.StageKeyword)
	tally := NewTally()
	fetched := make(map[string]bool)
	doc := 0

	for _, query := range d.Queries() {
		if ctx.Err() != nil {
			break
		}

		results, err := d.searcher.Search(ctx, query, d.domains, d.config.ResultsPerTemplate)
		if err != nil {
			logger.Warn().Err(err).Str("query", query).Msg("Discovery search failed")
			continue
		}

		for _, result := range results {
			if fetched[result.URL] {
				continue
			}
			fetched[result.URL] = true

			page, err := d.fetcher.Fetch(ctx, result.URL)
			if err != nil {
				continue
			}
			for _, signal := range extractor.Signals(page.HTML, d.config.ParagraphsPerPage) {
				tally.AddNGrams(doc, signal)
			}
			doc++
		}
	}

	ranked := tally.Rank()
	if limit := d.config.MaxCandidates; limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	logger.Debug().Int("pages", doc).Int("candidates", len(ranked)).Msg("Discovery finished")
	return ranked
}

// Seed picks the first unseen discovered candidate, falling back to asking
// the chat collaborator for a keyword.
func (d *Discoverer) Seed(ctx context.Context, isSeen func(string) bool) (string, string, error) {
	for _, candidate := range d.Discover(ctx) {
		if kw := Normalize(candidate.Text); kw != "" && !isSeen(kw) {
			return kw, SourceDiscovery, nil
		}
	}

	if d.chat == nil {
		return "", "", procurement.ErrNoCandidates
	}

	reply, err := d.chat.Complete(ctx, d.chatCfg.Persona, d.chatCfg.SeedPrompt, uuid.NewString())
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", procurement.ErrLLMFailed, err)
	}

	lines := ParseLines(reply)
	for _, kw := range lines {
		if !isSeen(kw) {
			return kw, SourceChat, nil
		}
	}
	return "", "", procurement.ErrNoCandidates
}
