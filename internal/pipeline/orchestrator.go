package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/Caia-Tech/caia-harvester/internal/procurement"
	"github.com/Caia-Tech/caia-harvester/internal/procurement/dedup"
	"github.com/Caia-Tech/caia-harvester/internal/procurement/keywords"
	"github.com/Caia-Tech/caia-harvester/internal/procurement/quality"
	"github.com/Caia-Tech/caia-harvester/internal/processing"
	"github.com/Caia-Tech/caia-harvester/internal/storage"
	"github.com/Caia-Tech/caia-harvester/pkg/document"
	"github.com/Caia-Tech/caia-harvester/pkg/logging"
	settings "github.com/Caia-Tech/caia-harvester/pkg/pipeline"
	"github.com/rs/zerolog"
)

// SourceProposal marks a keyword chosen by the previous cycle's proposer.
const SourceProposal = "proposal"

// Searcher returns result URLs for a keyword.
type Searcher interface {
	Search(ctx context.Context, keyword string, sites []string, num int) ([]document.SearchResult, error)
}

// Fetcher downloads one page, honoring robots rules and host pacing.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*document.FetchedPage, error)
}

// Extractor turns HTML into main-content text. It never returns nil.
type Extractor interface {
	Extract(rawHTML, baseURL string) *document.ExtractedDocument
}

// Seeder picks a fresh keyword when no proposal is pending.
type Seeder interface {
	Seed(ctx context.Context, isSeen func(string) bool) (keyword, source string, err error)
}

// NextProposer suggests the next keyword from the pages of a cycle.
type NextProposer interface {
	Propose(ctx context.Context, pages []*document.ExtractedDocument, isSeen func(string) bool) (string, error)
}

// KeywordLog is the durable set of keywords already crawled.
type KeywordLog interface {
	IsSeen(keyword string) bool
	MarkSeen(keyword string) (bool, error)
}

// StatsReporter logs and resets counters gathered during a cycle.
type StatsReporter interface {
	LogSummary()
}

// Components are the collaborators an orchestrator drives.
type Components struct {
	Searcher  Searcher
	Fetcher   Fetcher
	Extractor Extractor
	Quality   *quality.Gate
	Dedup     *dedup.Filter
	Chunker   *processing.Chunker
	Index     storage.ChunkIndex
	Seeder    Seeder
	Proposer  NextProposer
	Keywords  KeywordLog
	Clock     procurement.Clock

	IndexStats StatsReporter // optional
}

// Orchestrator runs the keyword research loop: select a keyword, search,
// crawl each result through the filters, emit chunks, propose the next
// keyword.
type Orchestrator struct {
	Components
	search *settings.SearchConfig
	run    *settings.RunConfig

	next   string
	cycles int
}

func NewOrchestrator(config *settings.HarvesterConfig, components Components) *Orchestrator {
	if components.Clock == nil {
		components.Clock = procurement.SystemClock{}
	}
	return &Orchestrator{
		Components: components,
		search:     config.Search,
		run:        config.Run,
	}
}

// SetNext queues keyword for the next cycle.
func (o *Orchestrator) SetNext(keyword string) {
	o.next = keywords.Normalize(keyword)
}

// Run loops until ctx is cancelled or MaxCycles cycles completed. A panic in
// a cycle is logged and the loop continues.
func (o *Orchestrator) Run(ctx context.Context) error {
	logger := logging.GetStageLogger("orchestrator", logging.StageCycle)
	logger.Info().Int("max_cycles", o.run.MaxCycles).Msg("Harvester loop started")

	for {
		if err := ctx.Err(); err != nil {
			logger.Info().Int("cycles", o.cycles).Msg("Harvester loop stopped")
			return err
		}
		if o.run.MaxCycles > 0 && o.cycles >= o.run.MaxCycles {
			logger.Info().Int("cycles", o.cycles).Msg("Cycle limit reached")
			return nil
		}

		if o.cycles > 0 {
			if err := o.Clock.Sleep(ctx, o.run.CyclePause.Duration); err != nil {
				continue
			}
		}

		logCycle(logger, o.safeCycle(ctx))
		if o.IndexStats != nil {
			o.IndexStats.LogSummary()
		}
	}
}

func (o *Orchestrator) safeCycle(ctx context.Context) (report *CycleReport) {
	defer func() {
		if r := recover(); r != nil {
			if report == nil {
				report = &CycleReport{Cycle: o.cycles}
			}
			report.Err = fmt.Errorf("cycle panicked: %v", r)
		}
	}()
	return o.RunCycle(ctx)
}

// RunCycle performs one pass of the state machine.
func (o *Orchestrator) RunCycle(ctx context.Context) *CycleReport {
	o.cycles++
	report := &CycleReport{Cycle: o.cycles, StartedAt: o.Clock.Now()}
	defer func() { report.Duration = o.Clock.Now().Sub(report.StartedAt) }()

	keyword, source, err := o.selectKeyword(ctx)
	if err != nil {
		report.Err = err
		return report
	}
	report.Keyword, report.Source = keyword, source

	kwLogger := logging.GetStageLogger("orchestrator", logging.StageKeyword)
	if _, err := o.Keywords.MarkSeen(keyword); err != nil {
		kwLogger.Error().Err(err).Str("keyword", keyword).Msg("Failed to persist keyword")
	}
	kwLogger.Info().Str("keyword", keyword).Str("source", source).Msg("Keyword selected")

	results := o.searchResults(ctx, keyword)
	report.Results = len(results)

	var pages []*document.ExtractedDocument
	for i, result := range results {
		if ctx.Err() != nil {
			break
		}
		if i > 0 {
			if err := o.Clock.Sleep(ctx, o.run.URLPause.Duration); err != nil {
				break
			}
		}

		urlReport, doc := o.safeProcessURL(ctx, keyword, result.URL)
		report.URLs = append(report.URLs, urlReport)
		report.Chunks += urlReport.Chunks
		if urlReport.Outcome == OutcomeEmitted {
			pages = append(pages, doc)
		}
	}

	report.NextKeyword = o.proposeNext(ctx, pages)
	o.next = report.NextKeyword
	return report
}

func (o *Orchestrator) selectKeyword(ctx context.Context) (string, string, error) {
	if next := o.next; next != "" {
		o.next = ""
		if !o.Keywords.IsSeen(next) {
			return next, SourceProposal, nil
		}
	}

	keyword, source, err := o.Seeder.Seed(ctx, o.Keywords.IsSeen)
	if err != nil {
		logger := logging.GetStageLogger("orchestrator", logging.StageKeyword)
		logger.Warn().Err(err).Msg("No seed keyword available")
		return "", "", err
	}
	return keyword, source, nil
}

func (o *Orchestrator) searchResults(ctx context.Context, keyword string) []document.SearchResult {
	var sites []string
	if o.search.RestrictCrawl {
		sites = o.search.AuthoritativeDomains
	}

	results, err := o.Searcher.Search(ctx, keyword, sites, o.run.ResultsPerSearch)
	logger := logging.GetStageLogger("orchestrator", logging.StageSearch)
	if err != nil {
		logger.Warn().Err(err).Str("keyword", keyword).Msg("Search failed")
		return nil
	}
	logger.Info().Str("keyword", keyword).Int("results", len(results)).Msg("Search finished")
	return results
}

func (o *Orchestrator) proposeNext(ctx context.Context, pages []*document.ExtractedDocument) string {
	logger := logging.GetStageLogger("orchestrator", logging.StageNext)
	if len(pages) == 0 {
		logger.Info().Msg("No pages emitted, skipping proposal")
		return ""
	}

	next, err := o.Proposer.Propose(ctx, pages, o.Keywords.IsSeen)
	if err != nil {
		logger.Warn().Err(err).Int("pages", len(pages)).Msg("No next keyword proposed")
		return ""
	}
	logger.Info().Str("next_keyword", next).Msg("Next keyword proposed")
	return next
}

func (o *Orchestrator) safeProcessURL(ctx context.Context, keyword, rawURL string) (report URLReport, doc *document.ExtractedDocument) {
	defer func() {
		if r := recover(); r != nil {
			logger := logging.GetStageLogger("orchestrator", logging.StageCycle)
			logger.Error().
				Str("url", rawURL).
				Interface("panic", r).
				Msg("URL processing panicked")
			report = URLReport{URL: rawURL, Outcome: OutcomePanic, Reason: fmt.Sprint(r), Err: fmt.Errorf("panic: %v", r)}
			doc = nil
		}
	}()
	return o.processURL(ctx, keyword, rawURL)
}

// processURL runs FETCH, EXTRACT, QUALITY, DEDUP, CHUNK and EMIT for one URL.
func (o *Orchestrator) processURL(ctx context.Context, keyword, rawURL string) (URLReport, *document.ExtractedDocument) {
	report := URLReport{URL: rawURL}

	page, err := o.Fetcher.Fetch(ctx, rawURL)
	if err != nil {
		report.Outcome, report.Err = OutcomeFetchFailed, err
		var fetchErr *procurement.FetchError
		if errors.As(err, &fetchErr) {
			report.Reason = fetchErr.Reason
		}
		if errors.Is(err, procurement.ErrRobotsDisallowed) {
			report.Outcome = OutcomeRobotsDisallowed
		}
		return report, nil
	}

	doc := o.Extractor.Extract(page.HTML, rawURL)
	if doc.Empty() {
		report.Outcome, report.Err = OutcomeExtractionEmpty, procurement.ErrExtractionEmpty
		logger := logging.GetStageLogger("orchestrator", logging.StageQuality)
		logger.Info().
			Str("url", rawURL).
			Msg("No text extracted")
		return report, nil
	}

	assessment := o.Quality.Evaluate(doc.Text, doc.Title)
	report.Score = assessment.Score
	if !assessment.Accepted {
		report.Outcome = OutcomeQualityRejected
		report.Reason = assessment.Reason
		report.Err = fmt.Errorf("%w: %s (score %.3f)", procurement.ErrQualityRejected, assessment.Reason, assessment.Score)
		logger := logging.GetStageLogger("orchestrator", logging.StageQuality)
		logger.Info().
			Str("url", rawURL).
			Str("reason", assessment.Reason).
			Float64("score", assessment.Score).
			Int("words", assessment.WordCount).
			Msg("Page rejected")
		return report, nil
	}

	verdict := o.Dedup.Check(doc.Text)
	report.Distance = verdict.Distance
	if verdict.Duplicate {
		report.Outcome = OutcomeDuplicateRejected
		report.Err = fmt.Errorf("%w: distance %d", procurement.ErrDuplicateRejected, verdict.Distance)
		logger := logging.GetStageLogger("orchestrator", logging.StageDup)
		logger.Info().
			Str("url", rawURL).
			Int("distance", verdict.Distance).
			Msg("Near-duplicate rejected")
		return report, nil
	}

	report.Chunks, err = o.emit(ctx, keyword, doc)
	if report.Chunks == 0 {
		report.Outcome, report.Err = OutcomeEmitFailed, err
		if err != nil {
			report.Reason = err.Error()
		}
		return report, nil
	}
	report.Outcome = OutcomeEmitted
	return report, doc
}

// emit inserts each chunk in document order. One failed insert does not stop
// the rest; the last error is returned.
func (o *Orchestrator) emit(ctx context.Context, keyword string, doc *document.ExtractedDocument) (int, error) {
	logger := logging.GetStageLogger("orchestrator", logging.StageEmit)
	chunks := o.Chunker.Chunk(keyword, doc)

	emitted := 0
	var lastErr error
	for _, chunk := range chunks {
		text := chunk.Text()
		if err := o.Index.Insert(ctx, text); err != nil {
			lastErr = err
			logger.Warn().Err(err).Str("url", doc.URL).Int("chunk", chunk.Index).Msg("Chunk insert failed")
			continue
		}
		emitted++
	}

	logger.Info().
		Str("url", doc.URL).
		Str("title", doc.Title).
		Int("chunks", emitted).
		Int("planned", len(chunks)).
		Msg("Document emitted")
	return emitted, lastErr
}

func logCycle(logger zerolog.Logger, report *CycleReport) {
	event := logger.Info()
	if report.Err != nil {
		event = logger.Warn().Err(report.Err)
	}
	event.
		Int("cycle", report.Cycle).
		Str("keyword", report.Keyword).
		Int("results", report.Results).
		Int("emitted", report.Count(OutcomeEmitted)).
		Int("chunks", report.Chunks).
		Str("next_keyword", report.NextKeyword).
		Dur("duration", report.Duration).
		Msg("Cycle finished")
}
