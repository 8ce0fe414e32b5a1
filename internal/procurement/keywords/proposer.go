package keywords

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Caia-Tech/caia-harvester/internal/procurement"
	"github.com/Caia-Tech/caia-harvester/pkg/document"
	"github.com/Caia-Tech/caia-harvester/pkg/logging"
	"github.com/Caia-Tech/caia-harvester/pkg/pipeline"
	"github.com/google/uuid"
)

const (
	extractContext = "You extract web search keywords from documents. " +
		"Reply with one keyword phrase per line, two to four words each, " +
		"with no numbering, quotes or explanations."
	selectContext = "You choose the next web search keyword for a research crawler. " +
		"Reply with exactly one keyword from the list and nothing else."
)

// Proposer asks the chat collaborator for follow-up keywords drawn from the
// pages of the current cycle and picks the best unseen one.
type Proposer struct {
	config *pipeline.ProposalConfig
	chat   procurement.ChatProvider
}

func NewProposer(config *pipeline.ProposalConfig, chat procurement.ChatProvider) *Proposer {
	if config == nil {
		config = pipeline.DefaultHarvesterConfig().Proposal
	}
	return &Proposer{config: config, chat: chat}
}

// Propose returns the next keyword, or ErrNoCandidates when nothing unseen
// was suggested.
func (p *Proposer) Propose(ctx context.Context, pages []*document.ExtractedDocument, isSeen func(string) bool) (string, error) {
	logger := logging.GetStageLogger("proposer", logging.StageNext)

	if len(pages) > p.config.SamplePages {
		pages = pages[:p.config.SamplePages]
	}

	tally := NewTally()
	var lastErr error
	for i, page := range pages {
		reply, err := p.chat.Complete(ctx, extractContext, p.extractPrompt(page), uuid.NewString())
		if err != nil {
			lastErr = err
			logger.Warn().Err(err).Str("url", page.URL).Msg("Keyword extraction failed")
			continue
		}

		lines := ParseLines(reply)
		if len(lines) > p.config.CandidatesPerPage {
			lines = lines[:p.config.CandidatesPerPage]
		}
		for _, kw := range lines {
			tally.Add(i, kw)
		}
	}

	shortlist := p.shortlist(tally.Rank(), isSeen)
	if len(shortlist) == 0 {
		if lastErr != nil {
			return "", fmt.Errorf("%w: %v", procurement.ErrLLMFailed, lastErr)
		}
		return "", procurement.ErrNoCandidates
	}
	if len(shortlist) == 1 {
		return shortlist[0], nil
	}

	reply, err := p.chat.Complete(ctx, selectContext, selectPrompt(shortlist), uuid.NewString())
	if err != nil {
		logger.Warn().Err(err).Msg("Keyword selection failed, using top candidate")
		return shortlist[0], nil
	}

	choice := pick(reply, shortlist)
	logger.Debug().Strs("shortlist", shortlist).Str("reply", reply).Str("choice", choice).Msg("Next keyword selected")
	return choice, nil
}

func (p *Proposer) shortlist(ranked []Candidate, isSeen func(string) bool) []string {
	var out []string
	for _, c := range ranked {
		if isSeen(c.Text) {
			continue
		}
		out = append(out, c.Text)
		if len(out) >= p.config.ShortlistSize {
			break
		}
	}
	return out
}

func (p *Proposer) extractPrompt(page *document.ExtractedDocument) string {
	text := page.Text
	if runes := []rune(text); len(runes) > p.config.MaxPromptChars {
		text = string(runes[:p.config.MaxPromptChars])
	}
	return fmt.Sprintf("List up to %d concise search keywords (2-4 words each) for topics in this page worth researching next.\n\nTITLE: %s\n\n%s",
		p.config.CandidatesPerPage, page.Title, text)
}

func selectPrompt(shortlist []string) string {
	var b strings.Builder
	b.WriteString("Pick the most promising keyword to research next:\n")
	for i, kw := range shortlist {
		fmt.Fprintf(&b, "%d. %s\n", i+1, kw)
	}
	return b.String()
}

// pick maps a selection reply onto the shortlist. Unrecognised replies
// select the top entry.
func pick(reply string, shortlist []string) string {
	lines := ParseLines(reply)
	for _, line := range lines {
		for _, kw := range shortlist {
			if line == kw {
				return kw
			}
		}
	}

	trimmed := strings.Trim(strings.TrimSpace(reply), ".)")
	if n, err := strconv.Atoi(trimmed); err == nil && n >= 1 && n <= len(shortlist) {
		return shortlist[n-1]
	}

	normalized := Normalize(strings.ReplaceAll(reply, "\n", " "))
	for _, kw := range shortlist {
		if strings.Contains(" "+strings.ToLower(reply)+" ", " "+kw+" ") || strings.HasPrefix(normalized, kw) {
			return kw
		}
	}
	return shortlist[0]
}

// IsNoCandidates reports whether err means no keyword could be chosen.
func IsNoCandidates(err error) bool {
	return errors.Is(err, procurement.ErrNoCandidates)
}
