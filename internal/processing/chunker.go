package processing

import (
	"math"
	"regexp"
	"strings"

	"github.com/Caia-Tech/caia-harvester/pkg/document"
	"github.com/Caia-Tech/caia-harvester/pkg/pipeline"
)

var paragraphBreak = regexp.MustCompile(`\n[ \t]*\n`)

// span is a half-open range of token positions in a document.
type span struct {
	start, end int
}

func (s span) len() int { return s.end - s.start }

// tokenized is a document split into whitespace tokens, with the positions at
// which new paragraphs begin.
type tokenized struct {
	tokens     []string
	paragraphs []span
	breaks     map[int]bool
}

// Chunker splits documents into header-decorated chunks whose approximate
// token count stays under a hard ceiling.
type Chunker struct {
	config *pipeline.ChunkingConfig
}

// NewChunker creates a chunker. A nil config uses defaults.
func NewChunker(config *pipeline.ChunkingConfig) *Chunker {
	if config == nil {
		config = pipeline.DefaultHarvesterConfig().Chunking
	}
	return &Chunker{config: config}
}

// Chunk segments the document text. Every chunk's Text() has at most
// HardCeiling whitespace tokens.
func (c *Chunker) Chunk(keyword string, doc *document.ExtractedDocument) []document.Chunk {
	header, titleWords := c.header(keyword, doc)
	tok := tokenize(doc.Text)
	if len(tok.tokens) == 0 {
		return nil
	}

	spans := c.plan(tok, len(strings.Fields(header)))

	chunks := make([]document.Chunk, 0, len(spans))
	for i, s := range spans {
		chunks = append(chunks, document.Chunk{
			Keyword:     keyword,
			Title:       doc.Title,
			URL:         doc.URL,
			PublishedAt: doc.PublishedAt,
			Body:        tok.render(s),
			Index:       i,
			TitleWords:  titleWords,
		})
	}
	return chunks
}

// header renders the chunk header, cutting the title until the header plus
// one body token fits under the ceiling.
func (c *Chunker) header(keyword string, doc *document.ExtractedDocument) (string, int) {
	titleWords := document.MaxHeaderTitleWords
	header := document.FormatHeaderWithin(keyword, doc.Title, doc.URL, doc.PublishedAt, titleWords)

	if excess := EstimateTokens(header) + 1 - c.config.HardCeiling; excess > 0 {
		titleWords = max(1, min(titleWords, len(strings.Fields(doc.Title)))-excess)
		header = document.FormatHeaderWithin(keyword, doc.Title, doc.URL, doc.PublishedAt, titleWords)
	}
	return header, titleWords
}

// plan runs the coarse pass and then the safety pass over each coarse span.
func (c *Chunker) plan(tok tokenized, headerTokens int) []span {
	var out []span
	for _, s := range c.coarse(tok.paragraphs) {
		if c.fits(headerTokens + s.len()) {
			out = append(out, s)
			continue
		}
		out = append(out, c.resplit(s, headerTokens)...)
	}
	return out
}

// coarse accumulates paragraphs up to the target size. Oversized paragraphs
// are cut with a sliding window. Each flush seeds the next buffer with up to
// overlap tokens of the flushed chunk, fewer when the next paragraph would
// push the span past target.
func (c *Chunker) coarse(paragraphs []span) []span {
	if len(paragraphs) == 0 {
		return nil
	}
	target, overlap := c.config.TargetTokens, c.config.OverlapTokens
	step := target - overlap
	if step < 1 {
		step = target
	}

	var out []span
	buf := span{paragraphs[0].start, paragraphs[0].start}
	seedEnd := buf.start

	flush := func() {
		out = append(out, buf)
		buf.start = max(buf.start, buf.end-overlap)
		seedEnd = buf.end
	}

	for _, p := range paragraphs {
		fresh := buf.end > seedEnd

		if p.len() > target {
			if fresh {
				flush()
			}
			out = append(out, windows(span{buf.start, p.end}, target, step)...)
			buf = span{max(buf.start, p.end-overlap), p.end}
			seedEnd = p.end
			continue
		}

		if buf.len()+p.len() > target {
			if fresh {
				flush()
			}
			// the overlap seed gives way so the span stays within target
			buf.start = max(buf.start, buf.end-(target-p.len()))
		}
		buf.end = p.end
	}

	if buf.end > seedEnd {
		out = append(out, buf)
	}
	return out
}

// resplit cuts an oversized coarse span so that header plus body stays under
// the adjusted ceiling after expansion.
func (c *Chunker) resplit(s span, headerTokens int) []span {
	adjusted := float64(c.config.HardCeiling) * (1 - c.config.SafetyMargin)
	size := int(math.Floor(adjusted/c.config.ExpansionFactor)) - headerTokens
	size = min(size, c.config.HardCeiling-headerTokens)
	if size < 1 {
		size = 1
	}

	step := size - c.config.OverlapTokens
	if step < 1 {
		step = size
	}
	return windows(s, size, step)
}

// fits reports whether a token count survives expansion under the ceiling.
func (c *Chunker) fits(tokens int) bool {
	return float64(tokens)*c.config.ExpansionFactor <= float64(c.config.HardCeiling)
}

// windows covers s with windows of size tokens advancing by step. The last
// window ends exactly at s.end.
func windows(s span, size, step int) []span {
	var out []span
	for start := s.start; ; start += step {
		end := min(start+size, s.end)
		out = append(out, span{start, end})
		if end == s.end {
			return out
		}
	}
}

func tokenize(text string) tokenized {
	tok := tokenized{breaks: make(map[int]bool)}
	for _, para := range paragraphBreak.Split(text, -1) {
		words := strings.Fields(para)
		if len(words) == 0 {
			continue
		}
		start := len(tok.tokens)
		tok.tokens = append(tok.tokens, words...)
		tok.paragraphs = append(tok.paragraphs, span{start, len(tok.tokens)})
		tok.breaks[start] = true
	}
	return tok
}

// render joins the tokens of s, restoring paragraph breaks.
func (t tokenized) render(s span) string {
	var b strings.Builder
	for i := s.start; i < s.end; i++ {
		if i > s.start {
			if t.breaks[i] {
				b.WriteString("\n\n")
			} else {
				b.WriteByte(' ')
			}
		}
		b.WriteString(t.tokens[i])
	}
	return b.String()
}

// EstimateTokens is the whitespace token approximation used for budgeting.
func EstimateTokens(text string) int {
	return len(strings.Fields(text))
}
