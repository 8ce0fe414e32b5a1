package extractor

import (
	"fmt"

	"github.com/Caia-Tech/caia-harvester/pkg/document"
	"github.com/Caia-Tech/caia-harvester/pkg/logging"
	"github.com/Caia-Tech/caia-harvester/pkg/pipeline"
)

// Extractor turns raw HTML into a document's title, date and main text.
type Extractor interface {
	Name() string
	Extract(rawHTML, baseURL string) (*document.ExtractedDocument, error)
}

// Engine runs an optional primary extractor and falls back to a second one
// when the primary fails or returns no text.
type Engine struct {
	primary  Extractor
	fallback Extractor
}

// NewEngine builds the engine described by config.
func NewEngine(config *pipeline.ExtractionConfig) *Engine {
	if config == nil {
		config = pipeline.DefaultHarvesterConfig().Extraction
	}
	var primary Extractor
	if config.UsePrimary {
		primary = NewMainContentExtractor()
	}
	return NewEngineWith(primary, NewStructuralExtractor())
}

// NewEngineWith composes an engine from explicit strategies. primary may be
// nil.
func NewEngineWith(primary, fallback Extractor) *Engine {
	if fallback == nil {
		fallback = NewStructuralExtractor()
	}
	return &Engine{primary: primary, fallback: fallback}
}

// Extract always returns a document; its Text is empty when nothing usable
// was found.
func (e *Engine) Extract(rawHTML, baseURL string) *document.ExtractedDocument {
	logger := logging.GetLogger("extractor")

	if e.primary != nil {
		doc, err := e.primary.Extract(rawHTML, baseURL)
		if err == nil && doc != nil && !doc.Empty() {
			return doc
		}
		logger.Debug().
			Str("url", baseURL).
			Str("extractor", e.primary.Name()).
			Err(err).
			Msg("Primary extraction empty, using fallback")
	}

	doc, err := e.fallback.Extract(rawHTML, baseURL)
	if err != nil || doc == nil {
		logger.Debug().Str("url", baseURL).Err(err).Msg("Fallback extraction failed")
		return &document.ExtractedDocument{URL: baseURL}
	}
	return doc
}

// Strategy names the extractors in use, for startup logging.
func (e *Engine) Strategy() string {
	if e.primary == nil {
		return e.fallback.Name()
	}
	return fmt.Sprintf("%s+%s", e.primary.Name(), e.fallback.Name())
}
