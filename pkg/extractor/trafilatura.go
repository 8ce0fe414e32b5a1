package extractor

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Caia-Tech/caia-harvester/pkg/document"
	"github.com/markusmobius/go-trafilatura"
)

// MainContentExtractor uses trafilatura's boilerplate removal, tuned for
// precision.
type MainContentExtractor struct {
	options trafilatura.Options
}

func NewMainContentExtractor() *MainContentExtractor {
	return &MainContentExtractor{
		options: trafilatura.Options{
			Focus:           trafilatura.FavorPrecision,
			ExcludeComments: true,
			ExcludeTables:   true,
		},
	}
}

func (m *MainContentExtractor) Name() string { return "trafilatura" }

func (m *MainContentExtractor) Extract(rawHTML, baseURL string) (*document.ExtractedDocument, error) {
	opts := m.options
	if u, err := url.Parse(baseURL); err == nil && u.IsAbs() {
		opts.OriginalURL = u
	}

	result, err := trafilatura.Extract(strings.NewReader(rawHTML), opts)
	if err != nil {
		return nil, fmt.Errorf("trafilatura: %w", err)
	}
	if result == nil {
		return nil, fmt.Errorf("trafilatura: no result")
	}

	doc := &document.ExtractedDocument{
		URL:   baseURL,
		Title: strings.TrimSpace(result.Metadata.Title),
		Text:  collapseBlankLines(result.ContentText),
	}
	if !result.Metadata.Date.IsZero() {
		published := result.Metadata.Date
		doc.PublishedAt = &published
	}
	return doc, nil
}
