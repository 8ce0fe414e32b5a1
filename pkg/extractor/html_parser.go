package extractor

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Caia-Tech/caia-harvester/pkg/document"
	"github.com/PuerkitoBio/goquery"
	"github.com/jaytaylor/html2text"
)

// Meta tags checked, in order, for a publication date.
var dateMetaSelectors = []string{
	`meta[property="article:published_time"]`,
	`meta[property="og:published_time"]`,
	`meta[name="pubdate"]`,
	`meta[name="publishdate"]`,
	`meta[name="publish_date"]`,
	`meta[name="date"]`,
	`meta[name="DC.date.issued"]`,
	`meta[name="dc.date"]`,
	`meta[itemprop="datePublished"]`,
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	time.RFC1123Z,
	time.RFC1123,
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"02 Jan 2006",
}

var (
	isoDatePrefix   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	blankLineRun    = regexp.MustCompile(`\n{3,}`)
	trailingSpaces  = regexp.MustCompile(`[ \t]+\n`)
	boilerplateTags = "script, style, noscript, iframe, svg, nav, aside, footer, form"
)

// StructuralExtractor picks the article, main or body element after removing
// boilerplate elements, and renders it as plain text.
type StructuralExtractor struct{}

func NewStructuralExtractor() *StructuralExtractor {
	return &StructuralExtractor{}
}

func (s *StructuralExtractor) Name() string { return "structural" }

func (s *StructuralExtractor) Extract(rawHTML, baseURL string) (*document.ExtractedDocument, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	result := &document.ExtractedDocument{
		URL:         baseURL,
		Title:       extractTitle(doc),
		PublishedAt: extractPublishedAt(doc),
	}

	doc.Find(boilerplateTags).Remove()

	root := doc.Find("article").First()
	if root.Length() == 0 {
		root = doc.Find("main").First()
	}
	if root.Length() == 0 {
		root = doc.Find("body").First()
	}
	if root.Length() == 0 {
		return result, nil
	}

	text, err := html2text.FromHTMLNode(root.Get(0), html2text.Options{OmitLinks: true, TextOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to render text: %w", err)
	}
	result.Text = collapseBlankLines(text)

	return result, nil
}

func extractTitle(doc *goquery.Document) string {
	if title := cleanInline(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && strings.TrimSpace(og) != "" {
		return cleanInline(og)
	}
	return cleanInline(doc.Find("h1").First().Text())
}

func extractPublishedAt(doc *goquery.Document) *time.Time {
	for _, selector := range dateMetaSelectors {
		if value, ok := doc.Find(selector).First().Attr("content"); ok {
			if t, ok := parseDate(value); ok {
				return &t
			}
		}
	}
	if value, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		if t, ok := parseDate(value); ok {
			return &t
		}
	}
	return nil
}

func parseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	if prefix := isoDatePrefix.FindString(value); prefix != "" {
		if t, err := time.Parse("2006-01-02", prefix); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// collapseBlankLines trims lines and keeps at most one blank line between
// paragraphs.
func collapseBlankLines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = trailingSpaces.ReplaceAllString(text, "\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")

	return strings.TrimSpace(blankLineRun.ReplaceAllString(text, "\n\n"))
}

func cleanInline(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
