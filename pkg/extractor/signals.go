package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Signals returns the cheap text signals of a page: its title, h1-h3
// headings and the first paragraphs. Each entry is one line of text.
func Signals(rawHTML string, paragraphs int) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}
	doc.Find(boilerplateTags).Remove()

	var signals []string
	add := func(s string) {
		if s = cleanInline(s); s != "" {
			signals = append(signals, s)
		}
	}

	add(doc.Find("title").First().Text())
	doc.Find("h1, h2, h3").Each(func(_ int, sel *goquery.Selection) {
		add(sel.Text())
	})
	doc.Find("p").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if i >= paragraphs {
			return false
		}
		add(sel.Text())
		return true
	})

	return signals
}
