package document

import (
	"fmt"
	"strings"
	"time"
)

// Bounds on the words a chunk header carries.
const (
	MaxHeaderTitleWords   = 24
	MaxHeaderKeywordWords = 4

	// headerFixedTokens counts the two separators, the URL and the
	// PUBLISHED line.
	headerFixedTokens = 5
)

// MinHeaderTokens is the smallest header any keyword can produce once the
// title is cut to one word.
const MinHeaderTokens = MaxHeaderKeywordWords + 1 + headerFixedTokens

// SearchResult is one hit returned by the metasearch backend.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// FetchedPage holds the raw HTML of a page, decoded to UTF-8.
type FetchedPage struct {
	URL         string `json:"url"`
	FinalURL    string `json:"final_url"` // after redirects
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type"`
	HTML        string `json:"-"`
}

// ExtractedDocument is the main content of a page.
type ExtractedDocument struct {
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Text        string     `json:"text"`
}

// Empty reports whether extraction produced no body text.
func (d *ExtractedDocument) Empty() bool {
	return strings.TrimSpace(d.Text) == ""
}

// Chunk is one token-bounded slice of a document, decorated with a header.
type Chunk struct {
	Keyword     string     `json:"keyword"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Body        string     `json:"body"`
	Index       int        `json:"index"`
	TitleWords  int        `json:"-"` // header title budget, 0 means MaxHeaderTitleWords
}

// Header renders the chunk header:
//
//	<KEYWORD> — <title> — <url>
//	PUBLISHED: <YYYY-MM-DD|unknown>
func (c *Chunk) Header() string {
	titleWords := c.TitleWords
	if titleWords <= 0 {
		titleWords = MaxHeaderTitleWords
	}
	return FormatHeaderWithin(c.Keyword, c.Title, c.URL, c.PublishedAt, titleWords)
}

// Text is the payload handed to the embedding index.
func (c *Chunk) Text() string {
	return c.Header() + "\n\n" + c.Body
}

// Validate checks if the chunk has required fields
func (c *Chunk) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("chunk URL cannot be empty")
	}
	if strings.TrimSpace(c.Body) == "" {
		return fmt.Errorf("chunk body cannot be empty")
	}
	return nil
}

// FormatHeader builds the header shared by every chunk of one document.
func FormatHeader(keyword, title, url string, publishedAt *time.Time) string {
	return FormatHeaderWithin(keyword, title, url, publishedAt, MaxHeaderTitleWords)
}

// FormatHeaderWithin is FormatHeader with the title cut to at most
// titleWords words. At least one title word is always kept.
func FormatHeaderWithin(keyword, title, url string, publishedAt *time.Time, titleWords int) string {
	published := "unknown"
	if publishedAt != nil && !publishedAt.IsZero() {
		published = publishedAt.Format("2006-01-02")
	}

	keywordWords := strings.Fields(keyword)
	if len(keywordWords) > MaxHeaderKeywordWords {
		keywordWords = keywordWords[:MaxHeaderKeywordWords]
	}

	titleWords = max(1, min(titleWords, MaxHeaderTitleWords))
	words := strings.Fields(title)
	if len(words) > titleWords {
		words = words[:titleWords]
	}
	if len(words) == 0 {
		words = []string{"untitled"}
	}

	return fmt.Sprintf("%s — %s — %s\nPUBLISHED: %s",
		strings.ToUpper(strings.Join(keywordWords, " ")),
		strings.Join(words, " "),
		strings.Join(strings.Fields(url), "%20"),
		published,
	)
}
