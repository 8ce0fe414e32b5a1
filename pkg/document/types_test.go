package document

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatHeader(t *testing.T) {
	published := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name      string
		keyword   string
		title     string
		url       string
		published *time.Time
		expected  string
	}{
		{
			name:      "with date",
			keyword:   "container security 2025",
			title:     "Hardening Container Runtimes",
			url:       "https://example.com/c",
			published: &published,
			expected:  "CONTAINER SECURITY 2025 — Hardening Container Runtimes — https://example.com/c\nPUBLISHED: 2025-03-01",
		},
		{
			name:     "unknown date",
			keyword:  "go generics",
			title:    "Generics",
			url:      "https://go.dev/doc",
			expected: "GO GENERICS — Generics — https://go.dev/doc\nPUBLISHED: unknown",
		},
		{
			name:     "missing title",
			keyword:  "rust",
			url:      "https://example.com",
			expected: "RUST — untitled — https://example.com\nPUBLISHED: unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatHeader(tt.keyword, tt.title, tt.url, tt.published))
		})
	}
}

func TestFormatHeader_TruncatesLongTitles(t *testing.T) {
	title := strings.Repeat("word ", 100)
	header := FormatHeader("k", title, "https://example.com", nil)

	assert.Equal(t, MaxHeaderTitleWords+1+headerFixedTokens, len(strings.Fields(header)))
}

func TestFormatHeaderWithin(t *testing.T) {
	tests := []struct {
		name       string
		keyword    string
		title      string
		titleWords int
		expected   string
	}{
		{
			name:       "title cut to budget",
			keyword:    "a b",
			title:      "one two three four",
			titleWords: 2,
			expected:   "A B — one two — https://example.com\nPUBLISHED: unknown",
		},
		{
			name:       "at least one title word",
			keyword:    "k",
			title:      "one two",
			titleWords: 0,
			expected:   "K — one — https://example.com\nPUBLISHED: unknown",
		},
		{
			name:       "long keyword capped",
			keyword:    "one two three four five six",
			title:      "T",
			titleWords: 5,
			expected:   "ONE TWO THREE FOUR — T — https://example.com\nPUBLISHED: unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatHeaderWithin(tt.keyword, tt.title, "https://example.com", nil, tt.titleWords))
		})
	}
}

func TestFormatHeader_MinimumBudget(t *testing.T) {
	header := FormatHeaderWithin("w w w w w w", strings.Repeat("t ", 40), "https://example.com/a b", nil, 1)

	assert.Equal(t, MinHeaderTokens, len(strings.Fields(header)))
	assert.Contains(t, header, "https://example.com/a%20b")
}

func TestChunk_HeaderUsesTitleBudget(t *testing.T) {
	c := &Chunk{Keyword: "k", Title: "one two three", URL: "u", Body: "body", TitleWords: 1}

	assert.Equal(t, "K — one — u\nPUBLISHED: unknown", c.Header())
}

func TestChunk_Validate(t *testing.T) {
	tests := []struct {
		name    string
		chunk   *Chunk
		wantErr bool
		errMsg  string
	}{
		{
			name:  "valid chunk",
			chunk: &Chunk{URL: "https://example.com", Body: "some text"},
		},
		{
			name:    "missing url",
			chunk:   &Chunk{Body: "some text"},
			wantErr: true,
			errMsg:  "chunk URL cannot be empty",
		},
		{
			name:    "blank body",
			chunk:   &Chunk{URL: "https://example.com", Body: "  \n "},
			wantErr: true,
			errMsg:  "chunk body cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.chunk.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestChunk_Text(t *testing.T) {
	c := &Chunk{Keyword: "k", Title: "T", URL: "u", Body: "body"}

	assert.True(t, strings.HasPrefix(c.Text(), c.Header()))
	assert.True(t, strings.HasSuffix(c.Text(), "\n\nbody"))
}

func TestExtractedDocument_Empty(t *testing.T) {
	assert.True(t, (&ExtractedDocument{Text: " \n\t"}).Empty())
	assert.False(t, (&ExtractedDocument{Text: "x"}).Empty())
}
