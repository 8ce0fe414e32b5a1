package keywords

import (
	"regexp"
	"strings"
)

// MaxKeywordWords bounds the length of a normalized keyword.
const MaxKeywordWords = 4

var listMarker = regexp.MustCompile(`^\s*(?:[-*•]+|\d+[.)]|\(\d+\))\s*`)

// Normalize lowercases a keyword, strips commas and keeps the first four
// words. Surrounding quotes and trailing punctuation from chat replies are
// dropped too.
func Normalize(raw string) string {
	s := strings.ToLower(raw)
	s = strings.ReplaceAll(s, ",", " ")
	s = strings.Trim(strings.TrimSpace(s), "\"'`“”‘’.!?:;")

	words := strings.Fields(s)
	if len(words) > MaxKeywordWords {
		words = words[:MaxKeywordWords]
	}
	return strings.Join(words, " ")
}

// ParseLines splits a chat reply into normalized keywords, one per line,
// removing bullets and numbering.
func ParseLines(reply string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(reply, "\n") {
		kw := Normalize(listMarker.ReplaceAllString(line, ""))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	return out
}
