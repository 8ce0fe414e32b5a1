package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Caia-Tech/caia-harvester/internal/procurement"
	"github.com/Caia-Tech/caia-harvester/pkg/document"
	"github.com/Caia-Tech/caia-harvester/pkg/pipeline"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

// Searcher queries a metasearch backend.
type Searcher interface {
	Search(ctx context.Context, keyword string, sites []string, num int) ([]document.SearchResult, error)
}

// SearxNG scrapes the HTML results page of a SearxNG instance.
type SearxNG struct {
	config    *pipeline.SearchConfig
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
}

// NewSearxNG creates a client. A nil client gets the configured timeout.
func NewSearxNG(config *pipeline.SearchConfig, userAgent string, client *http.Client) *SearxNG {
	if config == nil {
		config = pipeline.DefaultHarvesterConfig().Search
	}
	if client == nil {
		client = &http.Client{Timeout: config.Timeout.Duration}
	}
	return &SearxNG{
		config:    config,
		userAgent: userAgent,
		client:    client,
		limiter:   rate.NewLimiter(rate.Limit(config.QueriesPerSecond), 1),
	}
}

// Search returns up to num results for keyword, optionally restricted to
// sites on the authoritative-domain allow-list.
func (s *SearxNG) Search(ctx context.Context, keyword string, sites []string, num int) ([]document.SearchResult, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", procurement.ErrSearchFailed, err)
	}

	endpoint := strings.TrimRight(s.config.BaseURL, "/") + "/search?q=" +
		url.QueryEscape(BuildQuery(keyword, s.AllowedSites(sites)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", procurement.ErrSearchFailed, err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", procurement.ErrSearchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", procurement.ErrSearchFailed, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: parse results: %v", procurement.ErrSearchFailed, err)
	}
	return parseResults(doc, num), nil
}

// AllowedSites keeps the sites that are, or are subdomains of,
// authoritative domains.
func (s *SearxNG) AllowedSites(sites []string) []string {
	var allowed []string
	for _, site := range sites {
		site = strings.ToLower(strings.TrimSpace(site))
		for _, domain := range s.config.AuthoritativeDomains {
			if site == domain || strings.HasSuffix(site, "."+domain) {
				allowed = append(allowed, site)
				break
			}
		}
	}
	return allowed
}

// BuildQuery appends a site: OR-filter to keyword.
func BuildQuery(keyword string, sites []string) string {
	keyword = strings.TrimSpace(keyword)
	if len(sites) == 0 {
		return keyword
	}
	filters := make([]string, len(sites))
	for i, site := range sites {
		filters[i] = "site:" + site
	}
	return fmt.Sprintf("%s (%s)", keyword, strings.Join(filters, " OR "))
}

func parseResults(doc *goquery.Document, num int) []document.SearchResult {
	var results []document.SearchResult
	seen := make(map[string]bool)

	doc.Find(".result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if num > 0 && len(results) >= num {
			return false
		}

		link, _ := sel.Find(".url_header").First().Attr("href")
		if link == "" {
			link, _ = sel.Find("h3 a").First().Attr("href")
		}
		u, err := url.Parse(strings.TrimSpace(link))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return true
		}
		if seen[u.String()] {
			return true
		}
		seen[u.String()] = true

		results = append(results, document.SearchResult{
			Title:   strings.Join(strings.Fields(sel.Find("h3").First().Text()), " "),
			URL:     u.String(),
			Snippet: strings.Join(strings.Fields(sel.Find(".content").First().Text()), " "),
		})
		return true
	})

	return results
}
