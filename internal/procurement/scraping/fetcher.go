package scraping

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/Caia-Tech/caia-harvester/internal/procurement"
	"github.com/Caia-Tech/caia-harvester/pkg/document"
	"github.com/Caia-Tech/caia-harvester/pkg/logging"
	"github.com/Caia-Tech/caia-harvester/pkg/pipeline"
	"golang.org/x/net/html/charset"
)

// PageFetcher downloads HTML pages through the politeness gate.
type PageFetcher struct {
	gate   *PolitenessGate
	client *http.Client
	config *pipeline.FetchConfig
}

// NewPageFetcher creates a fetcher. A nil client gets the configured
// timeout. The client is copied before its redirect policy is installed, so
// the caller's client is left untouched.
func NewPageFetcher(config *pipeline.FetchConfig, gate *PolitenessGate, client *http.Client) *PageFetcher {
	if config == nil {
		config = pipeline.DefaultHarvesterConfig().Fetch
	}

	var own http.Client
	if client != nil {
		own = *client
	} else {
		own.Timeout = config.Timeout.Duration
	}

	f := &PageFetcher{
		gate:   gate,
		client: &own,
		config: config,
	}
	own.CheckRedirect = f.redirectPolicy(client)
	return f
}

// redirectPolicy caps the redirect chain and runs every hop through the
// politeness gate: robots rules always, the crawl delay when the hop
// changes origin. A policy set on the caller's client runs last.
func (f *PageFetcher) redirectPolicy(caller *http.Client) func(*http.Request, []*http.Request) error {
	var next func(*http.Request, []*http.Request) error
	if caller != nil {
		next = caller.CheckRedirect
	}
	maxRedirects := f.config.MaxRedirects

	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}

		if f.gate != nil {
			target := req.URL.String()
			if !f.gate.Allowed(req.Context(), target, f.gate.Agent()) {
				return fmt.Errorf("redirect to %s: %w", target, procurement.ErrRobotsDisallowed)
			}
			origin, _, err := Origin(target)
			if err != nil {
				return err
			}
			if previous, _, err := Origin(via[len(via)-1].URL.String()); err != nil || previous != origin {
				if err := f.gate.Throttle(req.Context(), origin); err != nil {
					return err
				}
			}
		}

		if next != nil {
			return next(req, via)
		}
		return nil
	}
}

// Fetch returns the page's HTML decoded to UTF-8. Failures are soft: they
// are logged and returned as *procurement.FetchError.
func (f *PageFetcher) Fetch(ctx context.Context, rawURL string) (*document.FetchedPage, error) {
	logger := logging.GetStageLogger("fetcher", logging.StageFetch)

	page, err := f.fetch(ctx, rawURL)
	if err != nil {
		var fetchErr *procurement.FetchError
		if errors.As(err, &fetchErr) {
			logger.Warn().
				Str("url", rawURL).
				Str("reason", fetchErr.Reason).
				Int("status", fetchErr.StatusCode).
				Err(fetchErr.Err).
				Msg("Page skipped")
		}
		return nil, err
	}

	logger.Debug().
		Str("url", rawURL).
		Str("final_url", page.FinalURL).
		Int("bytes", len(page.HTML)).
		Msg("Page fetched")

	return page, nil
}

func (f *PageFetcher) fetch(ctx context.Context, rawURL string) (*document.FetchedPage, error) {
	origin, _, err := Origin(rawURL)
	if err != nil {
		return nil, &procurement.FetchError{URL: rawURL, Reason: procurement.ReasonNetwork, Err: err}
	}

	if !f.gate.Allowed(ctx, rawURL, f.gate.Agent()) {
		return nil, &procurement.FetchError{
			URL:    rawURL,
			Reason: procurement.ReasonRobotsDisallowed,
			Err:    procurement.ErrRobotsDisallowed,
		}
	}

	if err := f.gate.Throttle(ctx, origin); err != nil {
		return nil, &procurement.FetchError{URL: rawURL, Reason: procurement.ReasonNetwork, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, f.config.Timeout.Duration)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &procurement.FetchError{URL: rawURL, Reason: procurement.ReasonNetwork, Err: err}
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", f.config.AcceptLanguage)

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, procurement.ErrRobotsDisallowed) {
			return nil, &procurement.FetchError{URL: rawURL, Reason: procurement.ReasonRobotsDisallowed, Err: procurement.ErrRobotsDisallowed}
		}
		return nil, &procurement.FetchError{URL: rawURL, Reason: procurement.ReasonNetwork, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &procurement.FetchError{URL: rawURL, Reason: procurement.ReasonHTTPStatus, StatusCode: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	if !f.isContentTypeSupported(contentType) {
		return nil, &procurement.FetchError{
			URL:        rawURL,
			Reason:     procurement.ReasonContentType,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("content type %q", contentType),
		}
	}

	if resp.ContentLength > f.config.MaxBodyBytes {
		return nil, &procurement.FetchError{URL: rawURL, Reason: procurement.ReasonTooLarge, StatusCode: resp.StatusCode}
	}

	limitedReader := &io.LimitedReader{R: resp.Body, N: f.config.MaxBodyBytes + 1}
	raw, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, &procurement.FetchError{URL: rawURL, Reason: procurement.ReasonNetwork, StatusCode: resp.StatusCode, Err: err}
	}
	if int64(len(raw)) > f.config.MaxBodyBytes {
		return nil, &procurement.FetchError{URL: rawURL, Reason: procurement.ReasonTooLarge, StatusCode: resp.StatusCode}
	}

	utf8Reader, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		utf8Reader = bytes.NewReader(raw)
	}
	decoded, err := io.ReadAll(utf8Reader)
	if err != nil {
		decoded = raw
	}

	return &document.FetchedPage{
		URL:         rawURL,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		HTML:        string(decoded),
	}, nil
}

func (f *PageFetcher) isContentTypeSupported(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	for _, supported := range f.config.ContentTypes {
		if mediaType == supported {
			return true
		}
	}
	return false
}
