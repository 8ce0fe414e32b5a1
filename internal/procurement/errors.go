package procurement

import (
	"errors"
	"fmt"
)

var (
	ErrRobotsDisallowed  = errors.New("robots-disallowed")
	ErrExtractionEmpty   = errors.New("extraction produced no text")
	ErrQualityRejected   = errors.New("quality below threshold")
	ErrDuplicateRejected = errors.New("near-duplicate of accepted document")
	ErrSearchFailed      = errors.New("metasearch failed")
	ErrLLMFailed         = errors.New("chat completion failed")
	ErrNoCandidates      = errors.New("no keyword candidates")
)

// Fetch failure reasons.
const (
	ReasonRobotsDisallowed = "robots-disallowed"
	ReasonHTTPStatus       = "http-status"
	ReasonTooLarge         = "too-large"
	ReasonContentType      = "unsupported-content-type"
	ReasonNetwork          = "network"
)

// FetchError is a soft page fetch failure.
type FetchError struct {
	URL        string
	Reason     string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch %s: %s", e.URL, e.Reason)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil && !errors.Is(e.Err, ErrRobotsDisallowed) {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }
