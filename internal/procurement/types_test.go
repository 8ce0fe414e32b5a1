package procurement

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCrawlState_MarkSeen(t *testing.T) {
	state := NewCrawlState()

	assert.False(t, state.IsSeen("go generics"))
	assert.True(t, state.MarkSeen("go generics"))
	assert.False(t, state.MarkSeen("go generics"))
	assert.True(t, state.IsSeen("go generics"))
	assert.Len(t, state.SeenKeywords, 1)
}

func TestFetchError(t *testing.T) {
	robots := &FetchError{URL: "https://example.com/private", Reason: ReasonRobotsDisallowed, Err: ErrRobotsDisallowed}
	assert.True(t, errors.Is(robots, ErrRobotsDisallowed))
	assert.Equal(t, "fetch https://example.com/private: robots-disallowed", robots.Error())

	status := &FetchError{URL: "https://example.com", Reason: ReasonHTTPStatus, StatusCode: 503}
	assert.Contains(t, status.Error(), "status 503")

	var fetchErr *FetchError
	wrapped := fmt.Errorf("crawl: %w", status)
	assert.True(t, errors.As(wrapped, &fetchErr))
	assert.Equal(t, 503, fetchErr.StatusCode)
}

func TestSystemClock_SleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := SystemClock{}.Sleep(ctx, time.Minute)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
