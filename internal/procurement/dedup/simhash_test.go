package dedup

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/Caia-Tech/caia-harvester/internal/procurement"
	"github.com/Caia-Tech/caia-harvester/pkg/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomText(rng *rand.Rand, words int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	parts := make([]string, words)
	for i := range parts {
		n := 3 + rng.Intn(8)
		b := make([]byte, n)
		for j := range b {
			b[j] = letters[rng.Intn(len(letters))]
		}
		parts[i] = string(b)
	}
	return strings.Join(parts, " ")
}

func TestSimHasher_Deterministic(t *testing.T) {
	text := "Rootless containers map the container root user to an unprivileged host user."

	a, err := SimHasher{}.Fingerprint(text)
	require.NoError(t, err)
	b, err := SimHasher{}.Fingerprint(strings.ToUpper(text))
	require.NoError(t, err)

	assert.Equal(t, a, b, "fingerprints are case-insensitive")
	assert.NotZero(t, a)
}

func TestFilter_IdenticalTextRejected(t *testing.T) {
	state := procurement.NewCrawlState()
	filter := NewFilter(nil, state)
	text := randomText(rand.New(rand.NewSource(1)), 300)

	first := filter.Check(text)
	assert.False(t, first.Duplicate)
	assert.Equal(t, -1, first.Distance)

	second := filter.Check(text)
	assert.True(t, second.Duplicate)
	assert.Equal(t, 0, second.Distance)
	assert.Equal(t, 1, filter.Size())
}

func TestFilter_UnrelatedTextsAccepted(t *testing.T) {
	filter := NewFilter(nil, procurement.NewCrawlState())
	rng := rand.New(rand.NewSource(99))

	for i := 0; i < 20; i++ {
		verdict := filter.Check(randomText(rng, 300))
		require.False(t, verdict.Duplicate, "document %d", i)
	}
	assert.Equal(t, 20, filter.Size())
}

func TestFilter_FailsOpen(t *testing.T) {
	tests := []struct {
		name   string
		filter *Filter
	}{
		{"disabled in config", NewFilter(&pipeline.DedupConfig{Enabled: false, MaxHamming: 3}, procurement.NewCrawlState())},
		{"unavailable fingerprinter", NewFilterWith(nil, procurement.NewCrawlState(), Unavailable{})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := "same text every time"
			assert.False(t, tt.filter.Check(text).Duplicate)
			verdict := tt.filter.Check(text)
			assert.False(t, verdict.Duplicate)
			assert.False(t, verdict.Available)
			assert.Equal(t, 0, tt.filter.Size())
		})
	}
}

func TestFilter_MaxFingerprints(t *testing.T) {
	state := procurement.NewCrawlState()
	filter := NewFilter(&pipeline.DedupConfig{Enabled: true, MaxHamming: 3, MaxFingerprints: 5}, state)
	rng := rand.New(rand.NewSource(3))

	first := randomText(rng, 200)
	filter.Check(first)
	for i := 0; i < 5; i++ {
		filter.Check(randomText(rng, 200))
	}

	assert.Equal(t, 5, filter.Size())
	assert.False(t, filter.Check(first).Duplicate, "oldest fingerprint was evicted")
}

func TestHammingDistance(t *testing.T) {
	tests := []struct {
		a, b     uint64
		expected int
	}{
		{0, 0, 0},
		{0, 1, 1},
		{0xFF, 0x0F, 4},
		{0, ^uint64(0), 64},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, HammingDistance(tt.a, tt.b))
	}
}
