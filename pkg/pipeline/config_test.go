package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultHarvesterConfig(t *testing.T) {
	config := DefaultHarvesterConfig()

	require.NoError(t, config.Validate())
	assert.Equal(t, 500, config.Chunking.HardCeiling)
	assert.Equal(t, 350, config.Chunking.TargetTokens)
	assert.Equal(t, 60, config.Chunking.OverlapTokens)
	assert.Equal(t, 1.32, config.Chunking.ExpansionFactor)
	assert.Equal(t, 0.45, config.Quality.Threshold)
	assert.Equal(t, 400, config.Quality.MinTextChars)
	assert.Equal(t, 3, config.Dedup.MaxHamming)
	assert.Equal(t, 15*time.Second, config.Run.URLPause.Duration)
}

func TestEnvironmentConfigs(t *testing.T) {
	assert.NoError(t, ProductionHarvesterConfig().Validate())
	assert.NoError(t, DevelopmentHarvesterConfig().Validate())
	assert.Equal(t, "pretty", DevelopmentHarvesterConfig().Logging.Format)
	assert.Equal(t, "bleve", DevelopmentHarvesterConfig().Index.Backend)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "harvester.toml")
	content := `
[search]
base_url = "http://searx.internal:8080"

[chunking]
target_tokens = 300
overlap_tokens = 40

[run]
url_pause = "3s"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://searx.internal:8080", config.Search.BaseURL)
	assert.Equal(t, 300, config.Chunking.TargetTokens)
	assert.Equal(t, 40, config.Chunking.OverlapTokens)
	assert.Equal(t, 3*time.Second, config.Run.URLPause.Duration)

	// untouched fields keep defaults
	assert.Equal(t, 500, config.Chunking.HardCeiling)
	assert.Equal(t, "message", config.Chat.Backend)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("HARVESTER_SEARCH_URL", "http://search.test")
	t.Setenv("HARVESTER_INDEX_BACKEND", "bleve")
	t.Setenv("HARVESTER_MAX_CYCLES", "7")

	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "http://search.test", config.Search.BaseURL)
	assert.Equal(t, "bleve", config.Index.Backend)
	assert.Equal(t, 7, config.Run.MaxCycles)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[run]\nurl_pause = \"soon\"\n"), 0644))
	_, err = LoadConfig(bad)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*HarvesterConfig)
		errMsg string
	}{
		{
			name:   "overlap not below target",
			mutate: func(c *HarvesterConfig) { c.Chunking.OverlapTokens = 350 },
			errMsg: "overlap_tokens",
		},
		{
			name:   "target above ceiling",
			mutate: func(c *HarvesterConfig) { c.Chunking.TargetTokens = 600 },
			errMsg: "exceeds hard_ceiling",
		},
		{
			name: "ceiling too small for header",
			mutate: func(c *HarvesterConfig) {
				c.Chunking.TargetTokens, c.Chunking.OverlapTokens, c.Chunking.HardCeiling = 8, 2, 10
			},
			errMsg: "leaves no room",
		},
		{
			name:   "expansion below one",
			mutate: func(c *HarvesterConfig) { c.Chunking.ExpansionFactor = 0.9 },
			errMsg: "expansion_factor",
		},
		{
			name:   "threshold out of range",
			mutate: func(c *HarvesterConfig) { c.Quality.Threshold = 1.5 },
			errMsg: "threshold",
		},
		{
			name:   "unknown chat backend",
			mutate: func(c *HarvesterConfig) { c.Chat.Backend = "carrier-pigeon" },
			errMsg: "chat: unknown backend",
		},
		{
			name:   "unknown index backend",
			mutate: func(c *HarvesterConfig) { c.Index.Backend = "tape" },
			errMsg: "index: unknown backend",
		},
		{
			name:   "missing search url",
			mutate: func(c *HarvesterConfig) { c.Search.BaseURL = "" },
			errMsg: "base_url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultHarvesterConfig()
			tt.mutate(config)
			err := config.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidate_SmallestCeiling(t *testing.T) {
	config := DefaultHarvesterConfig()
	config.Chunking.TargetTokens, config.Chunking.OverlapTokens, config.Chunking.HardCeiling = 8, 2, 11

	assert.NoError(t, config.Validate())
}

func TestDuration_Text(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration)

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))

	assert.Error(t, d.UnmarshalText([]byte("later")))
}
