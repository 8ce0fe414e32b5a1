package pipeline

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Caia-Tech/caia-harvester/pkg/document"
	"github.com/Caia-Tech/caia-harvester/pkg/logging"
	"github.com/pelletier/go-toml/v2"
)

// HarvesterConfig holds the complete ingestion pipeline configuration
type HarvesterConfig struct {
	Logging    *logging.LogConfig `toml:"logging"`
	Politeness *PolitenessConfig  `toml:"politeness"`
	Fetch      *FetchConfig       `toml:"fetch"`
	Extraction *ExtractionConfig  `toml:"extraction"`
	Quality    *QualityConfig     `toml:"quality"`
	Dedup      *DedupConfig       `toml:"dedup"`
	Chunking   *ChunkingConfig    `toml:"chunking"`
	Search     *SearchConfig      `toml:"search"`
	Discovery  *DiscoveryConfig   `toml:"discovery"`
	Proposal   *ProposalConfig    `toml:"proposal"`
	Chat       *ChatConfig        `toml:"chat"`
	Index      *IndexConfig       `toml:"index"`
	Run        *RunConfig         `toml:"run"`
}

// PolitenessConfig holds robots.txt and per-host pacing settings
type PolitenessConfig struct {
	RobotsAgent       string   `toml:"robots_agent"`        // agent name matched against robots groups
	RobotsTimeout     Duration `toml:"robots_timeout"`      // GET /robots.txt
	DefaultCrawlDelay Duration `toml:"default_crawl_delay"` // when robots.txt has none
}

// FetchConfig holds page fetch settings
type FetchConfig struct {
	UserAgent      string   `toml:"user_agent"`
	AcceptLanguage string   `toml:"accept_language"`
	Timeout        Duration `toml:"timeout"`
	MaxBodyBytes   int64    `toml:"max_body_bytes"`
	MaxRedirects   int      `toml:"max_redirects"`
	ContentTypes   []string `toml:"content_types"`
}

// ExtractionConfig selects the content extraction strategies
type ExtractionConfig struct {
	UsePrimary bool `toml:"use_primary"` // main-content extractor before the structural fallback
}

// QualityConfig holds quality gate settings
type QualityConfig struct {
	MinTextChars int     `toml:"min_text_chars"`
	Threshold    float64 `toml:"threshold"` // inclusive
}

// DedupConfig holds near-duplicate filter settings
type DedupConfig struct {
	Enabled         bool `toml:"enabled"`
	MaxHamming      int  `toml:"max_hamming"`
	MaxFingerprints int  `toml:"max_fingerprints"` // 0 keeps every fingerprint
}

// ChunkingConfig holds chunk budget settings
type ChunkingConfig struct {
	TargetTokens    int     `toml:"target_tokens"`
	OverlapTokens   int     `toml:"overlap_tokens"`
	HardCeiling     int     `toml:"hard_ceiling"`
	ExpansionFactor float64 `toml:"expansion_factor"` // whitespace tokens to embedding tokens
	SafetyMargin    float64 `toml:"safety_margin"`
}

// SearchConfig holds metasearch settings
type SearchConfig struct {
	BaseURL              string   `toml:"base_url"`
	Timeout              Duration `toml:"timeout"`
	QueriesPerSecond     float64  `toml:"queries_per_second"`
	AuthoritativeDomains []string `toml:"authoritative_domains"`
	RestrictCrawl        bool     `toml:"restrict_crawl"` // apply the site filter to cycle searches too
}

// DiscoveryConfig holds seed keyword discovery settings
type DiscoveryConfig struct {
	Templates          []string `toml:"templates"` // {year} is replaced with the current year
	ResultsPerTemplate int      `toml:"results_per_template"`
	ParagraphsPerPage  int      `toml:"paragraphs_per_page"`
	MaxCandidates      int      `toml:"max_candidates"`
}

// ProposalConfig holds next keyword proposal settings
type ProposalConfig struct {
	SamplePages       int `toml:"sample_pages"`
	CandidatesPerPage int `toml:"candidates_per_page"`
	ShortlistSize     int `toml:"shortlist_size"`
	MaxPromptChars    int `toml:"max_prompt_chars"`
}

// ChatConfig holds chat collaborator settings
type ChatConfig struct {
	Backend    string   `toml:"backend"` // message, openai
	BaseURL    string   `toml:"base_url"`
	Model      string   `toml:"model"`
	APIKey     string   `toml:"api_key"`
	Timeout    Duration `toml:"timeout"`
	Persona    string   `toml:"persona"`
	SeedPrompt string   `toml:"seed_prompt"`
}

// IndexConfig holds embedding index collaborator settings
type IndexConfig struct {
	Backend string   `toml:"backend"` // http, bleve
	BaseURL string   `toml:"base_url"`
	Path    string   `toml:"path"` // bleve index directory
	Timeout Duration `toml:"timeout"`
}

// RunConfig holds orchestrator loop settings
type RunConfig struct {
	SeenKeywordsPath string   `toml:"seen_keywords_path"`
	ResultsPerSearch int      `toml:"results_per_search"`
	URLPause         Duration `toml:"url_pause"`
	CyclePause       Duration `toml:"cycle_pause"`
	MaxCycles        int      `toml:"max_cycles"` // 0 runs until cancelled
}

// DefaultHarvesterConfig returns a complete default configuration
func DefaultHarvesterConfig() *HarvesterConfig {
	return &HarvesterConfig{
		Logging: logging.DefaultLogConfig(),
		Politeness: &PolitenessConfig{
			RobotsAgent:       "caia-harvester",
			RobotsTimeout:     Seconds(5),
			DefaultCrawlDelay: Seconds(1),
		},
		Fetch: &FetchConfig{
			UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
			AcceptLanguage: "en-US,en;q=0.9",
			Timeout:        Seconds(20),
			MaxBodyBytes:   2 * 1024 * 1024,
			MaxRedirects:   10,
			ContentTypes:   []string{"text/html", "application/xhtml+xml"},
		},
		Extraction: &ExtractionConfig{
			UsePrimary: true,
		},
		Quality: &QualityConfig{
			MinTextChars: 400,
			Threshold:    0.45,
		},
		Dedup: &DedupConfig{
			Enabled:    true,
			MaxHamming: 3,
		},
		Chunking: &ChunkingConfig{
			TargetTokens:    350,
			OverlapTokens:   60,
			HardCeiling:     500,
			ExpansionFactor: 1.32,
			SafetyMargin:    0.15,
		},
		Search: &SearchConfig{
			BaseURL:          "http://localhost:8888",
			Timeout:          Seconds(15),
			QueriesPerSecond: 0.5,
			AuthoritativeDomains: []string{
				"go.dev",
				"kubernetes.io",
				"docs.docker.com",
				"developer.mozilla.org",
				"docs.python.org",
				"owasp.org",
				"postgresql.org",
				"nodejs.org",
				"rust-lang.org",
				"learn.microsoft.com",
				"cloud.google.com",
				"aws.amazon.com",
				"github.blog",
			},
		},
		Discovery: &DiscoveryConfig{
			Templates: []string{
				"best practices {year}",
				"release notes {year}",
				"migration guide {year}",
				"security advisory {year}",
				"performance tuning {year}",
				"new features {year}",
			},
			ResultsPerTemplate: 5,
			ParagraphsPerPage:  3,
			MaxCandidates:      50,
		},
		Proposal: &ProposalConfig{
			SamplePages:       3,
			CandidatesPerPage: 8,
			ShortlistSize:     8,
			MaxPromptChars:    4000,
		},
		Chat: &ChatConfig{
			Backend: "message",
			BaseURL: "http://localhost:5000",
			Model:   "llama3",
			Timeout: Seconds(60),
			Persona: "You are a curious software developer wants to know all things. " +
				"Your job is to suggest interesting keyword searches. " +
				"Reply ONLY in English language with a plain text keyword or phrase for searching, " +
				"no sentences or explanations.",
			SeedPrompt: "Suggest a keyword search for today.",
		},
		Index: &IndexConfig{
			Backend: "http",
			BaseURL: "http://localhost:5000",
			Path:    "data/chunks.bleve",
			Timeout: Seconds(30),
		},
		Run: &RunConfig{
			SeenKeywordsPath: "seen_keywords.txt",
			ResultsPerSearch: 10,
			URLPause:         Seconds(15),
			CyclePause:       Seconds(5),
		},
	}
}

// ProductionHarvesterConfig returns production-optimized configuration
func ProductionHarvesterConfig() *HarvesterConfig {
	config := DefaultHarvesterConfig()

	config.Logging.Level = "info"
	config.Logging.Format = "json"
	config.Logging.OutputFile = "logs/caia-harvester.log"

	config.Run.SeenKeywordsPath = "data/seen_keywords.txt"
	config.Dedup.MaxFingerprints = 200000

	return config
}

// DevelopmentHarvesterConfig returns development-optimized configuration
func DevelopmentHarvesterConfig() *HarvesterConfig {
	config := DefaultHarvesterConfig()

	config.Logging.Level = "debug"
	config.Logging.Format = "pretty"

	config.Index.Backend = "bleve"
	config.Run.URLPause = Seconds(2)
	config.Run.CyclePause = Seconds(1)
	config.Run.MaxCycles = 3

	return config
}

// LoadConfig reads a TOML file over the defaults and applies environment
// overrides. An empty path skips the file.
func LoadConfig(path string) (*HarvesterConfig, error) {
	config := DefaultHarvesterConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		config.fillDefaults()
	}

	config.ApplyEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// fillDefaults replaces sections a config file explicitly nulled out.
func (c *HarvesterConfig) fillDefaults() {
	d := DefaultHarvesterConfig()
	if c.Logging == nil {
		c.Logging = d.Logging
	}
	if c.Politeness == nil {
		c.Politeness = d.Politeness
	}
	if c.Fetch == nil {
		c.Fetch = d.Fetch
	}
	if c.Extraction == nil {
		c.Extraction = d.Extraction
	}
	if c.Quality == nil {
		c.Quality = d.Quality
	}
	if c.Dedup == nil {
		c.Dedup = d.Dedup
	}
	if c.Chunking == nil {
		c.Chunking = d.Chunking
	}
	if c.Search == nil {
		c.Search = d.Search
	}
	if c.Discovery == nil {
		c.Discovery = d.Discovery
	}
	if c.Proposal == nil {
		c.Proposal = d.Proposal
	}
	if c.Chat == nil {
		c.Chat = d.Chat
	}
	if c.Index == nil {
		c.Index = d.Index
	}
	if c.Run == nil {
		c.Run = d.Run
	}
}

// ApplyEnv overrides endpoints and paths from HARVESTER_* variables.
func (c *HarvesterConfig) ApplyEnv() {
	c.Logging.Level = getEnv("HARVESTER_LOG_LEVEL", c.Logging.Level)
	c.Search.BaseURL = getEnv("HARVESTER_SEARCH_URL", c.Search.BaseURL)
	c.Chat.Backend = getEnv("HARVESTER_CHAT_BACKEND", c.Chat.Backend)
	c.Chat.BaseURL = getEnv("HARVESTER_CHAT_URL", c.Chat.BaseURL)
	c.Chat.Model = getEnv("HARVESTER_CHAT_MODEL", c.Chat.Model)
	c.Chat.APIKey = getEnv("HARVESTER_CHAT_API_KEY", c.Chat.APIKey)
	c.Index.Backend = getEnv("HARVESTER_INDEX_BACKEND", c.Index.Backend)
	c.Index.BaseURL = getEnv("HARVESTER_INDEX_URL", c.Index.BaseURL)
	c.Index.Path = getEnv("HARVESTER_INDEX_PATH", c.Index.Path)
	c.Run.SeenKeywordsPath = getEnv("HARVESTER_SEEN_KEYWORDS", c.Run.SeenKeywordsPath)

	if v := os.Getenv("HARVESTER_MAX_CYCLES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Run.MaxCycles = n
		}
	}
}

// Validate rejects inconsistent settings.
func (c *HarvesterConfig) Validate() error {
	ch := c.Chunking
	switch {
	case ch.TargetTokens <= 0 || ch.HardCeiling <= 0:
		return fmt.Errorf("chunking: target_tokens and hard_ceiling must be positive")
	case ch.OverlapTokens < 0 || ch.OverlapTokens >= ch.TargetTokens:
		return fmt.Errorf("chunking: overlap_tokens must be in [0, target_tokens)")
	case ch.TargetTokens > ch.HardCeiling:
		return fmt.Errorf("chunking: target_tokens %d exceeds hard_ceiling %d", ch.TargetTokens, ch.HardCeiling)
	case ch.HardCeiling <= document.MinHeaderTokens:
		return fmt.Errorf("chunking: hard_ceiling %d leaves no room after a %d-token chunk header", ch.HardCeiling, document.MinHeaderTokens)
	case ch.ExpansionFactor < 1:
		return fmt.Errorf("chunking: expansion_factor must be >= 1")
	case ch.SafetyMargin < 0 || ch.SafetyMargin >= 1:
		return fmt.Errorf("chunking: safety_margin must be in [0, 1)")
	}

	if c.Quality.Threshold < 0 || c.Quality.Threshold > 1 {
		return fmt.Errorf("quality: threshold must be in [0, 1]")
	}
	if c.Dedup.MaxHamming < 0 || c.Dedup.MaxHamming > 64 {
		return fmt.Errorf("dedup: max_hamming must be in [0, 64]")
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		return fmt.Errorf("fetch: max_body_bytes must be positive")
	}
	if c.Search.BaseURL == "" {
		return fmt.Errorf("search: base_url is required")
	}
	if c.Search.QueriesPerSecond <= 0 {
		return fmt.Errorf("search: queries_per_second must be positive")
	}

	switch c.Chat.Backend {
	case "message", "openai":
	default:
		return fmt.Errorf("chat: unknown backend %q", c.Chat.Backend)
	}
	switch c.Index.Backend {
	case "http", "bleve":
	default:
		return fmt.Errorf("index: unknown backend %q", c.Index.Backend)
	}

	if c.Run.SeenKeywordsPath == "" {
		return fmt.Errorf("run: seen_keywords_path is required")
	}
	return nil
}

// Duration is a time.Duration written as a string ("15s") in config files.
type Duration struct {
	time.Duration
}

// Seconds returns a Duration of n seconds.
func Seconds(n float64) Duration {
	return Duration{time.Duration(n * float64(time.Second))}
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = v
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
