// Package main provides the entry point for the Caia Harvester
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Caia-Tech/caia-harvester/internal/pipeline"
	"github.com/Caia-Tech/caia-harvester/internal/procurement"
	"github.com/Caia-Tech/caia-harvester/internal/procurement/chat"
	"github.com/Caia-Tech/caia-harvester/internal/procurement/dedup"
	"github.com/Caia-Tech/caia-harvester/internal/procurement/keywords"
	"github.com/Caia-Tech/caia-harvester/internal/procurement/quality"
	"github.com/Caia-Tech/caia-harvester/internal/procurement/scraping"
	"github.com/Caia-Tech/caia-harvester/internal/procurement/search"
	"github.com/Caia-Tech/caia-harvester/internal/processing"
	"github.com/Caia-Tech/caia-harvester/internal/storage"
	"github.com/Caia-Tech/caia-harvester/pkg/extractor"
	"github.com/Caia-Tech/caia-harvester/pkg/logging"
	settings "github.com/Caia-Tech/caia-harvester/pkg/pipeline"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "harvester",
		Usage: "Keyword-driven web ingestion into an embedding index",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a TOML config file",
				EnvVars: []string{"HARVESTER_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Override the logging level (debug, info, warn, error)",
			},
		},
		Action: run,
	}
}

func loadConfig(c *cli.Context) (*settings.HarvesterConfig, error) {
	config, err := settings.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	if level := c.String("log-level"); level != "" {
		config.Logging.Level = level
	}
	return config, nil
}

func run(c *cli.Context) error {
	config, err := loadConfig(c)
	if err != nil {
		return err
	}

	logCloser, err := logging.SetupLogger(config.Logging)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer logCloser.Close()

	harvester, closers, err := build(config, procurement.SystemClock{})
	if err != nil {
		return err
	}
	defer func() {
		for _, closer := range closers {
			if err := closer.Close(); err != nil {
				log.Warn().Err(err).Msg("Shutdown error")
			}
		}
	}()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := harvester.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("Harvester stopped")
	return nil
}

// build wires every component from config. The returned closers release
// the keyword log and the index.
func build(config *settings.HarvesterConfig, clock procurement.Clock) (*pipeline.Orchestrator, []io.Closer, error) {
	state := procurement.NewCrawlState()

	store, err := keywords.OpenSeenStore(config.Run.SeenKeywordsPath, state)
	if err != nil {
		return nil, nil, err
	}

	metrics := storage.NewSimpleMetricsCollector()
	index, err := storage.NewIndex(config.Index, metrics)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	chatClient, err := chat.New(config.Chat)
	if err != nil {
		store.Close()
		index.Close()
		return nil, nil, err
	}

	gate := scraping.NewPolitenessGate(config.Politeness, state, clock, nil)
	fetcher := scraping.NewPageFetcher(config.Fetch, gate, nil)
	searcher := search.NewSearxNG(config.Search, config.Fetch.UserAgent, nil)
	engine := extractor.NewEngine(config.Extraction)

	log.Info().
		Str("extractor", engine.Strategy()).
		Str("search", config.Search.BaseURL).
		Str("chat_backend", config.Chat.Backend).
		Str("index_backend", config.Index.Backend).
		Int("seen_keywords", store.Len()).
		Msg("Harvester configured")

	orchestrator := pipeline.NewOrchestrator(config, pipeline.Components{
		Searcher:  searcher,
		Fetcher:   fetcher,
		Extractor: engine,
		Quality:   quality.NewGate(config.Quality),
		Dedup:     dedup.NewFilter(config.Dedup, state),
		Chunker:   processing.NewChunker(config.Chunking),
		Index:     index,
		Seeder:    keywords.NewDiscoverer(config, searcher, fetcher, chatClient, clock),
		Proposer:  keywords.NewProposer(config.Proposal, chatClient),
		Keywords:  store,
		Clock:     clock,

		IndexStats: metrics,
	})
	return orchestrator, []io.Closer{store, index}, nil
}
