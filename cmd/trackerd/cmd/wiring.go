package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/trackerd/trackerd/configs"
	"github.com/trackerd/trackerd/internal/bus"
	"github.com/trackerd/trackerd/internal/config"
	"github.com/trackerd/trackerd/internal/crawler"
	"github.com/trackerd/trackerd/internal/dbengine"
	"github.com/trackerd/trackerd/internal/extract"
	"github.com/trackerd/trackerd/internal/indexer"
	"github.com/trackerd/trackerd/internal/livesearch"
	"github.com/trackerd/trackerd/internal/ontology"
	"github.com/trackerd/trackerd/internal/query"
	"github.com/trackerd/trackerd/internal/textpipeline"
)

// stack bundles every core component a daemon-facing command needs, wired
// against one loaded Config (§SPEC_FULL.md §2 "Components, leaves first").
type stack struct {
	cfg      *config.Config
	manager  *dbengine.Manager
	registry *ontology.Registry
	indexer  *indexer.Indexer
	crawler  *crawler.Crawler
	engine   *query.Engine
	live     *livesearch.Manager
}

// openStack loads configuration and wires the ontology registry, database
// manager, indexer, crawler, query engine, and live-search manager in the
// dependency order §2 lists leaves-first. Callers that only need a subset
// (e.g. `search` never touches the crawler) still pay for the whole wire-up
// — it is cheap relative to opening the databases themselves.
func openStack(ctx context.Context, logger *slog.Logger) (*stack, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := configs.InstallOntologyDefaults(cfg.Ontology.DescriptionDir); err != nil {
		return nil, fmt.Errorf("install ontology defaults: %w", err)
	}

	registry := ontology.New()
	if err := registry.Load(cfg.Ontology.DescriptionDir); err != nil {
		return nil, fmt.Errorf("load ontology: %w", err)
	}

	onAbort := func(db string, err error) {
		logger.Error("database reported corruption", slog.String("database", db), slog.String("error", err.Error()))
		os.Exit(1)
	}
	manager, err := dbengine.OpenManager(ctx, cfg.Databases, cfg.Databases.LowMemory, registry, onAbort)
	if err != nil {
		return nil, fmt.Errorf("open databases: %w", err)
	}

	tokenize := tokenizeOptions(cfg.Performance)

	ix, err := indexer.New(ctx, manager, registry, extract.New(), tokenize, cfg.Performance.Throttle)
	if err != nil {
		manager.Close()
		return nil, fmt.Errorf("init indexer: %w", err)
	}

	roster := []crawler.Module{{Name: "files", Roots: cfg.Paths.CrawlRoots}}
	rules := crawler.NewRules(cfg.Paths.IgnoreGlobs)
	for _, dir := range cfg.Paths.ExcludeDirs {
		rules.Blacklist(dir)
	}
	cr := crawler.New(roster, rules, cfg.Performance.BatchSize)

	engine, err := query.New(ctx, manager, registry, ix.FileWordIndex(), ix.EmailWordIndex(), tokenize)
	if err != nil {
		manager.Close()
		return nil, fmt.Errorf("init query engine: %w", err)
	}

	live, err := livesearch.New(ctx, manager, registry)
	if err != nil {
		manager.Close()
		return nil, fmt.Errorf("init live-search manager: %w", err)
	}
	ix.SetEventNotifier(live.Notify)

	return &stack{
		cfg:      cfg,
		manager:  manager,
		registry: registry,
		indexer:  ix,
		crawler:  cr,
		engine:   engine,
		live:     live,
	}, nil
}

func (s *stack) Close() error {
	if err := s.engine.Close(); err != nil {
		return err
	}
	return s.manager.Close()
}

// newBusServer wraps s.engine/s.live in an MCP bus adapter (§4.7).
func (s *stack) newBusServer(logger *slog.Logger) (*bus.Server, error) {
	return bus.NewServer(s.engine, s.live, logger)
}

func tokenizeOptions(perf config.PerformanceConfig) textpipeline.TokenizeOptions {
	opts := textpipeline.DefaultTokenizeOptions()
	if perf.MaxWordLength > 0 {
		opts.MaxWordLength = perf.MaxWordLength
	}
	if perf.MinWordLength > 0 {
		opts.MinWordLength = perf.MinWordLength
	}
	if perf.MaxWordsToIndex > 0 {
		opts.MaxWordsToIndex = perf.MaxWordsToIndex
	}
	return opts
}
