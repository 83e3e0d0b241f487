package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joonpak/stockradar/internal/analysis"
	"github.com/joonpak/stockradar/internal/config"
	"github.com/joonpak/stockradar/internal/dart"
	"github.com/joonpak/stockradar/internal/finance"
	"github.com/joonpak/stockradar/internal/ingest"
	"github.com/joonpak/stockradar/internal/llm"
	"github.com/joonpak/stockradar/internal/provider"
	"github.com/joonpak/stockradar/internal/retrieval"
	"github.com/joonpak/stockradar/internal/selector"
	"github.com/joonpak/stockradar/internal/storage"
)

// app holds the wired components shared by the serve, collect, and analyze
// commands.
type app struct {
	cfg       config.Config
	store     *storage.Store
	collector *ingest.Collector
	pipeline  *analysis.Pipeline
	location  *time.Location
}

func buildApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	initLogging(cfg)

	loc, err := time.LoadLocation(cfg.Analysis.Timezone)
	if err != nil {
		slog.Warn("invalid timezone, using UTC", "timezone", cfg.Analysis.Timezone, "error", err)
		loc = time.UTC
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	llmClient := llm.New(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.ChatModel, cfg.LLM.EmbedModel)
	embedder := retrieval.NewEmbedder(llmClient)
	vectorStore := retrieval.NewSQLiteStore(store.DB())
	retriever := retrieval.NewRetriever(embedder, vectorStore)

	collector := ingest.NewCollector(buildAdapters(cfg), store, embedder, vectorStore)

	sel := selector.New(retriever, store, llmClient,
		cfg.Analysis.CandidateLimit, cfg.Analysis.SelectTarget, 0)

	var statements finance.StatementsClient
	if cfg.Dart.APIKey != "" {
		statements = dart.NewClient(cfg.Dart.APIKey, dart.WithBaseURL(cfg.Dart.BaseURL))
	} else {
		slog.Warn("no DART API key configured, health scores will be unavailable")
	}
	fetcher := finance.NewFetcher(statements, store)

	pipeline := analysis.NewPipeline(sel, llmClient, fetcher, store, loc)

	return &app{
		cfg:       cfg,
		store:     store,
		collector: collector,
		pipeline:  pipeline,
		location:  loc,
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
	}
}

// buildAdapters wires every provider whose credentials are configured.
func buildAdapters(cfg config.Config) []provider.Adapter {
	var adapters []provider.Adapter
	if cfg.Providers.NaverClientID != "" && cfg.Providers.NaverClientSecret != "" {
		adapters = append(adapters, provider.NewNaver(cfg.Providers.NaverClientID, cfg.Providers.NaverClientSecret, ""))
	}
	if cfg.Providers.NewsDataAPIKey != "" {
		adapters = append(adapters, provider.NewNewsData(cfg.Providers.NewsDataAPIKey, ""))
	}
	if cfg.Providers.GNewsAPIKey != "" {
		adapters = append(adapters, provider.NewGNews(cfg.Providers.GNewsAPIKey, ""))
	}
	if cfg.Providers.TheNewsAPIKey != "" {
		adapters = append(adapters, provider.NewTheNewsAPI(cfg.Providers.TheNewsAPIKey, ""))
	}
	if len(adapters) == 0 {
		slog.Warn("no news provider credentials configured, collection will fetch nothing")
	}
	return adapters
}

func initLogging(cfg config.Config) {
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}
