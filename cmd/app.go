package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/briefly-ai/briefly/internal/archive"
	"github.com/briefly-ai/briefly/internal/chat"
	"github.com/briefly-ai/briefly/internal/chunk"
	"github.com/briefly-ai/briefly/internal/config"
	"github.com/briefly-ai/briefly/internal/embed"
	"github.com/briefly-ai/briefly/internal/log"
	"github.com/briefly-ai/briefly/internal/news"
	"github.com/briefly-ai/briefly/internal/prompt"
	"github.com/briefly-ai/briefly/internal/refresh"
	"github.com/briefly-ai/briefly/internal/retrieve"
)

// application holds the wired object graph shared by serve and refresh.
type application struct {
	cfg         *config.Config
	logger      log.Logger
	client      *genai.Client
	coordinator *refresh.Coordinator
	retriever   *retrieve.Retriever
	builder     *prompt.Builder
	orchestra   *chat.Orchestrator
	archive     *archive.Store // nil when no database is configured
}

// loadConfig loads and validates configuration for a command run.
func loadConfig() (*config.Config, log.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	logger := log.New(log.Config{
		Level: parseLogLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, logger, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newApplication wires the full object graph from configuration.
func newApplication(ctx context.Context, cfg *config.Config, logger log.Logger) (*application, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}

	var sources []news.Source
	if cfg.RSSURL != "" {
		sources = append(sources, news.NewFeedSource(cfg.RSSURL, cfg.FeedLimit, cfg.FetchBody, logger))
	}
	if cfg.NewsAPIKey != "" {
		sources = append(sources, news.NewNewsAPISource(cfg.NewsAPIKey, cfg.NewsAPIQuery, cfg.NewsCountry, logger))
	}
	if cfg.UploadsDir != "" {
		sources = append(sources, news.NewPDFSource(cfg.UploadsDir, logger))
	}

	embedder := embed.NewGemini(client, cfg.EmbedderModel, cfg.EmbeddingDim, nil, logger)

	var store *archive.Store
	if cfg.DatabaseURL != "" {
		store, err = archive.Open(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, fmt.Errorf("opening archive: %w", err)
		}
	}

	coordinatorCfg := refresh.Config{
		Ingestor: news.NewIngestor(sources, news.DefaultSourceTimeout, news.DefaultRetries, logger),
		Chunker:  chunk.New(cfg.ChunkSize, cfg.ChunkOverlap),
		Embedder: embedder,
		Timeout:  cfg.RefreshTimeout,
		LockPath: cfg.LockPath,
		Logger:   logger,
	}
	if store != nil {
		coordinatorCfg.Archive = store
	}
	coordinator, err := refresh.New(coordinatorCfg)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, fmt.Errorf("creating refresh coordinator: %w", err)
	}

	retriever := retrieve.New(embedder, coordinator, retrieve.Config{
		TopK:        cfg.TopK,
		Threshold:   cfg.ScoreThreshold,
		BudgetChars: cfg.ContextBudgetChars,
	}, logger)

	backend := chat.NewGeminiBackend(client, chat.GeminiConfig{
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
		MaxTokens:   int32(cfg.MaxTokens),
	}, logger)

	return &application{
		cfg:         cfg,
		logger:      logger,
		client:      client,
		coordinator: coordinator,
		retriever:   retriever,
		builder:     prompt.NewBuilder(cfg.HistoryWindow),
		orchestra:   chat.New(backend, 0, logger),
		archive:     store,
	}, nil
}

// Close releases held resources and waits for any in-flight refresh.
func (a *application) Close() {
	a.coordinator.Wait()
	if a.archive != nil {
		a.archive.Close()
	}
}
