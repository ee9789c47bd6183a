// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (BRIEFLY_* prefix, runtime override)
//  2. Config file (~/.briefly/config.yaml or --config)
//  3. Default values
//
// Validation uses sentinel errors so callers can check categories with
// errors.Is().
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrMissingAPIKey indicates the Gemini API key is not configured.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidChunking indicates chunk size/overlap values are out of range.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidRetrieval indicates retrieval parameters are out of range.
	ErrInvalidRetrieval = errors.New("invalid retrieval configuration")

	// ErrInvalidSource indicates an ingestion source is misconfigured.
	ErrInvalidSource = errors.New("invalid source configuration")
)

// Defaults applied by Load when neither file nor environment provides a value.
const (
	DefaultAddr = "127.0.0.1:5000"

	DefaultModel         = "gemini-2.5-flash"
	DefaultEmbedderModel = "gemini-embedding-001"
	DefaultTTSModel      = "gemini-2.5-flash-preview-tts"

	// DefaultEmbeddingDim matches the archive schema's vector(768) column.
	DefaultEmbeddingDim = 768

	DefaultChunkSize    = 1200
	DefaultChunkOverlap = 120

	DefaultTopK               = 3
	DefaultScoreThreshold     = 0.35
	DefaultContextBudgetChars = 6000

	DefaultHistoryWindow = 20

	DefaultFeedLimit      = 5
	DefaultRefreshTimeout = 2 * time.Minute
)

// Config stores all application settings.
type Config struct {
	// HTTP server
	Addr string `mapstructure:"addr"`

	// Gemini backend
	GeminiAPIKey  string  `mapstructure:"gemini_api_key"`
	Model         string  `mapstructure:"model"`
	EmbedderModel string  `mapstructure:"embedder_model"`
	TTSModel      string  `mapstructure:"tts_model"`
	EmbeddingDim  int     `mapstructure:"embedding_dim"`
	Temperature   float32 `mapstructure:"temperature"`
	TopP          float32 `mapstructure:"top_p"`
	MaxTokens     int     `mapstructure:"max_tokens"`

	// Ingestion sources
	RSSURL       string `mapstructure:"rss_url"`
	NewsAPIKey   string `mapstructure:"newsapi_key"`
	NewsAPIQuery string `mapstructure:"newsapi_query"`
	NewsCountry  string `mapstructure:"news_country"`
	UploadsDir   string `mapstructure:"uploads_dir"`
	FeedLimit    int    `mapstructure:"feed_limit"`
	FetchBody    bool   `mapstructure:"fetch_body"`

	// Chunking
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`

	// Retrieval
	TopK               int     `mapstructure:"top_k"`
	ScoreThreshold     float64 `mapstructure:"score_threshold"`
	ContextBudgetChars int     `mapstructure:"context_budget_chars"`

	// Conversation
	HistoryWindow int `mapstructure:"history_window"`

	// Refresh pipeline
	RefreshTimeout time.Duration `mapstructure:"refresh_timeout"`
	LockPath       string        `mapstructure:"lock_path"`

	// Optional Postgres archive (empty = disabled)
	DatabaseURL string `mapstructure:"database_url"`

	// Observability (empty endpoint = tracing disabled)
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`

	// Logging
	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`
}

// Load reads configuration from file and environment.
// configFile may be empty, in which case only the default search path,
// environment and defaults apply. A missing config file is not an error.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("BRIEFLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVariables(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.briefly")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", DefaultAddr)
	v.SetDefault("model", DefaultModel)
	v.SetDefault("embedder_model", DefaultEmbedderModel)
	v.SetDefault("tts_model", DefaultTTSModel)
	v.SetDefault("embedding_dim", DefaultEmbeddingDim)
	v.SetDefault("temperature", 0.6)
	v.SetDefault("top_p", 0.7)
	v.SetDefault("max_tokens", 4096)
	v.SetDefault("uploads_dir", "uploads")
	v.SetDefault("feed_limit", DefaultFeedLimit)
	v.SetDefault("fetch_body", false)
	v.SetDefault("chunk_size", DefaultChunkSize)
	v.SetDefault("chunk_overlap", DefaultChunkOverlap)
	v.SetDefault("top_k", DefaultTopK)
	v.SetDefault("score_threshold", DefaultScoreThreshold)
	v.SetDefault("context_budget_chars", DefaultContextBudgetChars)
	v.SetDefault("history_window", DefaultHistoryWindow)
	v.SetDefault("refresh_timeout", DefaultRefreshTimeout)
	v.SetDefault("service_name", "briefly")
	v.SetDefault("log_level", "info")
}

// bindEnvVariables binds the keys that have no default value. AutomaticEnv
// only resolves keys viper already knows about, so without an explicit bind
// an env-only deployment could never set these.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys can't fail to bind; a panic here is a bug, not a
	// runtime error.
	mustBind := func(key string) {
		if err := v.BindEnv(key); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q: %v", key, err))
		}
	}

	mustBind("gemini_api_key")
	mustBind("rss_url")
	mustBind("newsapi_key")
	mustBind("newsapi_query")
	mustBind("news_country")
	mustBind("lock_path")
	mustBind("database_url")
	mustBind("otlp_endpoint")
	mustBind("log_json")
}

// Validate checks the configuration for values the application cannot
// start with. It does not require optional features (archive, tracing,
// NewsAPI) to be configured.
func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("%w: gemini_api_key (or BRIEFLY_GEMINI_API_KEY) is required", ErrMissingAPIKey)
	}
	if c.ChunkSize < 100 || c.ChunkSize > 100_000 {
		return fmt.Errorf("%w: chunk_size %d out of range [100, 100000]", ErrInvalidChunking, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap %d must be in [0, chunk_size)", ErrInvalidChunking, c.ChunkOverlap)
	}
	if c.TopK < 1 || c.TopK > 50 {
		return fmt.Errorf("%w: top_k %d out of range [1, 50]", ErrInvalidRetrieval, c.TopK)
	}
	if c.ScoreThreshold < -1 || c.ScoreThreshold > 1 {
		return fmt.Errorf("%w: score_threshold %.2f out of range [-1, 1]", ErrInvalidRetrieval, c.ScoreThreshold)
	}
	if c.ContextBudgetChars < 100 {
		return fmt.Errorf("%w: context_budget_chars %d too small", ErrInvalidRetrieval, c.ContextBudgetChars)
	}
	if c.RSSURL == "" && c.NewsAPIKey == "" && c.UploadsDir == "" {
		return fmt.Errorf("%w: no ingestion source configured", ErrInvalidSource)
	}
	return nil
}
