package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port          int              `json:"port"`
	JWTSecret     string           `json:"jwt_secret"`
	LogConfig     logger.LogConfig `json:"log_config"`
	Database      DatabaseConfig   `json:"database"`
	AI            AIConfig         `json:"ai"`
	Router        RouterPolicy     `json:"router"`
	Answering     AnsweringConfig  `json:"answering"`
	EmbedCache    EmbedCacheConfig `json:"embed_cache"`
	CORSAllowlist []string         `json:"cors_allowlist"`
	// Minimum seconds between message posts per user+path; 0 disables.
	MessageRateLimitSeconds int `json:"message_rate_limit_seconds"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

// AIConfig wires the provider registry. Providers maps a slug prefix
// ("gemini", "routeway", ...) to a registered provider kind plus its
// kind-specific arguments.
type AIConfig struct {
	Providers      map[string]ProviderConfig `json:"providers"`
	EmbeddingModel string                    `json:"embedding_model"`
	EmbeddingDim   int                       `json:"embedding_dim"`
	TimeoutSeconds int                       `json:"timeout_seconds"`
}

type ProviderConfig struct {
	Kind string                 `json:"kind"`
	Args map[string]interface{} `json:"args"`
}

// RouterPolicy is the fixed category-to-model table. One designated model per
// category, independent of the answering fallback chain.
type RouterPolicy struct {
	GeneralModel   string `json:"general_model"`
	ReasoningModel string `json:"reasoning_model"`
	CodingModel    string `json:"coding_model"`
	ClassifyModel  string `json:"classify_model"`
}

type AnsweringConfig struct {
	// Tried in order after the routed model; the classify model sits last as
	// the cheap final resort.
	FallbackModels []string `json:"fallback_models"`
	HistoryTurns   int      `json:"history_turns"`
	TopK           int      `json:"top_k"`
	MaxInputChars  int      `json:"max_input_chars"`
}

type EmbedCacheConfig struct {
	LRUSize         int    `json:"lru_size"`
	LRUTTLMinutes   int    `json:"lru_ttl_minutes"`
	DBKeepDays      int    `json:"db_keep_days"`
	CleanupCronSpec string `json:"cleanup_cron_spec"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if len(cfg.AI.Providers) == 0 {
		return nil, fmt.Errorf("ai.providers is required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.AI.EmbeddingModel == "" {
		cfg.AI.EmbeddingModel = "gemini/gemini-embedding-001"
	}
	if cfg.AI.EmbeddingDim == 0 {
		cfg.AI.EmbeddingDim = 1536
	}
	if cfg.AI.TimeoutSeconds == 0 {
		cfg.AI.TimeoutSeconds = 60
	}
	if cfg.Router.GeneralModel == "" {
		cfg.Router.GeneralModel = "routeway/glm-4.5-air:free"
	}
	if cfg.Router.ReasoningModel == "" {
		cfg.Router.ReasoningModel = "routeway/gpt-oss-120b:free"
	}
	if cfg.Router.CodingModel == "" {
		cfg.Router.CodingModel = "routeway/devstral-2512:free"
	}
	if cfg.Router.ClassifyModel == "" {
		cfg.Router.ClassifyModel = "gemini/gemini-2.5-flash"
	}
	if len(cfg.Answering.FallbackModels) == 0 {
		cfg.Answering.FallbackModels = []string{
			cfg.Router.GeneralModel,
			cfg.Router.ClassifyModel,
		}
	}
	if cfg.Answering.HistoryTurns == 0 {
		cfg.Answering.HistoryTurns = 10
	}
	if cfg.Answering.TopK == 0 {
		cfg.Answering.TopK = 5
	}
	if cfg.Answering.MaxInputChars == 0 {
		cfg.Answering.MaxInputChars = 32000
	}
	if cfg.EmbedCache.LRUSize == 0 {
		cfg.EmbedCache.LRUSize = 4096
	}
	if cfg.EmbedCache.LRUTTLMinutes == 0 {
		cfg.EmbedCache.LRUTTLMinutes = 120
	}
	if cfg.EmbedCache.DBKeepDays == 0 {
		cfg.EmbedCache.DBKeepDays = 30
	}
	if cfg.EmbedCache.CleanupCronSpec == "" {
		cfg.EmbedCache.CleanupCronSpec = "30 4 * * *"
	}
}
