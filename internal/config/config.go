package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port        int               `json:"port"`
	LogConfig   logger.LogConfig  `json:"log_config"`
	Database    DatabaseConfig    `json:"database"`
	Index       IndexConfig       `json:"index"`
	AI          AIConfig          `json:"ai"`
	Cache       CacheConfig       `json:"cache"`
	Chunking    ChunkingConfig    `json:"chunking"`
	Retrieval   RetrievalConfig   `json:"retrieval"`
	Generation  GenerationConfig  `json:"generation"`
	SourceStore SourceStoreConfig `json:"source_store"`
	Schedule    ScheduleConfig    `json:"schedule"`
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

// IndexConfig selects the vector search backend. The qdrant backend talks
// to a qdrant service over grpc; the naive backend scans vector rows in
// the database and needs no extra service.
type IndexConfig struct {
	Backend    string `json:"backend"`
	Addr       string `json:"addr"`
	Collection string `json:"collection"`
}

type AIConfig struct {
	Chat      []ProviderConfig `json:"chat"`
	Embedding []ProviderConfig `json:"embedding"`
	Dimension int              `json:"dimension"`
	// TimeoutSeconds bounds a single chat or embed call.
	TimeoutSeconds int     `json:"timeout_seconds"`
	MaxInputChars  int     `json:"max_input_chars"`
	EmbedBatchSize int     `json:"embed_batch_size"`
	EmbedRPS       float64 `json:"embed_rps"`
	EmbedBurst     int     `json:"embed_burst"`
}

// ProviderConfig names one provider in a fallback chain. Data carries the
// provider specific settings (api key, base url) decoded by the factory.
type ProviderConfig struct {
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Data     interface{} `json:"data"`
}

type CacheConfig struct {
	EmbedLRUSize      int  `json:"embed_lru_size"`
	EmbedLRUTTLMin    int  `json:"embed_lru_ttl_min"`
	EmbedDBEnabled    bool `json:"embed_db_enabled"`
	EmbedDBRetainDays int  `json:"embed_db_retain_days"`
	AnswerSize        int  `json:"answer_size"`
	AnswerTTLMin      int  `json:"answer_ttl_min"`
}

type ChunkingConfig struct {
	Size     int    `json:"size"`
	Overlap  int    `json:"overlap"`
	Strategy string `json:"strategy"`
}

type RetrievalConfig struct {
	TopK           int     `json:"top_k"`
	ScoreThreshold float32 `json:"score_threshold"`
}

type GenerationConfig struct {
	TokenBudget int `json:"token_budget"`
	// RateLimitSec throttles answer endpoints per client ip; 0 disables.
	RateLimitSec int `json:"rate_limit_sec"`
}

type SourceStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type ScheduleConfig struct {
	CacheCleanupCron string `json:"cache_cleanup_cron"`
	VectorAuditCron  string `json:"vector_audit_cron"`
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
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if len(cfg.AI.Chat) == 0 {
		return nil, fmt.Errorf("at least one ai.chat provider is required")
	}
	if len(cfg.AI.Embedding) == 0 {
		return nil, fmt.Errorf("at least one ai.embedding provider is required")
	}
	for i, p := range cfg.AI.Chat {
		if p.Provider == "" || p.Model == "" {
			return nil, fmt.Errorf("ai.chat[%d] provider and model are required", i)
		}
	}
	for i, p := range cfg.AI.Embedding {
		if p.Provider == "" || p.Model == "" {
			return nil, fmt.Errorf("ai.embedding[%d] provider and model are required", i)
		}
	}
	applyDefaults(&cfg)
	switch cfg.Index.Backend {
	case "qdrant":
		if cfg.Index.Addr == "" {
			return nil, fmt.Errorf("index.addr is required for the qdrant backend")
		}
	case "naive":
	default:
		return nil, fmt.Errorf("index.backend must be qdrant or naive")
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Index.Backend == "" {
		cfg.Index.Backend = "naive"
	}
	if cfg.Index.Collection == "" {
		cfg.Index.Collection = "unichat_chunks"
	}
	if cfg.AI.Dimension == 0 {
		cfg.AI.Dimension = 768
	}
	if cfg.AI.TimeoutSeconds == 0 {
		cfg.AI.TimeoutSeconds = 120
	}
	if cfg.AI.EmbedBatchSize == 0 {
		cfg.AI.EmbedBatchSize = 64
	}
	if cfg.Cache.EmbedLRUSize == 0 {
		cfg.Cache.EmbedLRUSize = 4096
	}
	if cfg.Cache.EmbedLRUTTLMin == 0 {
		cfg.Cache.EmbedLRUTTLMin = 60
	}
	if cfg.Cache.EmbedDBRetainDays == 0 {
		cfg.Cache.EmbedDBRetainDays = 30
	}
	if cfg.Cache.AnswerSize == 0 {
		cfg.Cache.AnswerSize = 256
	}
	if cfg.Cache.AnswerTTLMin == 0 {
		cfg.Cache.AnswerTTLMin = 30
	}
	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = 512
	}
	if cfg.Chunking.Overlap == 0 {
		cfg.Chunking.Overlap = 50
	}
	if cfg.Chunking.Strategy == "" {
		cfg.Chunking.Strategy = "fixed"
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.ScoreThreshold == 0 {
		cfg.Retrieval.ScoreThreshold = 0.35
	}
	if cfg.Generation.TokenBudget == 0 {
		cfg.Generation.TokenBudget = 2000
	}
	if cfg.Schedule.CacheCleanupCron == "" {
		cfg.Schedule.CacheCleanupCron = "0 3 * * *"
	}
	if cfg.Schedule.VectorAuditCron == "" {
		cfg.Schedule.VectorAuditCron = "30 3 * * *"
	}
}
