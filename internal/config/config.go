package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port             int              `json:"port"`
	LogConfig        logger.LogConfig `json:"log_config"`
	CORSAllowOrigins []string         `json:"cors_allow_origins"`
	RateLimitSeconds int              `json:"rate_limit_seconds"`
	Cache            CacheConfig      `json:"cache"`
	Embedding        EmbeddingConfig  `json:"embedding"`
	Image            ImageConfig      `json:"image"`
}

type CacheConfig struct {
	BaseDir             string           `json:"base_dir"`
	SimilarityThreshold float32          `json:"similarity_threshold"`
	EmbedLRUSize        int              `json:"embed_lru_size"`
	EmbedLRUTTLMinutes  int              `json:"embed_lru_ttl_minutes"`
	Store               AssetStoreConfig `json:"store"`
}

type AssetStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type ProviderConfig struct {
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Args     interface{} `json:"args"`
}

type EmbeddingConfig struct {
	Providers      []ProviderConfig `json:"providers"`
	TimeoutSeconds int              `json:"timeout_seconds"`
}

type ImageConfig struct {
	Providers      []ProviderConfig `json:"providers"`
	TimeoutSeconds int              `json:"timeout_seconds"`
	StyleSuffix    string           `json:"style_suffix"`
	NegativePrompt string           `json:"negative_prompt"`
	MaxInputChars  int              `json:"max_input_chars"`
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
	if cfg.Cache.BaseDir == "" {
		return nil, fmt.Errorf("cache.base_dir is required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Cache.SimilarityThreshold == 0 {
		cfg.Cache.SimilarityThreshold = 0.85
	}
	if cfg.Cache.SimilarityThreshold < 0 || cfg.Cache.SimilarityThreshold > 1 {
		return nil, fmt.Errorf("cache.similarity_threshold must be within (0, 1]")
	}
	if cfg.Cache.EmbedLRUSize == 0 {
		cfg.Cache.EmbedLRUSize = 1024
	}
	if cfg.Cache.EmbedLRUTTLMinutes == 0 {
		cfg.Cache.EmbedLRUTTLMinutes = 120
	}
	if cfg.Cache.Store.Type == "" {
		cfg.Cache.Store.Type = "local"
	}
	switch cfg.Cache.Store.Type {
	case "local":
		if cfg.Cache.Store.Data == nil {
			cfg.Cache.Store.Data = map[string]interface{}{"dir": cfg.Cache.BaseDir}
		}
	default:
		return nil, fmt.Errorf("cache.store.type must be local")
	}
	if len(cfg.Embedding.Providers) == 0 {
		cfg.Embedding.Providers = []ProviderConfig{{Provider: "openai", Model: "text-embedding-3-small"}}
	}
	if cfg.Embedding.TimeoutSeconds == 0 {
		cfg.Embedding.TimeoutSeconds = 15
	}
	if len(cfg.Image.Providers) == 0 {
		cfg.Image.Providers = []ProviderConfig{{Provider: "freepik"}}
	}
	if cfg.Image.TimeoutSeconds == 0 {
		cfg.Image.TimeoutSeconds = 30
	}
	return &cfg, nil
}
