// Package config loads and watches the mnemo configuration. Configuration is
// YAML with environment-variable overrides; a missing file means defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all mnemo configuration.
type Config struct {
	// Tier sizing and promotion
	Tiers TiersConfig `yaml:"tiers"`

	// Allocation thresholds for the context analyzer
	Allocation AllocationConfig `yaml:"allocation"`

	// Hybrid retrieval tuning
	Search SearchConfig `yaml:"search"`

	// Embedding provider
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Persistent store
	Database DatabaseConfig `yaml:"database"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// TiersConfig sizes the four tiers and tunes promotion.
type TiersConfig struct {
	HotCapacityBytes     int64 `yaml:"hot_capacity_bytes"`
	WarmWindow           int   `yaml:"warm_window"`
	ArchiveRatio         int   `yaml:"archive_ratio"`
	MaxCompressionRatio  int   `yaml:"max_compression_ratio"`
	PromotionAccessCount int   `yaml:"promotion_access_count"`
}

// AllocationConfig holds the analyzer's placement thresholds.
type AllocationConfig struct {
	RelevanceHigh      float64 `yaml:"relevance_high"`
	PromotionThreshold float64 `yaml:"promotion_threshold"`
	ComplexityHot      float64 `yaml:"complexity_hot"`
	AccessCountHot     int     `yaml:"access_count_hot"`
}

// SearchConfig tunes hybrid retrieval.
type SearchConfig struct {
	TopK         int     `yaml:"top_k"`
	MinRelevance float64 `yaml:"min_relevance"`
	ContextBoost float64 `yaml:"context_boost"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	Endpoint   string `yaml:"endpoint"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	CacheSize  int    `yaml:"cache_size"`
}

// DatabaseConfig configures the persistent store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Directory  string   `yaml:"directory"`
	Level      string   `yaml:"level"`  // debug, info, warn, error
	Format     string   `yaml:"format"` // json, text
	Debug      bool     `yaml:"debug"`
	Categories []string `yaml:"categories"` // empty enables all
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Tiers: TiersConfig{
			HotCapacityBytes:     1 << 20,
			WarmWindow:           128,
			ArchiveRatio:         4,
			MaxCompressionRatio:  16,
			PromotionAccessCount: 5,
		},
		Allocation: AllocationConfig{
			RelevanceHigh:      0.2,
			PromotionThreshold: 0.5,
			ComplexityHot:      0.7,
			AccessCountHot:     5,
		},
		Search: SearchConfig{
			TopK:         10,
			MinRelevance: 0.2,
			ContextBoost: 0.3,
		},
		Embedding: EmbeddingConfig{
			Endpoint:   "http://localhost:11434",
			Model:      "embeddinggemma",
			Dimensions: 768,
			CacheSize:  1024,
		},
		Database: DatabaseConfig{
			Path: "data/mnemo.db",
		},
		Logging: LoggingConfig{
			Directory: "logs",
			Level:     "info",
			Format:    "text",
		},
	}
}

// Load loads configuration from a YAML file. A missing file returns defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate rejects configurations that would misbehave at runtime.
func (c *Config) Validate() error {
	if c.Tiers.HotCapacityBytes < 0 {
		return fmt.Errorf("tiers.hot_capacity_bytes must be >= 0, got %d", c.Tiers.HotCapacityBytes)
	}
	if c.Tiers.WarmWindow <= 0 {
		return fmt.Errorf("tiers.warm_window must be > 0, got %d", c.Tiers.WarmWindow)
	}
	if c.Tiers.ArchiveRatio <= 0 {
		return fmt.Errorf("tiers.archive_ratio must be > 0, got %d", c.Tiers.ArchiveRatio)
	}
	if c.Allocation.PromotionThreshold < c.Allocation.RelevanceHigh {
		return fmt.Errorf("allocation.promotion_threshold (%.2f) must be >= allocation.relevance_high (%.2f)",
			c.Allocation.PromotionThreshold, c.Allocation.RelevanceHigh)
	}
	if c.Search.ContextBoost < 0 || c.Search.ContextBoost > 1 {
		return fmt.Errorf("search.context_boost must be in [0,1], got %.2f", c.Search.ContextBoost)
	}
	return nil
}

// applyEnvOverrides lets MNEMO_* environment variables override the file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MNEMO_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("MNEMO_EMBED_ENDPOINT"); v != "" {
		c.Embedding.Endpoint = v
	}
	if v := os.Getenv("MNEMO_EMBED_MODEL"); v != "" {
		c.Embedding.Model = v
	}
	if v := os.Getenv("MNEMO_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("MNEMO_LOG_DIR"); v != "" {
		c.Logging.Directory = v
	}
	if v := os.Getenv("MNEMO_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Logging.Debug = b
		}
	}
	if v := os.Getenv("MNEMO_HOT_CAPACITY"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			c.Tiers.HotCapacityBytes = n
		}
	}
	if v := os.Getenv("MNEMO_WARM_WINDOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Tiers.WarmWindow = n
		}
	}
}
