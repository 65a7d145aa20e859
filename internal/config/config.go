// Package config loads the memgraph configuration file and watches it for
// changes. The file is JSON5 so deployments can keep comments in it.
package config

import (
	"fmt"
	"os"

	"github.com/titanous/json5"
)

// Config is the full memgraph configuration.
type Config struct {
	Database  DatabaseConfig  `json:"database"`
	Embedding EmbeddingConfig `json:"embedding"`
	Graph     GraphConfig     `json:"graph"`
}

// DatabaseConfig selects the storage backend.
// Mode "managed" uses Postgres + pgvector; anything else is standalone SQLite.
type DatabaseConfig struct {
	Mode        string `json:"mode"`
	PostgresDSN string `json:"postgresDsn"`
	SQLitePath  string `json:"sqlitePath"`
}

// EmbeddingConfig configures the embedding provider and the caches in front
// of it. RedisAddr empty means the in-process LRU cache only.
type EmbeddingConfig struct {
	Provider  string `json:"provider"`
	APIKey    string `json:"apiKey"`
	APIBase   string `json:"apiBase"`
	Model     string `json:"model"`
	Dims      int    `json:"dims"`
	CacheSize int    `json:"cacheSize"`
	RedisAddr string `json:"redisAddr"`
}

// GraphConfig tunes edge building and graph queries.
type GraphConfig struct {
	SimilarityThreshold float64 `json:"similarityThreshold"`
	TopK                int     `json:"topK"`
	MinEdgeScore        float64 `json:"minEdgeScore"`
}

// Defaults returns a config with every tunable at its default value.
func Defaults() *Config {
	return &Config{
		Database: DatabaseConfig{
			Mode:       "standalone",
			SQLitePath: "memgraph.db",
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-ada-002",
			Dims:      1536,
			CacheSize: 2048,
		},
		Graph: GraphConfig{
			SimilarityThreshold: 0.8,
			TopK:                5,
			MinEdgeScore:        0.75,
		},
	}
}

// Load reads the config file at path, applies environment overrides, and
// validates the result. A missing file is not an error: defaults plus env
// overrides are enough for standalone mode.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := json5.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets deployments keep secrets out of the config file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MEMGRAPH_DB_MODE"); v != "" {
		cfg.Database.Mode = v
	}
	if v := os.Getenv("MEMGRAPH_POSTGRES_DSN"); v != "" {
		cfg.Database.PostgresDSN = v
	}
	if v := os.Getenv("MEMGRAPH_SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("MEMGRAPH_EMBED_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	} else if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("MEMGRAPH_EMBED_API_BASE"); v != "" {
		cfg.Embedding.APIBase = v
	}
	if v := os.Getenv("MEMGRAPH_REDIS_ADDR"); v != "" {
		cfg.Embedding.RedisAddr = v
	}
}

func (c *Config) validate() error {
	if c.Database.Mode == "managed" && c.Database.PostgresDSN == "" {
		return fmt.Errorf("database.mode is managed but database.postgresDsn is empty")
	}
	if c.Embedding.Dims <= 0 {
		return fmt.Errorf("embedding.dims must be positive, got %d", c.Embedding.Dims)
	}
	if c.Graph.SimilarityThreshold < -1 || c.Graph.SimilarityThreshold > 1 {
		return fmt.Errorf("graph.similarityThreshold must be in [-1, 1], got %v", c.Graph.SimilarityThreshold)
	}
	if c.Graph.TopK <= 0 {
		return fmt.Errorf("graph.topK must be positive, got %d", c.Graph.TopK)
	}
	return nil
}
