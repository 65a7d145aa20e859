package cmd

import (
	"fmt"
	"os"

	"github.com/companionlabs/memgraph/internal/config"
	"github.com/companionlabs/memgraph/internal/knowledge"
	"github.com/companionlabs/memgraph/internal/providers"
	"github.com/companionlabs/memgraph/internal/store"
)

// loadConfig loads the resolved config file or exits with an error.
func loadConfig() *config.Config {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %s\n", err)
		os.Exit(1)
	}
	return cfg
}

// resolveOwner normalizes a user-provided owner name and checks the result
// against the store's length constraint.
func resolveOwner(arg string) string {
	owner := config.NormalizeOwnerID(arg)
	if err := store.ValidateOwnerID(owner); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid owner %q: %s\n", arg, err)
		os.Exit(1)
	}
	return owner
}

// openService wires up the store, embedding provider, and knowledge service
// from the config. The caller must Close the returned store.
func openService(cfg *config.Config) (*knowledge.Service, knowledge.Store, error) {
	st, err := store.Open(store.Config{
		PostgresDSN:   cfg.Database.PostgresDSN,
		Mode:          cfg.Database.Mode,
		SQLitePath:    cfg.Database.SQLitePath,
		EmbeddingDims: cfg.Embedding.Dims,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	svc := knowledge.NewService(st, embedder, knowledge.Config{
		SimilarityThreshold: cfg.Graph.SimilarityThreshold,
		TopK:                cfg.Graph.TopK,
		MinEdgeScore:        cfg.Graph.MinEdgeScore,
	})
	return svc, st, nil
}

func buildEmbedder(cfg *config.Config) (knowledge.Embedder, error) {
	provider := providers.NewOpenAIEmbedding(
		cfg.Embedding.Provider, cfg.Embedding.APIKey,
		cfg.Embedding.APIBase, cfg.Embedding.Model)

	var cache providers.EmbeddingCache
	if cfg.Embedding.RedisAddr != "" {
		cache = providers.NewRedisCache(cfg.Embedding.RedisAddr, 0)
	} else {
		lru, err := providers.NewLRUCache(cfg.Embedding.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("embedding cache: %w", err)
		}
		cache = lru
	}
	return providers.NewCachedEmbedder(provider, cache), nil
}
