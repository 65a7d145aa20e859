package providers

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"

	"github.com/companionlabs/memgraph/internal/knowledge"
)

// EmbeddingCache stores embeddings keyed by content hash. Cache failures are
// never fatal: a miss or a failed put just means another provider call.
type EmbeddingCache interface {
	Get(ctx context.Context, key string) ([]float32, bool)
	Put(ctx context.Context, key string, embedding []float32)
}

// ContentHash returns the cache key for a text under a provider/model pair.
func ContentHash(provider, model, text string) string {
	h := sha256.Sum256([]byte(provider + "\x00" + model + "\x00" + text))
	return fmt.Sprintf("%x", h[:16])
}

// CachedEmbedder wraps an Embedder with a cache. Repeated ingests of the
// same text (the dedup path) skip the provider round trip entirely.
type CachedEmbedder struct {
	inner knowledge.Embedder
	cache EmbeddingCache
}

func NewCachedEmbedder(inner knowledge.Embedder, cache EmbeddingCache) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: cache}
}

func (c *CachedEmbedder) Name() string  { return c.inner.Name() }
func (c *CachedEmbedder) Model() string { return c.inner.Model() }

func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int

	for i, text := range texts {
		key := ContentHash(c.inner.Name(), c.inner.Model(), text)
		if emb, ok := c.cache.Get(ctx, key); ok {
			out[i] = emb
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return out, nil
	}

	fresh, err := c.inner.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missing) {
		return nil, fmt.Errorf("provider returned %d embeddings for %d texts", len(fresh), len(missing))
	}

	for j, emb := range fresh {
		i := missingIdx[j]
		out[i] = emb
		c.cache.Put(ctx, ContentHash(c.inner.Name(), c.inner.Model(), texts[i]), emb)
	}
	return out, nil
}

// --- in-process LRU cache ---

// LRUCache is a fixed-size in-process embedding cache.
type LRUCache struct {
	cache *lru.Cache[string, []float32]
}

func NewLRUCache(size int) (*LRUCache, error) {
	if size <= 0 {
		size = 2048
	}
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &LRUCache{cache: c}, nil
}

func (c *LRUCache) Get(_ context.Context, key string) ([]float32, bool) {
	return c.cache.Get(key)
}

func (c *LRUCache) Put(_ context.Context, key string, embedding []float32) {
	c.cache.Add(key, embedding)
}

// --- Redis cache ---

// RedisCache shares embeddings across instances in managed deployments.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(addr string, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RedisCache{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.client.Get(ctx, "memgraph:emb:"+key).Bytes()
	if err != nil {
		return nil, false
	}
	var emb []float32
	if err := json.Unmarshal(data, &emb); err != nil {
		return nil, false
	}
	return emb, true
}

func (c *RedisCache) Put(ctx context.Context, key string, embedding []float32) {
	data, err := json.Marshal(embedding)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, "memgraph:emb:"+key, data, c.ttl).Err(); err != nil {
		slog.Debug("embedding cache put failed", "error", err)
	}
}

func (c *RedisCache) Close() error { return c.client.Close() }
