package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"
)

// EmbeddingCache stores embeddings by key across processes.
type EmbeddingCache interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, value []float32) error
	Close() error
}

// RedisEmbeddingCache is an EmbeddingCache backed by Redis.
type RedisEmbeddingCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisEmbeddingCache builds a cache with the given addr/password/db.
func NewRedisEmbeddingCache(addr, password string, db int, ttl time.Duration, prefix string) (*RedisEmbeddingCache, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if ttl <= 0 {
		ttl = 240 * time.Hour
	}
	if prefix == "" {
		prefix = "emb"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisEmbeddingCache{
		client: client,
		ttl:    ttl,
		prefix: prefix,
	}, nil
}

func (c *RedisEmbeddingCache) key(k string) string {
	return fmt.Sprintf("%s:%s", c.prefix, k)
}

// Get returns the cached vector for key, if present.
func (c *RedisEmbeddingCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var out []float32
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// Set stores value under key with the cache TTL.
func (c *RedisEmbeddingCache) Set(ctx context.Context, key string, value []float32) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(key), data, c.ttl).Err()
}

// Close closes the Redis connection.
func (c *RedisEmbeddingCache) Close() error {
	return c.client.Close()
}

// CachedEmbedder serves embeddings from an EmbeddingCache and only sends
// misses to the wrapped Embedder. Cache failures degrade to misses.
type CachedEmbedder struct {
	inner  Embedder
	cache  EmbeddingCache
	logger *slog.Logger
}

// NewCachedEmbedder wraps inner with cache.
func NewCachedEmbedder(inner Embedder, cache EmbeddingCache, logger *slog.Logger) *CachedEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedEmbedder{
		inner:  inner,
		cache:  cache,
		logger: logger.With(slog.String("module", "embedding_cache")),
	}
}

// GetModel returns the wrapped model identifier
func (c *CachedEmbedder) GetModel() string {
	return c.inner.GetModel()
}

// GetDimension returns the wrapped embedding dimension
func (c *CachedEmbedder) GetDimension() int {
	return c.inner.GetDimension()
}

// CacheKey derives the cache key for text under model.
func CacheKey(model, text string) string {
	return fmt.Sprintf("%s:%016x", model, xxhash.Sum64String(model+"\x00"+text))
}

// Embed returns embeddings for texts, in input order.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([]EmbeddingRecord, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyTexts
	}

	model := c.inner.GetModel()
	records := make([]EmbeddingRecord, len(texts))
	var missTexts []string
	var missIdx []int

	for i, text := range texts {
		vec, ok, err := c.cache.Get(ctx, CacheKey(model, text))
		if err != nil {
			c.logger.Warn("cache read failed", slog.String("error", err.Error()))
		}
		if ok {
			records[i] = EmbeddingRecord{Text: text, Embedding: vec, Index: i, Model: model}
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	c.logger.Debug("embedding lookup",
		slog.Int("hits", len(texts)-len(missTexts)),
		slog.Int("misses", len(missTexts)))

	if len(missTexts) == 0 {
		return records, nil
	}

	fresh, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	for j, rec := range fresh {
		i := missIdx[j]
		rec.Index = i
		records[i] = rec
		if err := c.cache.Set(ctx, CacheKey(model, rec.Text), rec.Embedding); err != nil {
			c.logger.Warn("cache write failed", slog.String("error", err.Error()))
		}
	}

	return records, nil
}
