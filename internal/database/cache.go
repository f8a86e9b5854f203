package database

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	"github.com/zombar/aidetector/internal/llm"
)

// EmbeddingKey derives the cache key for an embedding of text by model
func EmbeddingKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + ":" + text))
	return hex.EncodeToString(sum[:])
}

// CachedProvider serves repeated embedding requests from the cache.
// Cache failures are logged and never fail the call.
type CachedProvider struct {
	llm.Provider
	db *DB
}

// NewCachedProvider wraps p with the embedding cache in db
func NewCachedProvider(p llm.Provider, db *DB) *CachedProvider {
	return &CachedProvider{Provider: p, db: db}
}

// CacheFactory wraps every provider built by f with the embedding cache
func CacheFactory(f llm.Factory, db *DB) llm.Factory {
	return func(apiKey string) (llm.Provider, error) {
		p, err := f(apiKey)
		if err != nil {
			return nil, err
		}
		return NewCachedProvider(p, db), nil
	}
}

// Embed returns the cached vector when present, otherwise calls the provider and stores the result
func (c *CachedProvider) Embed(ctx context.Context, model, input string) ([]float64, error) {
	key := EmbeddingKey(model, input)

	vector, ok, err := c.db.GetEmbedding(ctx, key)
	if err != nil {
		slog.Warn("embedding cache lookup failed", "error", err)
	} else if ok {
		slog.Debug("embedding cache hit", "model", model, "dimensions", len(vector))
		return vector, nil
	}

	vector, err = c.Provider.Embed(ctx, model, input)
	if err != nil {
		return nil, err
	}

	if err := c.db.SaveEmbedding(ctx, key, model, vector); err != nil {
		slog.Warn("embedding cache store failed", "error", err)
	}

	return vector, nil
}
