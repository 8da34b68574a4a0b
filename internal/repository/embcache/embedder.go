// Package embcache decorates an embedding backend with the persistent embedding cache.
package embcache

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/memrag/internal/domain"
)

// store is the consumer interface for the embedding cache (ISP).
// *cache.Namespace[[]float32] satisfies it.
type store interface {
	Get(key string) ([]float32, bool)
	Put(key string, v []float32)
	Flush(ctx context.Context) error
}

// Option configures a CachedEmbedder.
type Option func(*CachedEmbedder)

// WithWriteThrough flushes the cache after every call that produced new entries.
// Query-time callers use it; bulk ingestion flushes once at the end instead.
func WithWriteThrough() Option {
	return func(c *CachedEmbedder) { c.writeThrough = true }
}

// CachedEmbedder serves embeddings from the cache and sends only misses to the inner embedder.
// Keys are the exact text, so any instruction prefix applied outside this layer is not part of the key.
type CachedEmbedder struct {
	inner        domain.Embedder
	store        store
	writeThrough bool
	logger       *zap.Logger
}

// New creates a caching decorator.
func New(inner domain.Embedder, s store, logger *zap.Logger, opts ...Option) *CachedEmbedder {
	c := &CachedEmbedder{
		inner:  inner,
		store:  s,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Embed returns a cached embedding or calls the inner embedder.
// Cache hit: TotalTokens = 0 (no real tokens consumed).
// Cache miss: full EmbeddingResult from inner.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if vec, ok := c.store.Get(text); ok {
		return domain.EmbeddingResult{Embedding: vec}, nil
	}

	result, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}

	c.store.Put(text, result.Embedding)
	c.persist(ctx)
	return result, nil
}

// BatchEmbed returns vectors in input order. Texts already cached are served locally,
// the remaining distinct texts go to the inner embedder in one call.
func (c *CachedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	embeddings := make([][]float32, len(texts))
	missIdx := make(map[string][]int)
	var misses []string

	for i, text := range texts {
		if vec, ok := c.store.Get(text); ok {
			embeddings[i] = vec
			continue
		}
		if _, seen := missIdx[text]; !seen {
			misses = append(misses, text)
		}
		missIdx[text] = append(missIdx[text], i)
	}

	if len(misses) == 0 {
		return domain.BatchEmbeddingResult{Embeddings: embeddings}, nil
	}

	c.logger.Debug("Embedding cache misses",
		zap.Int("texts", len(texts)),
		zap.Int("misses", len(misses)),
	)

	res, err := domain.BatchOf(ctx, c.inner, misses)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed misses: %w", err)
	}
	if len(res.Embeddings) != len(misses) {
		return domain.BatchEmbeddingResult{}, fmt.Errorf(
			"%w: got %d embeddings for %d texts",
			domain.ErrEmbeddingProviderError, len(res.Embeddings), len(misses),
		)
	}

	for j, text := range misses {
		vec := res.Embeddings[j]
		c.store.Put(text, vec)
		for _, i := range missIdx[text] {
			embeddings[i] = vec
		}
	}
	c.persist(ctx)

	return domain.BatchEmbeddingResult{
		Embeddings:   embeddings,
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

// HealthCheck delegates to the inner embedder when it supports health checks.
func (c *CachedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := c.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}

func (c *CachedEmbedder) persist(ctx context.Context) {
	if !c.writeThrough {
		return
	}
	if err := c.store.Flush(ctx); err != nil {
		c.logger.Warn("Failed to persist embedding cache", zap.Error(err))
	}
}
