// Package respcache decorates a completion backend with the persistent completion cache.
package respcache

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/memrag/internal/domain"
)

// store is the consumer interface for the completion cache.
// *cache.Namespace[string] satisfies it.
type store interface {
	Get(key string) (string, bool)
	Put(key string, v string)
	Flush(ctx context.Context) error
}

// CachedCompleter serves completions keyed by the exact user prompt.
// The system message is not part of the key, so a cached answer is reused
// even when the conversation context differs.
type CachedCompleter struct {
	inner  domain.Completer
	store  store
	logger *zap.Logger
}

// New creates a caching decorator. New entries are flushed immediately.
func New(inner domain.Completer, s store, logger *zap.Logger) *CachedCompleter {
	return &CachedCompleter{inner: inner, store: s, logger: logger}
}

// Complete returns the cached text for user or calls the inner completer.
// Cached results report zero tokens.
func (c *CachedCompleter) Complete(ctx context.Context, system, user string) (domain.CompletionResult, error) {
	if text, ok := c.store.Get(user); ok {
		return domain.CompletionResult{Text: text}, nil
	}

	res, err := c.inner.Complete(ctx, system, user)
	if err != nil {
		return domain.CompletionResult{}, err //nolint:wrapcheck // transparent decorator, the caller wraps
	}

	c.store.Put(user, res.Text)
	if err := c.store.Flush(ctx); err != nil {
		c.logger.Warn("Failed to persist completion cache", zap.Error(err))
	}
	return res, nil
}

// HealthCheck delegates to the inner completer when it supports health checks.
func (c *CachedCompleter) HealthCheck(ctx context.Context) error {
	if hc, ok := c.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}
