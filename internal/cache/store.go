package cache

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Namespace names.
const (
	EmbeddingsNamespace  = "embeddings"
	CompletionsNamespace = "completions"
)

// Store groups the two independent cache namespaces and drives their lifecycle.
type Store struct {
	Embeddings  *Namespace[[]float32]
	Completions *Namespace[string]
}

// New creates a Store over one backend per namespace.
func New(embeddings, completions Backend, total *prometheus.CounterVec, logger *zap.Logger) *Store {
	return &Store{
		Embeddings:  NewNamespace[[]float32](EmbeddingsNamespace, embeddings, total, logger),
		Completions: NewNamespace[string](CompletionsNamespace, completions, total, logger),
	}
}

// Load populates both namespaces.
func (s *Store) Load(ctx context.Context) error {
	return errors.Join(s.Embeddings.Load(ctx), s.Completions.Load(ctx))
}

// Flush persists pending entries of both namespaces.
func (s *Store) Flush(ctx context.Context) error {
	return errors.Join(s.Embeddings.Flush(ctx), s.Completions.Flush(ctx))
}

// Clear empties both namespaces, in memory and in their backends.
func (s *Store) Clear(ctx context.Context) error {
	return errors.Join(s.Embeddings.Clear(ctx), s.Completions.Clear(ctx))
}
