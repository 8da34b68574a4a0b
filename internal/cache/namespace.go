// Package cache holds the persistent key/value caches for embeddings and completions.
//
// Keys are the exact input text (or the exact prompt). Entries are never evicted.
// A Namespace is not safe for concurrent use: the process is expected to have a single
// writer, and hosts that serve concurrent requests must serialize access themselves.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/memrag/internal/domain"
)

// Snapshot exposes the entries of a namespace to a Backend during Flush.
// Values are JSON-encoded on demand so a backend only pays for what it writes.
type Snapshot interface {
	All() (map[string]json.RawMessage, error)
	Pending() (map[string]json.RawMessage, error)
}

// Backend persists a single namespace.
type Backend interface {
	// Load returns every stored entry. A store that cannot be parsed must return
	// an error wrapping domain.ErrCorruptCache.
	Load(ctx context.Context) (map[string]json.RawMessage, error)
	Save(ctx context.Context, snap Snapshot) error
	// Clear removes every stored entry.
	Clear(ctx context.Context) error
}

// Namespace is an in-memory map of V backed by a durable Backend.
type Namespace[V any] struct {
	name    string
	backend Backend
	entries map[string]V
	pending map[string]struct{}
	total   *prometheus.CounterVec
	logger  *zap.Logger
}

// NewNamespace creates an empty namespace. Call Load to populate it from the backend.
// total is a counter vec with labels "namespace" and "result" and may be nil.
func NewNamespace[V any](name string, backend Backend, total *prometheus.CounterVec, logger *zap.Logger) *Namespace[V] {
	return &Namespace[V]{
		name:    name,
		backend: backend,
		entries: make(map[string]V),
		pending: make(map[string]struct{}),
		total:   total,
		logger:  logger,
	}
}

// Name returns the namespace name.
func (n *Namespace[V]) Name() string { return n.name }

// Get returns the cached value for key.
func (n *Namespace[V]) Get(key string) (V, bool) {
	v, ok := n.entries[key]
	if ok {
		n.inc("hit")
	} else {
		n.inc("miss")
	}
	return v, ok
}

// Put stores a value in memory and marks it pending until the next Flush.
func (n *Namespace[V]) Put(key string, v V) {
	n.entries[key] = v
	n.pending[key] = struct{}{}
}

// Len returns the number of entries held in memory.
func (n *Namespace[V]) Len() int { return len(n.entries) }

// PendingLen returns the number of entries written since the last Flush.
func (n *Namespace[V]) PendingLen() int { return len(n.pending) }

// Load replaces the in-memory map with the backend contents.
// A corrupt store resets the namespace to empty and logs a warning instead of failing.
func (n *Namespace[V]) Load(ctx context.Context) error {
	raw, err := n.backend.Load(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrCorruptCache) {
			n.logger.Warn("Cache store is corrupt, starting empty",
				zap.String("namespace", n.name),
				zap.Error(err),
			)
			n.reset()
			return nil
		}
		return fmt.Errorf("load %s cache: %w", n.name, err)
	}

	n.reset()
	var skipped int
	for key, data := range raw {
		var v V
		if err := json.Unmarshal(data, &v); err != nil {
			skipped++
			continue
		}
		n.entries[key] = v
	}
	if skipped > 0 {
		n.logger.Warn("Skipped unparseable cache entries",
			zap.String("namespace", n.name),
			zap.Int("skipped", skipped),
		)
	}

	n.logger.Debug("Cache loaded",
		zap.String("namespace", n.name),
		zap.Int("entries", len(n.entries)),
	)
	return nil
}

// Flush persists pending entries. It is a no-op when nothing changed.
func (n *Namespace[V]) Flush(ctx context.Context) error {
	if len(n.pending) == 0 {
		return nil
	}
	if err := n.backend.Save(ctx, snapshot[V]{ns: n}); err != nil {
		return fmt.Errorf("flush %s cache: %w", n.name, err)
	}
	n.logger.Debug("Cache flushed",
		zap.String("namespace", n.name),
		zap.Int("written", len(n.pending)),
		zap.Int("entries", len(n.entries)),
	)
	n.pending = make(map[string]struct{})
	return nil
}

// Clear drops every entry in memory and in the backend.
func (n *Namespace[V]) Clear(ctx context.Context) error {
	if err := n.backend.Clear(ctx); err != nil {
		return fmt.Errorf("clear %s cache: %w", n.name, err)
	}
	n.logger.Info("Cache cleared", zap.String("namespace", n.name), zap.Int("entries", len(n.entries)))
	n.reset()
	return nil
}

func (n *Namespace[V]) reset() {
	n.entries = make(map[string]V)
	n.pending = make(map[string]struct{})
}

func (n *Namespace[V]) inc(result string) {
	if n.total != nil {
		n.total.WithLabelValues(n.name, result).Inc()
	}
}

type snapshot[V any] struct {
	ns *Namespace[V]
}

func (s snapshot[V]) All() (map[string]json.RawMessage, error) {
	keys := make([]string, 0, len(s.ns.entries))
	for k := range s.ns.entries {
		keys = append(keys, k)
	}
	return encode(s.ns.entries, keys)
}

func (s snapshot[V]) Pending() (map[string]json.RawMessage, error) {
	keys := make([]string, 0, len(s.ns.pending))
	for k := range s.ns.pending {
		keys = append(keys, k)
	}
	return encode(s.ns.entries, keys)
}

func encode[V any](entries map[string]V, keys []string) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(keys))
	for _, k := range keys {
		data, err := json.Marshal(entries[k])
		if err != nil {
			return nil, fmt.Errorf("encode entry: %w", err)
		}
		out[k] = data
	}
	return out, nil
}
