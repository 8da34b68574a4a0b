package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/memrag/internal/db"
)

// HashBackend keeps a namespace as one hash in a db.HashStore (Redis or SQLite).
// Only pending fields are written on flush.
type HashBackend struct {
	store db.HashStore
	key   string
}

// HashKey names the hash of a namespace: <prefix>cache:<namespace>.
func HashKey(prefix, namespace string) string {
	return prefix + "cache:" + namespace
}

// NewHashBackend creates a backend over the hash named key.
func NewHashBackend(store db.HashStore, key string) *HashBackend {
	return &HashBackend{store: store, key: key}
}

// Load reads every field of the hash.
func (b *HashBackend) Load(ctx context.Context) (map[string]json.RawMessage, error) {
	fields, err := b.store.HGetAll(ctx, b.key)
	if err != nil {
		return nil, fmt.Errorf("read hash %s: %w", b.key, err)
	}
	out := make(map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		out[k] = json.RawMessage(v)
	}
	return out, nil
}

// Save writes the pending entries of the snapshot.
func (b *HashBackend) Save(ctx context.Context, snap Snapshot) error {
	pending, err := snap.Pending()
	if err != nil {
		return err //nolint:wrapcheck // Namespace wraps
	}
	fields := make(map[string]string, len(pending))
	for k, v := range pending {
		fields[k] = string(v)
	}
	if err := b.store.HSet(ctx, b.key, fields); err != nil {
		return fmt.Errorf("write hash %s: %w", b.key, err)
	}
	return nil
}

// Clear deletes the hash.
func (b *HashBackend) Clear(ctx context.Context) error {
	if err := b.store.Del(ctx, b.key); err != nil {
		return fmt.Errorf("delete hash %s: %w", b.key, err)
	}
	return nil
}
