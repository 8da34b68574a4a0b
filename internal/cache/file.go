package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kailas-cloud/memrag/internal/domain"
	"github.com/kailas-cloud/memrag/internal/fsutil"
)

// FileBackend keeps a namespace as one JSON object on disk.
// Every flush rewrites the whole file through a temp file and a rename.
type FileBackend struct {
	path string
}

// NewFileBackend creates a backend for the JSON file at path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Load reads the JSON map. A missing file is an empty cache.
func (b *FileBackend) Load(_ context.Context) (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(filepath.Clean(b.path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", b.path, err)
	}

	out := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse %s: %w: %w", b.path, domain.ErrCorruptCache, err)
	}
	return out, nil
}

// Save writes every entry of the snapshot.
func (b *FileBackend) Save(_ context.Context, snap Snapshot) error {
	all, err := snap.All()
	if err != nil {
		return err //nolint:wrapcheck // Namespace wraps
	}
	data, err := json.Marshal(all)
	if err != nil {
		return fmt.Errorf("encode %s: %w", b.path, err)
	}
	return fsutil.WriteFile(b.path, data) //nolint:wrapcheck // Namespace wraps
}

// Clear removes the file. A missing file is already clear.
func (b *FileBackend) Clear(_ context.Context) error {
	return fsutil.RemoveIfExists(b.path) //nolint:wrapcheck // Namespace wraps
}
