// Package fsutil holds crash-safe file writes shared by the on-disk stores.
package fsutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// WriteFile writes data next to path and renames it into place.
func WriteFile(path string, data []byte) error {
	var b Batch
	if err := b.Stage(path, data); err != nil {
		return err
	}
	return b.Commit()
}

// Batch stages several files in temp files and renames them into place together.
// Nothing is visible at the target paths until Commit. Abort removes staged files.
type Batch struct {
	staged []staged
}

type staged struct {
	tmp, path string
}

// Stage writes data to a temp file in the target directory.
func (b *Batch) Stage(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close %s: %w", tmpPath, err)
	}

	b.staged = append(b.staged, staged{tmp: tmpPath, path: path})
	return nil
}

// Commit renames every staged file into place in staging order.
func (b *Batch) Commit() error {
	for i, s := range b.staged {
		if err := os.Rename(s.tmp, s.path); err != nil {
			b.staged = b.staged[i:]
			b.Abort()
			return fmt.Errorf("rename %s: %w", s.path, err)
		}
	}
	b.staged = nil
	return nil
}

// Abort removes staged temp files that were not committed.
func (b *Batch) Abort() {
	for _, s := range b.staged {
		_ = os.Remove(s.tmp)
	}
	b.staged = nil
}

// RemoveIfExists removes path and ignores a missing file.
func RemoveIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}
