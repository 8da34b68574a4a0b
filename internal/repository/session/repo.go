// Package session persists conversation histories as one JSON file per session.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/kailas-cloud/memrag/internal/domain"
	"github.com/kailas-cloud/memrag/internal/fsutil"
)

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// Repo stores sessions under dir as <id>.json.
type Repo struct {
	dir string
}

// NewRepo creates a repository rooted at dir.
func NewRepo(dir string) *Repo {
	return &Repo{dir: dir}
}

func (r *Repo) path(id string) (string, error) {
	if !validID.MatchString(id) {
		return "", fmt.Errorf("%q: %w", id, domain.ErrInvalidSessionID)
	}
	return filepath.Join(r.dir, id+".json"), nil
}

// Get returns the stored history. A missing session returns ErrSessionNotFound.
func (r *Repo) Get(id string) ([]domain.Turn, error) {
	path, err := r.path(id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
		}
		return nil, fmt.Errorf("read session %s: %w", id, err)
	}

	var turns []domain.Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	for i, t := range turns {
		if !t.Role.Valid() {
			return nil, fmt.Errorf("session %s turn %d: unknown role %q", id, i, t.Role)
		}
	}
	return turns, nil
}

// Save replaces the stored history atomically.
func (r *Repo) Save(id string, turns []domain.Turn) error {
	path, err := r.path(id)
	if err != nil {
		return err
	}
	if turns == nil {
		turns = []domain.Turn{}
	}
	data, err := json.MarshalIndent(turns, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session %s: %w", id, err)
	}
	if err := fsutil.WriteFile(path, data); err != nil {
		return fmt.Errorf("save session %s: %w", id, err)
	}
	return nil
}

// Delete removes a session. A missing session returns ErrSessionNotFound.
func (r *Repo) Delete(id string) error {
	path, err := r.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
		}
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// List returns stored session ids in lexical order.
func (r *Repo) List() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if id, ok := strings.CutSuffix(e.Name(), ".json"); ok && validID.MatchString(id) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
