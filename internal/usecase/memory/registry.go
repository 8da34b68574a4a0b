package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/kailas-cloud/memrag/internal/domain"
)

// Registry holds one Memory per session id for the life of the process.
type Registry struct {
	mu       sync.Mutex
	deps     Deps
	sessions map[string]*Memory
}

// NewRegistry creates an empty registry.
func NewRegistry(d Deps) *Registry {
	return &Registry{deps: d, sessions: make(map[string]*Memory)}
}

// Open returns the loaded session for id, opening it on first use.
// An empty id always opens a new session.
func (r *Registry) Open(ctx context.Context, id string) (*Memory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.sessions[id]; ok && id != "" {
		return m, nil
	}
	m, err := Open(ctx, r.deps, id)
	if err != nil {
		return nil, err
	}
	r.sessions[m.SessionID()] = m
	return m, nil
}

// Delete removes the durable session and forgets any loaded instance.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.sessions[id]; ok {
		delete(r.sessions, id)
		return m.Delete(ctx)
	}
	if err := r.deps.Repo.Delete(id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// History returns the turns of a session without opening it.
// A session that was never created returns domain.ErrSessionNotFound.
func (r *Registry) History(id string) ([]domain.Turn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.sessions[id]; ok {
		return m.History(), nil
	}
	turns, err := r.deps.Repo.Get(id)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return turns, nil
}
