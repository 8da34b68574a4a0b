// Package memory keeps a per-session conversation history with semantic recall and compaction.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/memrag/internal/domain"
	"github.com/kailas-cloud/memrag/internal/vector"
)

const (
	// DefaultMaxHistory is the history length that triggers compaction when exceeded.
	DefaultMaxHistory = 10
	// compactTurns is the number of oldest turns folded into one summary.
	compactTurns = 4

	summaryPrompt = "Resuma a seguinte conversa em português, mantendo as informações essenciais:\n%s\nResumo:"
)

// Deps are the collaborators shared by every session.
type Deps struct {
	Embedder   Embedder
	Summarizer Summarizer
	Repo       Repository
	MaxHistory int
	Logger     *zap.Logger
}

// Memory is the history of one session. turns[i] and vecs[i] always describe the same turn.
// It is not safe for concurrent use.
type Memory struct {
	id    string
	turns []domain.Turn
	vecs  [][]float32
	deps  Deps
}

// NewSessionID returns a random id: a UUID in hex without dashes.
func NewSessionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Open loads the session, or creates and persists an empty one when it does not exist.
// An empty sessionID generates a new id. Turn embeddings are recomputed through d.Embedder.
func Open(ctx context.Context, d Deps, sessionID string) (*Memory, error) {
	if d.MaxHistory == 0 {
		d.MaxHistory = DefaultMaxHistory
	}
	if d.MaxHistory < compactTurns {
		return nil, fmt.Errorf("max history must be at least %d, got %d", compactTurns, d.MaxHistory)
	}
	if sessionID == "" {
		sessionID = NewSessionID()
	}

	m := &Memory{id: sessionID, deps: d}

	turns, err := d.Repo.Get(sessionID)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		if err := d.Repo.Save(sessionID, nil); err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		d.Logger.Debug("Session created", zap.String("session_id", sessionID))
		return m, nil
	case err != nil:
		return nil, fmt.Errorf("load session: %w", err)
	}

	if len(turns) > 0 {
		texts := make([]string, len(turns))
		for i, t := range turns {
			texts[i] = t.Content
		}
		res, err := domain.BatchOf(ctx, d.Embedder, texts)
		if err != nil {
			return nil, fmt.Errorf("embed session history: %w", err)
		}
		if len(res.Embeddings) != len(turns) {
			return nil, fmt.Errorf("got %d embeddings for %d turns: %w",
				len(res.Embeddings), len(turns), domain.ErrEmbeddingProviderError)
		}
		m.turns = turns
		m.vecs = res.Embeddings
	}

	d.Logger.Debug("Session loaded", zap.String("session_id", sessionID), zap.Int("turns", len(turns)))
	return m, nil
}

// SessionID returns the session id.
func (m *Memory) SessionID() string { return m.id }

// Len returns the number of turns.
func (m *Memory) Len() int { return len(m.turns) }

// History returns a copy of the turns in order.
func (m *Memory) History() []domain.Turn {
	out := make([]domain.Turn, len(m.turns))
	copy(out, m.turns)
	return out
}

// Add appends a turn, compacts when the history exceeds MaxHistory, and persists.
// A failed summary keeps the un-compacted history, persists it and returns the error.
func (m *Memory) Add(ctx context.Context, role domain.Role, content string) error {
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", role)
	}

	res, err := m.deps.Embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("embed turn: %w", err)
	}
	m.turns = append(m.turns, domain.Turn{Role: role, Content: content})
	m.vecs = append(m.vecs, res.Embedding)

	var compactErr error
	if len(m.turns) > m.deps.MaxHistory {
		compactErr = m.compact(ctx)
	}

	if err := m.deps.Repo.Save(m.id, m.turns); err != nil {
		return errors.Join(compactErr, fmt.Errorf("persist session: %w", err))
	}
	return compactErr
}

// compact replaces the oldest turns with a single system turn holding their summary.
func (m *Memory) compact(ctx context.Context) error {
	lines := make([]string, compactTurns)
	for i, t := range m.turns[:compactTurns] {
		lines[i] = fmt.Sprintf("%s: %s", t.Role, t.Content)
	}

	out, err := m.deps.Summarizer.Complete(ctx, "", fmt.Sprintf(summaryPrompt, strings.Join(lines, "\n")))
	if err != nil {
		m.deps.Logger.Warn("Session compaction failed", zap.String("session_id", m.id), zap.Error(err))
		return fmt.Errorf("summarize history: %w", err)
	}
	summary := strings.TrimSpace(out.Text)

	res, err := m.deps.Embedder.Embed(ctx, summary)
	if err != nil {
		m.deps.Logger.Warn("Session compaction failed", zap.String("session_id", m.id), zap.Error(err))
		return fmt.Errorf("embed summary: %w", err)
	}

	turns := make([]domain.Turn, 0, len(m.turns)-compactTurns+1)
	turns = append(turns, domain.Turn{Role: domain.RoleSystem, Content: summary})
	turns = append(turns, m.turns[compactTurns:]...)

	vecs := make([][]float32, 0, len(turns))
	vecs = append(vecs, res.Embedding)
	vecs = append(vecs, m.vecs[compactTurns:]...)

	m.turns, m.vecs = turns, vecs
	m.deps.Logger.Debug("Session compacted", zap.String("session_id", m.id), zap.Int("turns", len(m.turns)))
	return nil
}

// Scored is a recalled turn and its cosine similarity to the query.
type Scored struct {
	Turn  domain.Turn
	Score float32
}

// Retrieve returns the contents of up to k turns most similar to query, best first.
// Equal scores keep history order.
func (m *Memory) Retrieve(ctx context.Context, query string, k int) ([]string, error) {
	scored, err := m.RetrieveScored(ctx, query, k)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(scored))
	for i, s := range scored {
		out[i] = s.Turn.Content
	}
	return out, nil
}

// RetrieveScored is Retrieve with turns and scores.
func (m *Memory) RetrieveScored(ctx context.Context, query string, k int) ([]Scored, error) {
	if len(m.turns) == 0 || k <= 0 {
		return nil, nil
	}

	res, err := m.deps.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	q := vector.Normalize(res.Embedding)

	scored := make([]Scored, len(m.turns))
	for i, t := range m.turns {
		v := vector.Normalize(m.vecs[i])
		if len(v) != len(q) {
			return nil, fmt.Errorf("turn %d has dim %d, query dim %d: %w", i, len(v), len(q), domain.ErrVectorDimMismatch)
		}
		scored[i] = Scored{Turn: t, Score: vector.Dot(q, v)}
	}
	sort.SliceStable(scored, func(a, b int) bool { return scored[a].Score > scored[b].Score })

	return scored[:min(k, len(scored))], nil
}

// Delete removes the durable session and clears the in-memory history.
func (m *Memory) Delete(_ context.Context) error {
	if err := m.deps.Repo.Delete(m.id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	m.turns, m.vecs = nil, nil
	return nil
}
