package respcache

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/memrag/internal/domain"
)

// --- Mocks ---

type mockCompleter struct {
	text    string
	err     error
	calls   int
	systems []string
}

func (m *mockCompleter) Complete(_ context.Context, system, _ string) (domain.CompletionResult, error) {
	m.calls++
	m.systems = append(m.systems, system)
	if m.err != nil {
		return domain.CompletionResult{}, m.err
	}
	return domain.CompletionResult{Text: m.text, PromptTokens: 12, CompletionTokens: 7}, nil
}

type mockStore struct {
	entries  map[string]string
	flushes  int
	flushErr error
}

func newMockStore() *mockStore { return &mockStore{entries: make(map[string]string)} }

func (m *mockStore) Get(key string) (string, bool) {
	v, ok := m.entries[key]
	return v, ok
}

func (m *mockStore) Put(key, v string) { m.entries[key] = v }

func (m *mockStore) Flush(_ context.Context) error {
	m.flushes++
	return m.flushErr
}

// --- Tests ---

func TestComplete_IdenticalPromptServedFromCache(t *testing.T) {
	inner := &mockCompleter{text: "O prazo é de 30 dias."}
	ms := newMockStore()
	cc := New(inner, ms, zap.NewNop())

	first, err := cc.Complete(context.Background(), "", "Pergunta: prazo?")
	if err != nil {
		t.Fatal(err)
	}
	second, err := cc.Complete(context.Background(), "", "Pergunta: prazo?")
	if err != nil {
		t.Fatal(err)
	}

	if inner.calls != 1 {
		t.Fatalf("expected 1 backend call, got %d", inner.calls)
	}
	if first.Text != second.Text {
		t.Errorf("cached text differs: %q vs %q", first.Text, second.Text)
	}
	if second.PromptTokens != 0 || second.CompletionTokens != 0 {
		t.Error("cached result must report zero tokens")
	}
	if ms.flushes != 1 {
		t.Errorf("expected 1 flush, got %d", ms.flushes)
	}
}

func TestComplete_KeyIgnoresSystem(t *testing.T) {
	inner := &mockCompleter{text: "resposta"}
	cc := New(inner, newMockStore(), zap.NewNop())

	if _, err := cc.Complete(context.Background(), "Contexto da conversa:\nuser: a", "q"); err != nil {
		t.Fatal(err)
	}
	if _, err := cc.Complete(context.Background(), "Contexto da conversa:\nuser: b", "q"); err != nil {
		t.Fatal(err)
	}
	if inner.calls != 1 {
		t.Errorf("expected system message to be excluded from the key, got %d calls", inner.calls)
	}
}

func TestComplete_ErrorNotCached(t *testing.T) {
	inner := &mockCompleter{err: domain.ErrCompletionProviderError}
	ms := newMockStore()
	cc := New(inner, ms, zap.NewNop())

	_, err := cc.Complete(context.Background(), "", "q")
	if !errors.Is(err, domain.ErrCompletionProviderError) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if len(ms.entries) != 0 || ms.flushes != 0 {
		t.Error("failed completion must not be cached")
	}
}

func TestComplete_FlushErrorIsNotFatal(t *testing.T) {
	ms := newMockStore()
	ms.flushErr = errors.New("read-only filesystem")
	cc := New(&mockCompleter{text: "ok"}, ms, zap.NewNop())

	res, err := cc.Complete(context.Background(), "", "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "ok" {
		t.Errorf("unexpected text %q", res.Text)
	}
}
