package cache

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

// --- Mocks ---

type mockHashStore struct {
	fields  map[string]string
	getErr  error
	setErr  error
	delErr  error
	setCall []map[string]string
	delKeys []string
}

func (m *mockHashStore) HGetAll(_ context.Context, _ string) (map[string]string, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.fields, nil
}

func (m *mockHashStore) HSet(_ context.Context, _ string, fields map[string]string) error {
	m.setCall = append(m.setCall, fields)
	return m.setErr
}

func (m *mockHashStore) Del(_ context.Context, key string) error {
	m.delKeys = append(m.delKeys, key)
	if m.delErr != nil {
		return m.delErr
	}
	m.fields = nil
	return nil
}

func newCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_cache_total"}, []string{"namespace", "result"})
}

// --- Tests ---

func TestNamespace_GetPutCountsHitsAndMisses(t *testing.T) {
	total := newCounter()
	ns := NewNamespace[string]("completions", NewFileBackend(filepath.Join(t.TempDir(), "c.json")), total, zap.NewNop())

	if _, ok := ns.Get("prompt"); ok {
		t.Fatal("expected miss on empty namespace")
	}
	ns.Put("prompt", "answer")
	got, ok := ns.Get("prompt")
	if !ok || got != "answer" {
		t.Fatalf("expected hit with %q, got %q ok=%v", "answer", got, ok)
	}

	if v := testutil.ToFloat64(total.WithLabelValues("completions", "hit")); v != 1 {
		t.Errorf("hits = %f, want 1", v)
	}
	if v := testutil.ToFloat64(total.WithLabelValues("completions", "miss")); v != 1 {
		t.Errorf("misses = %f, want 1", v)
	}
}

func TestFileBackend_FlushAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embed_cache.json")
	ctx := context.Background()

	ns := NewNamespace[[]float32]("embeddings", NewFileBackend(path), nil, zap.NewNop())
	ns.Put("Art. 5º", []float32{0.6, 0.8})
	if ns.PendingLen() != 1 {
		t.Fatalf("expected 1 pending entry, got %d", ns.PendingLen())
	}
	if err := ns.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if ns.PendingLen() != 0 {
		t.Errorf("pending should be cleared after flush")
	}

	reloaded := NewNamespace[[]float32]("embeddings", NewFileBackend(path), nil, zap.NewNop())
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	vec, ok := reloaded.Get("Art. 5º")
	if !ok || len(vec) != 2 || vec[0] != 0.6 || vec[1] != 0.8 {
		t.Errorf("unexpected reloaded vector: %v ok=%v", vec, ok)
	}
}

func TestFileBackend_FileIsPlainJSONMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "completion_cache.json")
	ns := NewNamespace[string]("completions", NewFileBackend(path), nil, zap.NewNop())
	ns.Put("Pergunta: x\nResposta:", "resposta")
	if err := ns.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("cache file is not a JSON map: %v", err)
	}
	if m["Pergunta: x\nResposta:"] != "resposta" {
		t.Errorf("unexpected file content: %v", m)
	}
}

func TestLoad_CorruptFileFallsBackToEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embed_cache.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	ns := NewNamespace[[]float32]("embeddings", NewFileBackend(path), nil, zap.NewNop())
	ns.Put("stale", []float32{1})
	if err := ns.Load(context.Background()); err != nil {
		t.Fatalf("corrupt cache must not fail load: %v", err)
	}
	if ns.Len() != 0 {
		t.Errorf("expected empty namespace, got %d entries", ns.Len())
	}
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	ns := NewNamespace[string]("completions", NewFileBackend(filepath.Join(t.TempDir(), "none.json")), nil, zap.NewNop())
	if err := ns.Load(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ns.Len() != 0 {
		t.Errorf("expected empty namespace")
	}
}

func TestLoad_SkipsUnparseableEntries(t *testing.T) {
	store := &mockHashStore{fields: map[string]string{
		"good": "[0.1,0.2]",
		"bad":  "not-a-vector",
	}}
	ns := NewNamespace[[]float32]("embeddings", NewHashBackend(store, "memrag:cache:embeddings"), nil, zap.NewNop())

	if err := ns.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if ns.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", ns.Len())
	}
	if _, ok := ns.Get("good"); !ok {
		t.Error("expected good entry to be loaded")
	}
}

func TestLoad_BackendUnavailable(t *testing.T) {
	store := &mockHashStore{getErr: errors.New("connection refused")}
	ns := NewNamespace[string]("completions", NewHashBackend(store, "k"), nil, zap.NewNop())

	if err := ns.Load(context.Background()); err == nil {
		t.Fatal("expected error when the backend is unreachable")
	}
}

func TestHashBackend_FlushWritesOnlyPending(t *testing.T) {
	store := &mockHashStore{fields: map[string]string{"old": `"cached"`}}
	ns := NewNamespace[string]("completions", NewHashBackend(store, "k"), nil, zap.NewNop())
	ctx := context.Background()

	if err := ns.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	ns.Put("new", "fresh")
	if err := ns.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if len(store.setCall) != 1 {
		t.Fatalf("expected 1 HSET, got %d", len(store.setCall))
	}
	written := store.setCall[0]
	if len(written) != 1 || written["new"] != `"fresh"` {
		t.Errorf("expected only the pending field, got %v", written)
	}
}

func TestFlush_NoPendingIsNoop(t *testing.T) {
	store := &mockHashStore{}
	ns := NewNamespace[string]("completions", NewHashBackend(store, "k"), nil, zap.NewNop())

	if err := ns.Flush(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.setCall) != 0 {
		t.Errorf("expected no writes, got %d", len(store.setCall))
	}
}

func TestFlush_ErrorKeepsPending(t *testing.T) {
	store := &mockHashStore{setErr: errors.New("readonly")}
	ns := NewNamespace[string]("completions", NewHashBackend(store, "k"), nil, zap.NewNop())
	ns.Put("a", "b")

	if err := ns.Flush(context.Background()); err == nil {
		t.Fatal("expected flush error")
	}
	if ns.PendingLen() != 1 {
		t.Errorf("pending entry should survive a failed flush")
	}
}

func TestStore_LoadAndFlushBothNamespaces(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	s := New(
		NewFileBackend(filepath.Join(dir, "embed_cache.json")),
		NewFileBackend(filepath.Join(dir, "completion_cache.json")),
		nil, zap.NewNop(),
	)
	s.Embeddings.Put("t", []float32{1, 0})
	s.Completions.Put("p", "r")
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	s2 := New(
		NewFileBackend(filepath.Join(dir, "embed_cache.json")),
		NewFileBackend(filepath.Join(dir, "completion_cache.json")),
		nil, zap.NewNop(),
	)
	if err := s2.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if s2.Embeddings.Len() != 1 || s2.Completions.Len() != 1 {
		t.Errorf("expected one entry per namespace, got %d/%d", s2.Embeddings.Len(), s2.Completions.Len())
	}
}

func TestHashKey(t *testing.T) {
	if got := HashKey("memrag:", EmbeddingsNamespace); got != "memrag:cache:embeddings" {
		t.Errorf("HashKey = %q, want memrag:cache:embeddings", got)
	}
	if got := HashKey("memrag:", CompletionsNamespace); got != "memrag:cache:completions" {
		t.Errorf("HashKey = %q, want memrag:cache:completions", got)
	}
}

func TestHashBackend_ClearDeletesKeyAndResets(t *testing.T) {
	store := &mockHashStore{fields: map[string]string{"p": `"r"`}}
	key := HashKey("memrag:", CompletionsNamespace)
	ns := NewNamespace[string](CompletionsNamespace, NewHashBackend(store, key), nil, zap.NewNop())
	ctx := context.Background()

	if err := ns.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	ns.Put("q", "a")
	if err := ns.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if len(store.delKeys) != 1 || store.delKeys[0] != key {
		t.Errorf("DEL keys = %v, want [%s]", store.delKeys, key)
	}
	if ns.Len() != 0 || ns.PendingLen() != 0 {
		t.Errorf("namespace not reset: len=%d pending=%d", ns.Len(), ns.PendingLen())
	}
	if err := ns.Load(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if ns.Len() != 0 {
		t.Errorf("expected empty store after clear, got %d entries", ns.Len())
	}
}

func TestHashBackend_ClearErrorKeepsEntries(t *testing.T) {
	store := &mockHashStore{delErr: errors.New("readonly")}
	ns := NewNamespace[string](CompletionsNamespace, NewHashBackend(store, "k"), nil, zap.NewNop())
	ns.Put("q", "a")

	if err := ns.Clear(context.Background()); err == nil {
		t.Fatal("expected clear error")
	}
	if ns.Len() != 1 {
		t.Errorf("entries should survive a failed clear")
	}
}

func TestStore_ClearRemovesFiles(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	embPath := filepath.Join(dir, "embed_cache.json")
	compPath := filepath.Join(dir, "completion_cache.json")
	s := New(NewFileBackend(embPath), NewFileBackend(compPath), nil, zap.NewNop())
	s.Embeddings.Put("t", []float32{1, 0})
	s.Completions.Put("p", "r")
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	for _, p := range []string{embPath, compPath} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s still exists after clear", filepath.Base(p))
		}
	}
	if s.Embeddings.Len() != 0 || s.Completions.Len() != 0 {
		t.Error("namespaces should be empty after clear")
	}
	// Clearing an already empty store is fine.
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("second clear: %v", err)
	}
}
