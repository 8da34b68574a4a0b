package memory

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/memrag/internal/domain"
)

// --- Mocks ---

// mockEmbedder returns a fixed vector for known texts and [1, 0, 0] otherwise.
type mockEmbedder struct {
	vecs       map[string][]float32
	err        error
	calls      int
	batchCalls int
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	if v, ok := m.vecs[text]; ok {
		return domain.EmbeddingResult{Embedding: v}, nil
	}
	return domain.EmbeddingResult{Embedding: []float32{1, 0, 0}}, nil
}

func (m *mockEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.batchCalls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		res, err := m.Embed(ctx, t)
		if err != nil {
			return domain.BatchEmbeddingResult{}, err
		}
		out[i] = res.Embedding
	}
	return domain.BatchEmbeddingResult{Embeddings: out}, nil
}

type mockSummarizer struct {
	text    string
	err     error
	prompts []string
}

func (m *mockSummarizer) Complete(_ context.Context, _, user string) (domain.CompletionResult, error) {
	m.prompts = append(m.prompts, user)
	if m.err != nil {
		return domain.CompletionResult{}, m.err
	}
	return domain.CompletionResult{Text: m.text}, nil
}

type mockRepo struct {
	sessions map[string][]domain.Turn
	saves    int
}

func newMockRepo() *mockRepo { return &mockRepo{sessions: make(map[string][]domain.Turn)} }

func (m *mockRepo) Get(id string) ([]domain.Turn, error) {
	turns, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return append([]domain.Turn(nil), turns...), nil
}

func (m *mockRepo) Save(id string, turns []domain.Turn) error {
	m.saves++
	m.sessions[id] = append([]domain.Turn{}, turns...)
	return nil
}

func (m *mockRepo) Delete(id string) error {
	if _, ok := m.sessions[id]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

func testDeps(emb *mockEmbedder, sum *mockSummarizer, repo *mockRepo) Deps {
	return Deps{Embedder: emb, Summarizer: sum, Repo: repo, MaxHistory: 10, Logger: zap.NewNop()}
}

// --- Tests ---

func TestOpen_GeneratesID(t *testing.T) {
	repo := newMockRepo()
	m, err := Open(context.Background(), testDeps(&mockEmbedder{}, &mockSummarizer{}, repo), "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !regexp.MustCompile(`^[0-9a-f]{32}$`).MatchString(m.SessionID()) {
		t.Errorf("unexpected session id %q", m.SessionID())
	}
	if _, ok := repo.sessions[m.SessionID()]; !ok {
		t.Error("new session must be persisted immediately")
	}
}

func TestOpen_RejectsSmallMaxHistory(t *testing.T) {
	d := testDeps(&mockEmbedder{}, &mockSummarizer{}, newMockRepo())
	d.MaxHistory = 3
	if _, err := Open(context.Background(), d, "s"); err == nil {
		t.Fatal("expected error for max history below 4")
	}
}

func TestAdd_PersistsEveryTurn(t *testing.T) {
	repo := newMockRepo()
	m, _ := Open(context.Background(), testDeps(&mockEmbedder{}, &mockSummarizer{}, repo), "s1")

	if err := m.Add(context.Background(), domain.RoleUser, "Qual o prazo?"); err != nil {
		t.Fatal(err)
	}
	if err := m.Add(context.Background(), domain.RoleAssistant, "Trinta dias."); err != nil {
		t.Fatal(err)
	}

	stored := repo.sessions["s1"]
	if len(stored) != 2 || stored[1].Role != domain.RoleAssistant {
		t.Fatalf("unexpected stored history %+v", stored)
	}
}

func TestAdd_RejectsUnknownRole(t *testing.T) {
	m, _ := Open(context.Background(), testDeps(&mockEmbedder{}, &mockSummarizer{}, newMockRepo()), "s")
	if err := m.Add(context.Background(), domain.Role("tool"), "x"); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestAdd_CompactsOldestTurns(t *testing.T) {
	repo := newMockRepo()
	sum := &mockSummarizer{text: "  O usuário perguntou sobre prazos.  "}
	m, _ := Open(context.Background(), testDeps(&mockEmbedder{}, sum, repo), "s")

	for i := range 11 {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		if err := m.Add(context.Background(), role, fmt.Sprintf("turno %d", i)); err != nil {
			t.Fatalf("Add %d: %v", i, err)
		}
	}

	h := m.History()
	if len(h) != 8 {
		t.Fatalf("expected max_history-2 = 8 turns, got %d", len(h))
	}
	if h[0].Role != domain.RoleSystem || h[0].Content != "O usuário perguntou sobre prazos." {
		t.Errorf("unexpected summary turn %+v", h[0])
	}
	if h[1].Content != "turno 4" || h[7].Content != "turno 10" {
		t.Errorf("unexpected remaining turns %+v", h[1:])
	}

	if len(sum.prompts) != 1 {
		t.Fatalf("expected one summary request, got %d", len(sum.prompts))
	}
	wantPrompt := "Resuma a seguinte conversa em português, mantendo as informações essenciais:\n" +
		"user: turno 0\nassistant: turno 1\nuser: turno 2\nassistant: turno 3\nResumo:"
	if sum.prompts[0] != wantPrompt {
		t.Errorf("unexpected prompt:\n%s", sum.prompts[0])
	}
	if len(repo.sessions["s"]) != 8 {
		t.Errorf("expected compacted history persisted, got %d", len(repo.sessions["s"]))
	}
}

func TestAdd_FailedSummaryKeepsHistory(t *testing.T) {
	repo := newMockRepo()
	sum := &mockSummarizer{err: domain.ErrCompletionProviderError}
	d := testDeps(&mockEmbedder{}, sum, repo)
	d.MaxHistory = 4
	m, _ := Open(context.Background(), d, "s")

	for i := range 4 {
		if err := m.Add(context.Background(), domain.RoleUser, fmt.Sprintf("t%d", i)); err != nil {
			t.Fatal(err)
		}
	}
	err := m.Add(context.Background(), domain.RoleUser, "t4")
	if !errors.Is(err, domain.ErrCompletionProviderError) {
		t.Fatalf("expected completion error, got %v", err)
	}
	if m.Len() != 5 {
		t.Errorf("expected un-compacted history of 5, got %d", m.Len())
	}
	if len(repo.sessions["s"]) != 5 {
		t.Errorf("expected all turns persisted, got %d", len(repo.sessions["s"]))
	}
}

func TestRetrieve_Ordering(t *testing.T) {
	emb := &mockEmbedder{vecs: map[string][]float32{
		"garantia":   {1, 0, 0},
		"prazo":      {0.9, 0.1, 0},
		"bolo":       {0, 0, 1},
		"devolução":  {0.7, 0.7, 0},
		"q:garantia": {1, 0, 0},
	}}
	m, _ := Open(context.Background(), testDeps(emb, &mockSummarizer{}, newMockRepo()), "s")
	for _, c := range []string{"bolo", "devolução", "prazo", "garantia"} {
		if err := m.Add(context.Background(), domain.RoleUser, c); err != nil {
			t.Fatal(err)
		}
	}

	scored, err := m.RetrieveScored(context.Background(), "q:garantia", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(scored) != 4 {
		t.Fatalf("expected 4 results, got %d", len(scored))
	}
	for i := 1; i < len(scored); i++ {
		if scored[i].Score > scored[i-1].Score {
			t.Errorf("scores not non-increasing at %d: %v > %v", i, scored[i].Score, scored[i-1].Score)
		}
	}

	top, err := m.Retrieve(context.Background(), "q:garantia", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 2 || top[0] != "garantia" || top[1] != "prazo" {
		t.Errorf("unexpected top-2 %v", top)
	}
}

func TestRetrieve_TiesKeepHistoryOrder(t *testing.T) {
	m, _ := Open(context.Background(), testDeps(&mockEmbedder{}, &mockSummarizer{}, newMockRepo()), "s")
	for _, c := range []string{"primeiro", "segundo", "terceiro"} {
		if err := m.Add(context.Background(), domain.RoleUser, c); err != nil {
			t.Fatal(err)
		}
	}

	got, err := m.Retrieve(context.Background(), "qualquer", 3)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(got, ",") != "primeiro,segundo,terceiro" {
		t.Errorf("ties must keep history order, got %v", got)
	}
}

func TestRetrieve_EmptyHistory(t *testing.T) {
	emb := &mockEmbedder{}
	m, _ := Open(context.Background(), testDeps(emb, &mockSummarizer{}, newMockRepo()), "s")

	got, err := m.Retrieve(context.Background(), "q", 2)
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil; got %v, %v", got, err)
	}
	if emb.calls != 0 {
		t.Error("empty history must not embed the query")
	}
}

func TestOpen_ReloadsAndRecomputesEmbeddings(t *testing.T) {
	repo := newMockRepo()
	emb := &mockEmbedder{}
	d := testDeps(emb, &mockSummarizer{}, repo)

	m, _ := Open(context.Background(), d, "persist")
	_ = m.Add(context.Background(), domain.RoleUser, "pergunta")
	_ = m.Add(context.Background(), domain.RoleAssistant, "resposta")

	reloaded, err := Open(context.Background(), d, "persist")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if reloaded.Len() != 2 || reloaded.History()[1].Content != "resposta" {
		t.Fatalf("unexpected reloaded history %+v", reloaded.History())
	}
	if emb.batchCalls != 1 {
		t.Errorf("expected one batch embedding on load, got %d", emb.batchCalls)
	}
	if _, err := reloaded.Retrieve(context.Background(), "pergunta", 1); err != nil {
		t.Errorf("reloaded memory must be searchable: %v", err)
	}
}

func TestHistory_ReturnsCopy(t *testing.T) {
	m, _ := Open(context.Background(), testDeps(&mockEmbedder{}, &mockSummarizer{}, newMockRepo()), "s")
	_ = m.Add(context.Background(), domain.RoleUser, "original")

	h := m.History()
	h[0].Content = "alterado"
	if m.History()[0].Content != "original" {
		t.Error("History must return a copy")
	}
}

func TestDelete(t *testing.T) {
	repo := newMockRepo()
	m, _ := Open(context.Background(), testDeps(&mockEmbedder{}, &mockSummarizer{}, repo), "gone")
	_ = m.Add(context.Background(), domain.RoleUser, "x")

	if err := m.Delete(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, ok := repo.sessions["gone"]; ok {
		t.Error("session must be removed from the repository")
	}
	if m.Len() != 0 {
		t.Error("in-memory history must be cleared")
	}
}

func TestRegistry(t *testing.T) {
	repo := newMockRepo()
	r := NewRegistry(testDeps(&mockEmbedder{}, &mockSummarizer{}, repo))
	ctx := context.Background()

	a, err := r.Open(ctx, "abc")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := r.Open(ctx, "abc")
	if a != b {
		t.Error("expected the same instance for one session id")
	}

	fresh, _ := r.Open(ctx, "")
	if fresh.SessionID() == "" || fresh == a {
		t.Error("empty id must open a new session")
	}

	if _, err := r.History("unknown"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}

	if err := r.Delete(ctx, "abc"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.History("abc"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound after delete, got %v", err)
	}
	if err := r.Delete(ctx, "abc"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound on second delete, got %v", err)
	}
}
