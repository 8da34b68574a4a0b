package health

import (
	"context"
	"errors"
	"testing"
)

// --- Mocks ---

type mockChecker struct {
	err error
}

func (m *mockChecker) HealthCheck(_ context.Context) error { return m.err }

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(Deps{
		Index:      &mockChecker{},
		Embedding:  &mockChecker{},
		Completion: &mockChecker{},
		Cache:      &mockPinger{},
	})
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	for _, c := range []string{ComponentIndex, ComponentEmbedding, ComponentCompletion, ComponentCache} {
		if r.Checks[c] != CheckOK {
			t.Errorf("expected %s %q, got %q", c, CheckOK, r.Checks[c])
		}
	}
}

func TestCheck_IndexError(t *testing.T) {
	svc := New(Deps{Index: &mockChecker{err: errors.New("misaligned")}, Embedding: &mockChecker{}})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks[ComponentIndex] != CheckError {
		t.Errorf("expected index %q, got %q", CheckError, r.Checks[ComponentIndex])
	}
	if r.Checks[ComponentEmbedding] != CheckOK {
		t.Errorf("expected embedding %q, got %q", CheckOK, r.Checks[ComponentEmbedding])
	}
}

func TestCheck_CompletionError(t *testing.T) {
	svc := New(Deps{Index: &mockChecker{}, Completion: &mockChecker{err: errors.New("timeout")}})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks[ComponentCompletion] != CheckError {
		t.Error("expected completion error")
	}
}

func TestCheck_CacheError(t *testing.T) {
	svc := New(Deps{Cache: &mockPinger{err: errors.New("conn refused")}})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks[ComponentCache] != CheckError {
		t.Error("expected cache error")
	}
}

func TestCheck_NilComponentsOmitted(t *testing.T) {
	svc := New(Deps{Index: &mockChecker{}})
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	for _, c := range []string{ComponentEmbedding, ComponentCompletion, ComponentCache} {
		if _, ok := r.Checks[c]; ok {
			t.Errorf("%s check should be absent when not configured", c)
		}
	}
}
