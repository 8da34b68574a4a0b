package convert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/memrag/internal/domain"
)

// --- Mocks ---

type mockConverter struct {
	fail  map[string]bool
	calls []string
}

func (m *mockConverter) Convert(_ context.Context, path string) (string, error) {
	name := filepath.Base(path)
	m.calls = append(m.calls, name)
	if m.fail[name] {
		return "", domain.ErrSourceConversion
	}
	return "# " + name, nil
}

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
}

// --- Tests ---

func TestConvert_WritesMarkdownInOrder(t *testing.T) {
	src, docs := t.TempDir(), filepath.Join(t.TempDir(), "docs")
	writeFiles(t, src, "b.pdf", "a.pdf")
	conv := &mockConverter{}

	rep, err := New(conv, zap.NewNop()).Convert(context.Background(), src, docs)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(conv.calls, []string{"a.pdf", "b.pdf"}) {
		t.Errorf("unexpected order %v", conv.calls)
	}
	if !slices.Equal(rep.Converted, []string{"a.pdf", "b.pdf"}) {
		t.Errorf("unexpected report %+v", rep)
	}
	data, err := os.ReadFile(filepath.Join(docs, "a.md"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "# a.pdf" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestConvert_SkipsExistingTargets(t *testing.T) {
	src, docs := t.TempDir(), t.TempDir()
	writeFiles(t, src, "a.pdf")
	writeFiles(t, docs, "a.md")
	conv := &mockConverter{}

	rep, err := New(conv, zap.NewNop()).Convert(context.Background(), src, docs)
	if err != nil {
		t.Fatal(err)
	}
	if len(conv.calls) != 0 {
		t.Error("existing target must not be converted again")
	}
	if !slices.Equal(rep.Skipped, []string{"a.pdf"}) {
		t.Errorf("unexpected report %+v", rep)
	}
}

func TestConvert_FailureIsReportedAndSkipped(t *testing.T) {
	src, docs := t.TempDir(), t.TempDir()
	writeFiles(t, src, "a.pdf", "b.pdf")
	conv := &mockConverter{fail: map[string]bool{"a.pdf": true}}

	rep, err := New(conv, zap.NewNop()).Convert(context.Background(), src, docs)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(rep.Failed, []string{"a.pdf"}) || !slices.Equal(rep.Converted, []string{"b.pdf"}) {
		t.Errorf("unexpected report %+v", rep)
	}
	if _, err := os.Stat(filepath.Join(docs, "a.md")); !errors.Is(err, os.ErrNotExist) {
		t.Error("failed conversion must not leave a target")
	}
}

func TestConvert_MissingSourceDir(t *testing.T) {
	rep, err := New(&mockConverter{}, zap.NewNop()).Convert(context.Background(), filepath.Join(t.TempDir(), "none"), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Converted)+len(rep.Skipped)+len(rep.Failed) != 0 {
		t.Errorf("expected empty report, got %+v", rep)
	}
}

func TestDedupe(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "lei.pdf.md", "lei.pdf (1).md", "lei.pdf_x.md", "lei.PDF_copy.md", "outro.pdf-2.md", "notas.md")

	removed, err := Dedupe(dir, false, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	// "lei.pdf.md" has nothing between ".pdf" and ".md" and "lei.PDF" is its own prefix.
	want := []string{"lei.pdf_x.md"}
	if !slices.Equal(removed, want) {
		t.Errorf("removed = %v, want %v", removed, want)
	}
	for _, n := range []string{"lei.pdf.md", "lei.pdf (1).md", "lei.PDF_copy.md", "outro.pdf-2.md", "notas.md"} {
		if _, err := os.Stat(filepath.Join(dir, n)); err != nil {
			t.Errorf("%s should be kept: %v", n, err)
		}
	}
}

func TestDedupe_DryRun(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.pdf-1.md", "a.pdf-2.md")

	removed, err := Dedupe(dir, true, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(removed, []string{"a.pdf-2.md"}) {
		t.Errorf("unexpected %v", removed)
	}
	if _, err := os.Stat(filepath.Join(dir, "a.pdf-2.md")); err != nil {
		t.Error("dry run must not remove files")
	}
}
