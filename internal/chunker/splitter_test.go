package chunker

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func mustSplitter(t *testing.T, size, overlap int) *Splitter {
	t.Helper()
	s, err := New(size, overlap, nil)
	if err != nil {
		t.Fatalf("New(%d, %d): %v", size, overlap, err)
	}
	return s
}

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("palavra%03d", i)
	}
	return strings.Join(parts, " ")
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		size, overlap int
	}{
		{0, 0},
		{-1, 0},
		{100, 100},
		{100, 150},
		{100, -1},
	}
	for _, tc := range tests {
		if _, err := New(tc.size, tc.overlap, nil); err == nil {
			t.Errorf("New(%d, %d): expected error", tc.size, tc.overlap)
		}
	}
}

func TestSplit_EmptyInput(t *testing.T) {
	s := mustSplitter(t, 1000, 200)
	for _, in := range []string{"", "   ", "\n\n\n"} {
		if got := s.Split(in); len(got) != 0 {
			t.Errorf("Split(%q) = %q, want no chunks", in, got)
		}
	}
}

func TestSplit_ShortInputIsSingleChunk(t *testing.T) {
	s := mustSplitter(t, 1000, 200)
	in := "Art. 1º  Esta lei estabelece normas de proteção e defesa do consumidor.\nParágrafo único."

	got := s.Split(in)
	if len(got) != 1 || got[0] != in {
		t.Fatalf("Split = %q, want single chunk equal to input", got)
	}
}

func TestSplit_Deterministic(t *testing.T) {
	s := mustSplitter(t, 120, 30)
	text := words(200)

	first := s.Split(text)
	second := s.Split(text)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("two runs over the same text produced different chunks")
	}
}

func TestSplit_ChunksAreBounded(t *testing.T) {
	s := mustSplitter(t, 100, 30)
	text := strings.Repeat("Ação de indenização por dano moral. ", 40)

	for i, c := range s.Split(text) {
		if n := utf8.RuneCountInString(c); n > 100 {
			t.Errorf("chunk %d has %d runes, limit 100", i, n)
		}
	}
}

func TestSplit_AdjacentChunksOverlap(t *testing.T) {
	const overlap = 30
	s := mustSplitter(t, 100, overlap)
	chunks := s.Split(words(60))

	if len(chunks) < 3 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i := 0; i+1 < len(chunks); i++ {
		prev, next := chunks[i], chunks[i+1]
		head := strings.Fields(next)[0]
		tail := prev[len(prev)-overlap:]
		if !strings.Contains(tail, head) {
			t.Errorf("chunk %d tail %q does not contain head %q of chunk %d", i, tail, head, i+1)
		}
	}
}

func TestSplit_PrefersParagraphBoundaries(t *testing.T) {
	s := mustSplitter(t, 16, 0)
	got := s.Split("Parágrafo um.\n\nParágrafo dois.")

	want := []string{"Parágrafo um.", "Parágrafo dois."}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Split = %q, want %q", got, want)
	}
}

func TestSplit_FallsBackToCharacters(t *testing.T) {
	s := mustSplitter(t, 100, 20)
	got := s.Split(strings.Repeat("a", 250))

	if len(got) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(got))
	}
	if len(got[0]) != 100 || len(got[1]) != 100 || len(got[2]) != 90 {
		t.Errorf("unexpected chunk lengths: %d %d %d", len(got[0]), len(got[1]), len(got[2]))
	}
}

func TestSplit_CustomSeparators(t *testing.T) {
	s, err := New(10, 0, []string{";", ""})
	if err != nil {
		t.Fatal(err)
	}
	got := s.Split("abc;def;ghijklmnop")
	if got[0] != "abc;def" {
		t.Errorf("first chunk = %q, want %q", got[0], "abc;def")
	}
}
