// Package chunker splits document text into overlapping, bounded-size chunks.
package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultSeparators are tried in order: paragraph, line, word, character.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter is a recursive character splitter. Sizes are measured in runes.
// The zero value is not usable; create one with New.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

// New validates the configuration and returns a Splitter.
// An empty separators list means DefaultSeparators.
func New(chunkSize, overlap int, separators []string) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("overlap must be in [0, %d), got %d", chunkSize, overlap)
	}
	if len(separators) == 0 {
		separators = DefaultSeparators
	}
	return &Splitter{
		chunkSize:  chunkSize,
		overlap:    overlap,
		separators: append([]string(nil), separators...),
	}, nil
}

// Split returns the chunks of text in document order. Chunks are whitespace-trimmed
// and never empty. The output depends only on text and the Splitter configuration.
func (s *Splitter) Split(text string) []string {
	return s.split(text, s.separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var rest []string
	for i, sep := range separators {
		if sep == "" {
			separator = ""
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	// Pieces keep their leading separator, so they are merged back with no joiner
	// and a chunk reproduces the source text exactly.
	var chunks, fitting []string
	for _, piece := range splitKeep(text, separator) {
		if runeLen(piece) < s.chunkSize {
			fitting = append(fitting, piece)
			continue
		}
		if len(fitting) > 0 {
			chunks = append(chunks, s.merge(fitting)...)
			fitting = nil
		}
		if len(rest) == 0 {
			if t := strings.TrimSpace(piece); t != "" {
				chunks = append(chunks, t)
			}
			continue
		}
		chunks = append(chunks, s.split(piece, rest)...)
	}
	if len(fitting) > 0 {
		chunks = append(chunks, s.merge(fitting)...)
	}
	return chunks
}

// merge greedily packs pieces into chunks of at most chunkSize runes. When a chunk is
// emitted, leading pieces are dropped until at most overlap runes carry over into the next.
func (s *Splitter) merge(pieces []string) []string {
	var (
		out     []string
		current []string
		total   int
	)

	for _, p := range pieces {
		n := runeLen(p)
		if total+n > s.chunkSize && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
				out = append(out, doc)
			}
			for total > s.overlap || (total > 0 && total+n > s.chunkSize) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, p)
		total += n
	}

	if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
		out = append(out, doc)
	}
	return out
}

// splitKeep splits text on separator and prefixes every piece after the first with it.
// Empty pieces are dropped. The empty separator splits into runes.
func splitKeep(text, separator string) []string {
	if separator == "" {
		parts := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			parts = append(parts, string(r))
		}
		return parts
	}

	raw := strings.Split(text, separator)
	parts := make([]string, 0, len(raw))
	for i, p := range raw {
		if i > 0 {
			p = separator + p
		}
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
