// Package hashing is an in-process embedding backend based on feature hashing.
// It needs no network and is deterministic, which makes it suitable for offline use and tests.
package hashing

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/kailas-cloud/memrag/internal/domain"
)

// Embedder maps lowercased word unigrams and bigrams into a fixed number of signed buckets.
type Embedder struct {
	dim int
}

// New creates a hashing embedder with dim buckets.
func New(dim int) (*Embedder, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("hashing dimensions must be positive, got %d", dim)
	}
	return &Embedder{dim: dim}, nil
}

// Embed implements domain.Embedder. Text without any word yields a zero vector.
func (e *Embedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	vec := make([]float32, e.dim)
	tokens := tokenize(text)
	for i, tok := range tokens {
		e.add(vec, tok)
		if i > 0 {
			e.add(vec, tokens[i-1]+" "+tok)
		}
	}
	return domain.EmbeddingResult{
		Embedding:    vec,
		PromptTokens: len(tokens),
		TotalTokens:  len(tokens),
	}, nil
}

// BatchEmbed implements domain.BatchEmbedder.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	return domain.BatchFallback(ctx, e, texts) //nolint:wrapcheck // Embed never fails
}

// HealthCheck always succeeds.
func (e *Embedder) HealthCheck(context.Context) error { return nil }

func (e *Embedder) add(vec []float32, feature string) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()
	bucket := int(sum % uint64(e.dim))
	if sum&(1<<63) != 0 {
		vec[bucket]--
		return
	}
	vec[bucket]++
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
