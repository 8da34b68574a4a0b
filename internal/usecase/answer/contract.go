package answer

import (
	"context"

	"github.com/kailas-cloud/memrag/internal/domain"
)

// Corpus searches indexed chunks by query vector.
type Corpus interface {
	Search(query []float32, k int) ([]domain.ScoredChunk, error)
}

// Embedder vectorizes the query.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Memory is the conversation memory of one session.
type Memory interface {
	Retrieve(ctx context.Context, query string, k int) ([]string, error)
	Add(ctx context.Context, role domain.Role, content string) error
}
