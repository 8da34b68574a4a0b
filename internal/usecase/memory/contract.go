package memory

import (
	"context"

	"github.com/kailas-cloud/memrag/internal/domain"
)

// Repository persists session histories.
type Repository interface {
	Get(id string) ([]domain.Turn, error)
	Save(id string, turns []domain.Turn) error
	Delete(id string) error
}

// Embedder vectorizes turn contents and queries.
// Implementations that also satisfy domain.BatchEmbedder are used in batch on load.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Summarizer produces the compaction summary.
type Summarizer interface {
	Complete(ctx context.Context, system, user string) (domain.CompletionResult, error)
}
