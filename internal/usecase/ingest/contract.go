package ingest

import (
	"context"

	"github.com/kailas-cloud/memrag/internal/domain"
	"github.com/kailas-cloud/memrag/internal/vector"
)

// Splitter cuts document text into chunks.
type Splitter interface {
	Split(text string) []string
}

// Embedder vectorizes many texts in input order.
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}

// ArtifactStore persists the corpus artifacts.
type ArtifactStore interface {
	Save(chunks []domain.Chunk, idx *vector.Index) error
	SaveEmpty() error
}

// CacheFlusher persists the embedding cache.
type CacheFlusher interface {
	Flush(ctx context.Context) error
}
