package domain

import "fmt"

// ChunkMetadata describes where a chunk came from.
type ChunkMetadata struct {
	Source string `json:"source"`
}

// Chunk is a bounded slice of a source document. Immutable once written.
type Chunk struct {
	ID       string        `json:"id"`
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}

// ChunkID derives the deterministic id "<source>__<seq>".
func ChunkID(source string, seq int) string {
	return fmt.Sprintf("%s__%d", source, seq)
}

// IndexEntry is one row of the id/metadata list stored next to the vector index.
type IndexEntry struct {
	ID   string        `json:"id"`
	Meta ChunkMetadata `json:"meta"`
}

// ScoredChunk is a retrieval hit.
type ScoredChunk struct {
	Chunk Chunk
	Score float32
}
