// Package corpus persists the ingestion artifacts: chunks, the vector index and its row metadata.
package corpus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kailas-cloud/memrag/internal/domain"
	"github.com/kailas-cloud/memrag/internal/fsutil"
	"github.com/kailas-cloud/memrag/internal/vector"
)

// Artifact file names inside the data directory.
const (
	ChunksFile    = "chunks.json"
	IndexFile     = "index.bin"
	MetadatasFile = "metadatas.json"
)

// Corpus is a loaded, row-aligned snapshot: Index row i is Chunks[i] and Entries[i].
type Corpus struct {
	Chunks  []domain.Chunk
	Entries []domain.IndexEntry
	Index   *vector.Index
}

// Empty reports whether the corpus has no indexed rows.
func (c *Corpus) Empty() bool { return c.Index == nil || c.Index.Rows() == 0 }

// Chunk returns the chunk at an index row.
func (c *Corpus) Chunk(row int) domain.Chunk { return c.Chunks[row] }

// Search returns up to k chunks most similar to query, best first.
// An empty corpus returns no hits.
func (c *Corpus) Search(query []float32, k int) ([]domain.ScoredChunk, error) {
	if c.Empty() {
		return nil, nil
	}
	hits, err := c.Index.Search(query, k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	out := make([]domain.ScoredChunk, len(hits))
	for i, h := range hits {
		out[i] = domain.ScoredChunk{Chunk: c.Chunks[h.Row], Score: h.Score}
	}
	return out, nil
}

// Store reads and writes artifacts under one directory.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the data directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(name string) string { return filepath.Join(s.dir, name) }

// Save writes all three artifacts. Each is staged in a temp file and they are renamed into
// place only after every write succeeded, so a failure leaves the previous artifacts untouched.
func (s *Store) Save(chunks []domain.Chunk, idx *vector.Index) error {
	if idx.Rows() != len(chunks) {
		return fmt.Errorf("index has %d rows for %d chunks: %w", idx.Rows(), len(chunks), domain.ErrIndexAlignment)
	}

	chunksData, err := json.MarshalIndent(chunks, "", "  ")
	if err != nil {
		return fmt.Errorf("encode chunks: %w", err)
	}
	indexData, err := idx.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	entries := make([]domain.IndexEntry, len(chunks))
	for i, c := range chunks {
		entries[i] = domain.IndexEntry{ID: c.ID, Meta: c.Metadata}
	}
	metaData, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode metadatas: %w", err)
	}

	var batch fsutil.Batch
	for _, f := range []struct {
		name string
		data []byte
	}{
		{ChunksFile, chunksData},
		{IndexFile, indexData},
		{MetadatasFile, metaData},
	} {
		if err := batch.Stage(s.path(f.name), f.data); err != nil {
			batch.Abort()
			return fmt.Errorf("stage %s: %w", f.name, err)
		}
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("commit artifacts: %w", err)
	}
	return nil
}

// SaveEmpty writes an empty chunk list and removes the stale index and metadata.
func (s *Store) SaveEmpty() error {
	if err := fsutil.WriteFile(s.path(ChunksFile), []byte("[]")); err != nil {
		return fmt.Errorf("write %s: %w", ChunksFile, err)
	}
	for _, name := range []string{IndexFile, MetadatasFile} {
		if err := fsutil.RemoveIfExists(s.path(name)); err != nil {
			return err //nolint:wrapcheck // already carries the path
		}
	}
	return nil
}

// Load reads the artifacts. Missing index and metadata mean an empty corpus.
// Any disagreement between index rows, metadata entries and chunks returns ErrIndexAlignment.
func (s *Store) Load() (*Corpus, error) {
	indexData, indexErr := os.ReadFile(s.path(IndexFile))
	metaData, metaErr := os.ReadFile(s.path(MetadatasFile))

	indexMissing := errors.Is(indexErr, fs.ErrNotExist)
	metaMissing := errors.Is(metaErr, fs.ErrNotExist)
	if indexMissing && metaMissing {
		empty, _ := vector.Build(nil)
		return &Corpus{Index: empty}, nil
	}
	if indexMissing != metaMissing {
		return nil, fmt.Errorf("only one of %s and %s exists: %w", IndexFile, MetadatasFile, domain.ErrIndexAlignment)
	}
	if indexErr != nil {
		return nil, fmt.Errorf("read %s: %w", IndexFile, indexErr)
	}
	if metaErr != nil {
		return nil, fmt.Errorf("read %s: %w", MetadatasFile, metaErr)
	}

	idx := new(vector.Index)
	if err := idx.UnmarshalBinary(indexData); err != nil {
		return nil, fmt.Errorf("decode %s: %w", IndexFile, err)
	}

	var entries []domain.IndexEntry
	if err := json.Unmarshal(metaData, &entries); err != nil {
		return nil, fmt.Errorf("decode %s: %w", MetadatasFile, err)
	}

	chunks, err := s.LoadChunks()
	if err != nil {
		return nil, err
	}

	if idx.Rows() != len(entries) || len(entries) != len(chunks) {
		return nil, fmt.Errorf("index rows %d, metadata entries %d, chunks %d: %w",
			idx.Rows(), len(entries), len(chunks), domain.ErrIndexAlignment)
	}
	for i := range entries {
		if entries[i].ID != chunks[i].ID {
			return nil, fmt.Errorf("row %d: metadata id %q, chunk id %q: %w",
				i, entries[i].ID, chunks[i].ID, domain.ErrIndexAlignment)
		}
	}

	return &Corpus{Chunks: chunks, Entries: entries, Index: idx}, nil
}

// LoadChunks reads chunks.json. A missing file is an empty list.
func (s *Store) LoadChunks() ([]domain.Chunk, error) {
	data, err := os.ReadFile(s.path(ChunksFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", ChunksFile, err)
	}
	var chunks []domain.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, fmt.Errorf("decode %s: %w", ChunksFile, err)
	}
	return chunks, nil
}

// HealthCheck reports whether the artifacts on disk load and agree with each other.
func (s *Store) HealthCheck(_ context.Context) error {
	_, err := s.Load()
	return err
}
