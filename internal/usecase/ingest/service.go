// Package ingest turns a directory of text documents into the persisted retrieval corpus.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/memrag/internal/domain"
	"github.com/kailas-cloud/memrag/internal/metrics"
	"github.com/kailas-cloud/memrag/internal/vector"
)

// Stage names, logged on every transition.
const (
	StageEnumerate  = "ENUMERATE_SOURCES"
	StageChunk      = "CHUNK_ALL"
	StageEmbed      = "EMBED_ALL"
	StageBuildIndex = "BUILD_INDEX"
	StagePersist    = "PERSIST"
	StageFlushCache = "FLUSH_CACHE"
)

// Result summarizes one ingestion run.
type Result struct {
	Sources  int
	Skipped  int
	Chunks   int
	Rows     int
	Duration time.Duration
	Empty    bool
}

// Service runs the ingestion pipeline.
type Service struct {
	splitter   Splitter
	embedder   Embedder
	store      ArtifactStore
	cache      CacheFlusher
	extensions map[string]struct{}
	logger     *zap.Logger
}

// New creates an ingestion service. extensions lists accepted file suffixes such as ".txt".
func New(
	splitter Splitter, embedder Embedder, store ArtifactStore, cache CacheFlusher,
	extensions []string, logger *zap.Logger,
) *Service {
	exts := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		exts[strings.ToLower(e)] = struct{}{}
	}
	return &Service{
		splitter:   splitter,
		embedder:   embedder,
		store:      store,
		cache:      cache,
		extensions: exts,
		logger:     logger,
	}
}

type source struct {
	name string
	path string
}

// Run ingests every accepted file in docsDir. An empty corpus is not an error:
// it writes an empty chunk list and reports Result.Empty.
// Any failure before PERSIST leaves the previous artifacts untouched.
func (s *Service) Run(ctx context.Context, docsDir string) (Result, error) {
	start := time.Now()
	var res Result

	s.stage(StageEnumerate)
	sources, err := s.enumerate(docsDir)
	if err != nil {
		return Result{}, err
	}
	res.Sources = len(sources)
	s.logger.Info("Sources enumerated", zap.String("dir", docsDir), zap.Int("sources", len(sources)))

	s.stage(StageChunk)
	var chunks []domain.Chunk
	for _, src := range sources {
		text, err := readText(src.path)
		if err != nil {
			res.Skipped++
			s.logger.Warn("Skipping source", zap.String("source", src.name), zap.Error(err))
			continue
		}
		for seq, piece := range s.splitter.Split(text) {
			chunks = append(chunks, domain.Chunk{
				ID:       domain.ChunkID(src.name, seq),
				Text:     piece,
				Metadata: domain.ChunkMetadata{Source: src.name},
			})
		}
	}
	res.Chunks = len(chunks)
	s.logger.Info("Sources chunked", zap.Int("chunks", len(chunks)), zap.Int("skipped", res.Skipped))

	if len(chunks) == 0 {
		s.stage(StagePersist)
		if err := s.store.SaveEmpty(); err != nil {
			return Result{}, fmt.Errorf("persist empty corpus: %w", err)
		}
		s.logger.Warn("Corpus is empty, no index built", zap.String("dir", docsDir))
		if err := s.flush(ctx); err != nil {
			return Result{}, err
		}
		res.Empty = true
		res.Duration = time.Since(start)
		return res, nil
	}

	s.stage(StageEmbed)
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	emb, err := s.embedder.BatchEmbed(ctx, texts)
	if err != nil {
		return Result{}, fmt.Errorf("embed chunks: %w", err)
	}
	if len(emb.Embeddings) != len(chunks) {
		return Result{}, fmt.Errorf("got %d embeddings for %d chunks: %w",
			len(emb.Embeddings), len(chunks), domain.ErrEmbeddingProviderError)
	}
	s.logger.Info("Chunks embedded", zap.Int("vectors", len(emb.Embeddings)), zap.Int("total_tokens", emb.TotalTokens))

	s.stage(StageBuildIndex)
	idx, err := vector.Build(emb.Embeddings)
	if err != nil {
		return Result{}, fmt.Errorf("build index: %w", err)
	}
	res.Rows = idx.Rows()
	s.logger.Info("Index built", zap.Int("rows", idx.Rows()), zap.Int("dim", idx.Dim()))

	s.stage(StagePersist)
	if err := s.store.Save(chunks, idx); err != nil {
		return Result{}, fmt.Errorf("persist corpus: %w", err)
	}

	if err := s.flush(ctx); err != nil {
		return Result{}, err
	}

	metrics.IngestChunksTotal.Add(float64(len(chunks)))
	res.Duration = time.Since(start)
	s.logger.Info("Ingestion finished",
		zap.Int("sources", res.Sources),
		zap.Int("skipped", res.Skipped),
		zap.Int("chunks", res.Chunks),
		zap.Int("rows", res.Rows),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

func (s *Service) stage(name string) {
	s.logger.Info("Ingest stage", zap.String("stage", name))
}

func (s *Service) flush(ctx context.Context) error {
	s.stage(StageFlushCache)
	if err := s.cache.Flush(ctx); err != nil {
		return fmt.Errorf("flush embedding cache: %w", err)
	}
	return nil
}

// enumerate lists accepted regular files sorted by name. A missing directory is empty.
func (s *Service) enumerate(dir string) ([]source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("Docs directory does not exist", zap.String("dir", dir))
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	var out []source
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if _, ok := s.extensions[strings.ToLower(filepath.Ext(e.Name()))]; !ok {
			continue
		}
		out = append(out, source{name: e.Name(), path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out, nil
}

func readText(path string) (string, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("read: %w: %w", domain.ErrSourceConversion, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("not valid UTF-8: %w", domain.ErrSourceConversion)
	}
	return string(data), nil
}
