// Package answer composes grounded answers from retrieved excerpts, session memory and a completion backend.
package answer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/memrag/internal/domain"
	logpkg "github.com/kailas-cloud/memrag/internal/logger"
	"github.com/kailas-cloud/memrag/internal/metrics"
)

// Defaults for retrieval depth.
const (
	DefaultDocsK   = 5
	DefaultMemoryK = 2
)

// Source is one excerpt used for an answer.
type Source struct {
	ID      string  `json:"id"`
	Display string  `json:"display"`
	Score   float32 `json:"score"`
}

// Reply is a composed answer. When Degraded is set, Text is the apology message.
type Reply struct {
	Text     string
	Sources  []Source
	Degraded bool
}

// Service answers questions for any session.
type Service struct {
	corpus    Corpus
	embedder  Embedder
	completer domain.Completer
	docsK     int
	memoryK   int
	logger    *zap.Logger
}

// New creates an answer service. The completer is expected to be cache-backed.
func New(corpus Corpus, embedder Embedder, completer domain.Completer, logger *zap.Logger) *Service {
	return &Service{
		corpus:    corpus,
		embedder:  embedder,
		completer: completer,
		docsK:     DefaultDocsK,
		memoryK:   DefaultMemoryK,
		logger:    logger,
	}
}

// WithTopK configures how many excerpts and memory turns are retrieved.
func (s *Service) WithTopK(docsK, memoryK int) *Service {
	if docsK > 0 {
		s.docsK = docsK
	}
	if memoryK > 0 {
		s.memoryK = memoryK
	}
	return s
}

// Answer returns the answer text for query. On failure it returns the degraded message
// together with the error, so callers can show the text and still inspect the cause.
func (s *Service) Answer(ctx context.Context, mem Memory, query string) (string, error) {
	r, err := s.Compose(ctx, mem, query)
	return r.Text, err
}

// Compose runs retrieval, prompt assembly and completion, then records the exchange in mem.
// Empty retrieval is not a failure.
func (s *Service) Compose(ctx context.Context, mem Memory, query string) (Reply, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Reply{}, domain.ErrEmptyQuery
	}

	log := logpkg.FromContextOr(ctx, s.logger)
	start := time.Now()
	reply, err := s.compose(ctx, log, mem, query)
	metrics.AnswerDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.AnswersTotal.WithLabelValues("degraded").Inc()
		log.Error("Answer failed", zap.Error(err))
		return Reply{Text: DegradedMessage(err), Degraded: true}, fmt.Errorf("answer: %w", err)
	}

	metrics.AnswersTotal.WithLabelValues("ok").Inc()
	return reply, nil
}

func (s *Service) compose(ctx context.Context, log *zap.Logger, mem Memory, query string) (Reply, error) {
	q, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return Reply{}, fmt.Errorf("embed query: %w", err)
	}
	domain.UsageFromContext(ctx).AddEmbedding(q.TotalTokens)

	hits, err := s.corpus.Search(q.Embedding, s.docsK)
	if err != nil {
		return Reply{}, fmt.Errorf("search corpus: %w", err)
	}

	turns, err := mem.Retrieve(ctx, query, s.memoryK)
	if err != nil {
		return Reply{}, fmt.Errorf("recall memory: %w", err)
	}

	log.Debug("Context retrieved", zap.Int("excerpts", len(hits)), zap.Int("memory_turns", len(turns)))

	res, err := s.completer.Complete(ctx, BuildMemoryContext(turns), BuildPrompt(query, hits))
	if err != nil {
		return Reply{}, fmt.Errorf("complete: %w", err)
	}
	domain.UsageFromContext(ctx).AddCompletion(res)

	// The answer is already produced; a memory write failure must not discard it.
	if err := mem.Add(ctx, domain.RoleUser, query); err != nil {
		log.Warn("Failed to record question in memory", zap.Error(err))
	} else if err := mem.Add(ctx, domain.RoleAssistant, res.Text); err != nil {
		log.Warn("Failed to record answer in memory", zap.Error(err))
	}

	sources := make([]Source, len(hits))
	for i, h := range hits {
		sources[i] = Source{ID: h.Chunk.ID, Display: HumanizeChunkID(h.Chunk.ID), Score: h.Score}
	}
	return Reply{Text: res.Text, Sources: sources}, nil
}
