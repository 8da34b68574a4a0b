package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/memrag/internal/cache"
	"github.com/kailas-cloud/memrag/internal/chunker"
	"github.com/kailas-cloud/memrag/internal/config"
	"github.com/kailas-cloud/memrag/internal/db"
	dbRedis "github.com/kailas-cloud/memrag/internal/db/redis"
	dbSQLite "github.com/kailas-cloud/memrag/internal/db/sqlite"
	"github.com/kailas-cloud/memrag/internal/domain"
	"github.com/kailas-cloud/memrag/internal/metrics"
	"github.com/kailas-cloud/memrag/internal/repository/corpus"
	"github.com/kailas-cloud/memrag/internal/repository/embcache"
	"github.com/kailas-cloud/memrag/internal/repository/respcache"
	"github.com/kailas-cloud/memrag/internal/repository/session"
	"github.com/kailas-cloud/memrag/internal/transport/converter"
	"github.com/kailas-cloud/memrag/internal/transport/hashing"
	"github.com/kailas-cloud/memrag/internal/transport/ollama"
	openaiTransport "github.com/kailas-cloud/memrag/internal/transport/openai"
	answeruc "github.com/kailas-cloud/memrag/internal/usecase/answer"
	convertuc "github.com/kailas-cloud/memrag/internal/usecase/convert"
	embeddinguc "github.com/kailas-cloud/memrag/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/memrag/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/memrag/internal/usecase/ingest"
	"github.com/kailas-cloud/memrag/internal/usecase/memory"
)

// app is the composition root shared by every subcommand.
type app struct {
	cfg    config.Config
	logger *zap.Logger

	cache *cache.Store
	store db.Store // nil for the file driver

	baseEmbedder  domain.Embedder
	baseCompleter domain.Completer
	docEmbedder   domain.Embedder
	queryEmbedder domain.Embedder
	completer     domain.Completer

	corpus   *corpus.Store
	sessions *session.Repo
}

// newApp wires the cache backend, providers and decorator chains.
// writeThrough persists every new embedding immediately; ingestion flushes once at the end instead.
func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger, writeThrough bool) (*app, error) {
	metrics.RegisterProviderMetrics()

	a := &app{
		cfg:      cfg,
		logger:   logger,
		corpus:   corpus.NewStore(cfg.Storage.DataDir),
		sessions: session.NewRepo(cfg.Storage.SessionsDir),
	}

	if err := a.openCache(ctx); err != nil {
		return nil, err
	}
	if err := a.cache.Load(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("load cache: %w", err)
	}

	base, err := buildBaseEmbedder(cfg.Embedding, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.baseEmbedder = base

	// transport -> instrumented (sub-batching) -> cache -> instruction prefix
	instrumented := embeddinguc.NewInstrumentedEmbedder(
		base, cfg.Embedding.Provider, cfg.Embedding.Model, cfg.Embedding.BatchSize, logger,
	)
	var opts []embcache.Option
	if writeThrough {
		opts = append(opts, embcache.WithWriteThrough())
	}
	cached := embcache.New(instrumented, a.cache.Embeddings, logger, opts...)
	a.docEmbedder = withInstruction(cached, cfg.Embedding.DocumentInstruction)
	a.queryEmbedder = withInstruction(cached, cfg.Embedding.QueryInstruction)

	a.baseCompleter = buildBaseCompleter(cfg.Completion, logger)
	a.completer = respcache.New(a.baseCompleter, a.cache.Completions, logger)

	logger.Info("Providers ready",
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.String("completion_provider", cfg.Completion.Provider),
		zap.String("completion_model", cfg.Completion.Model),
		zap.String("cache_driver", cfg.Cache.Driver),
	)
	return a, nil
}

func (a *app) openCache(ctx context.Context) error {
	cfg := a.cfg
	switch cfg.Cache.Driver {
	case config.CacheDriverRedis:
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
		if err != nil {
			return fmt.Errorf("create redis store: %w", err)
		}
		timeout := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(ctx, timeout); err != nil {
			store.Close()
			return fmt.Errorf("redis not ready: %w", err)
		}
		a.store = store

	case config.CacheDriverSQLite:
		store, err := dbSQLite.Open(ctx, cfg.Cache.SQLitePath)
		if err != nil {
			return fmt.Errorf("open sqlite cache: %w", err)
		}
		a.store = store

	default:
		a.cache = cache.New(
			cache.NewFileBackend(cfg.Cache.EmbeddingsFile),
			cache.NewFileBackend(cfg.Cache.CompletionsFile),
			metrics.CacheTotal, a.logger,
		)
		return nil
	}

	prefix := cfg.Storage.KeyPrefix
	a.cache = cache.New(
		cache.NewHashBackend(a.store, cache.HashKey(prefix, cache.EmbeddingsNamespace)),
		cache.NewHashBackend(a.store, cache.HashKey(prefix, cache.CompletionsNamespace)),
		metrics.CacheTotal, a.logger,
	)
	return nil
}

// Close flushes pending cache entries and releases the cache backend.
func (a *app) Close() {
	if a.cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := a.cache.Flush(ctx); err != nil {
			a.logger.Warn("Failed to flush cache on exit", zap.Error(err))
		}
		cancel()
	}
	if a.store != nil {
		a.store.Close()
	}
}

func (a *app) memoryDeps() memory.Deps {
	return memory.Deps{
		Embedder:   a.queryEmbedder,
		Summarizer: a.completer,
		Repo:       a.sessions,
		MaxHistory: a.cfg.Memory.MaxHistory,
		Logger:     a.logger,
	}
}

// loadCorpus reads the ingestion artifacts. Misaligned artifacts are fatal.
func (a *app) loadCorpus() (*corpus.Corpus, error) {
	c, err := a.corpus.Load()
	if err != nil {
		return nil, fmt.Errorf("load index from %s: %w", a.corpus.Dir(), err)
	}
	if c.Empty() {
		a.logger.Warn("Index is empty, answers will rely on the model alone", zap.String("data_dir", a.corpus.Dir()))
	}
	return c, nil
}

func (a *app) answerService(c *corpus.Corpus) *answeruc.Service {
	return answeruc.New(c, a.queryEmbedder, a.completer, a.logger).
		WithTopK(a.cfg.Retrieval.TopK, a.cfg.Memory.TopK)
}

func (a *app) ingestService() (*ingestuc.Service, error) {
	splitter, err := chunker.New(a.cfg.Chunking.Size, a.cfg.Chunking.Overlap, a.cfg.Chunking.Separators)
	if err != nil {
		return nil, fmt.Errorf("create splitter: %w", err)
	}
	return ingestuc.New(splitter, batchEmbedder{a.docEmbedder}, a.corpus, a.cache, a.cfg.Storage.Extensions, a.logger), nil
}

func (a *app) healthService() *healthuc.Service {
	d := healthuc.Deps{Index: a.corpus}
	// Assign only non-nil values: a typed nil pointer in an interface is not nil.
	if hc, ok := a.baseEmbedder.(domain.HealthChecker); ok {
		d.Embedding = hc
	}
	if hc, ok := a.baseCompleter.(domain.HealthChecker); ok {
		d.Completion = hc
	}
	if a.store != nil {
		d.Cache = a.store
	}
	return healthuc.New(d)
}

// batchEmbedder adapts any embedder to the batch contract used by ingestion.
type batchEmbedder struct {
	domain.Embedder
}

func (b batchEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	return domain.BatchOf(ctx, b.Embedder, texts)
}

func withInstruction(e domain.Embedder, instruction string) domain.Embedder {
	if instruction == "" {
		return e
	}
	return domain.NewInstructionEmbedder(e, instruction)
}

func buildBaseEmbedder(cfg config.EmbeddingConfig, logger *zap.Logger) (domain.Embedder, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		return ollama.NewEmbedder(&ollama.Config{BaseURL: cfg.BaseURL, Model: cfg.Model, Logger: logger}), nil
	case config.ProviderHashing:
		e, err := hashing.New(cfg.Dimensions)
		if err != nil {
			return nil, fmt.Errorf("create hashing embedder: %w", err)
		}
		return e, nil
	default:
		return openaiTransport.NewEmbedder(&openaiTransport.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Provider:   cfg.Provider,
			Logger:     logger,
		}), nil
	}
}

func buildBaseCompleter(cfg config.CompletionConfig, logger *zap.Logger) domain.Completer {
	if cfg.Provider == config.ProviderOllama {
		return ollama.NewCompleter(&ollama.Config{BaseURL: cfg.BaseURL, Model: cfg.Model, Logger: logger})
	}
	return openaiTransport.NewCompleter(&openaiTransport.Config{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Provider:    cfg.Provider,
		Logger:      logger,
	})
}

func newConvertService(cfg config.Config, logger *zap.Logger) *convertuc.Service {
	client := converter.New(converter.Config{
		URL:                cfg.Converter.URL,
		Strategy:           cfg.Converter.Strategy,
		EmbedModelProvider: cfg.Converter.EmbedModelProvider,
		Timeout:            time.Duration(cfg.Converter.TimeoutSec) * time.Second,
	})
	return convertuc.New(client, logger)
}

// sessionAnswerer binds the answer service to one open session for the chat UI.
type sessionAnswerer struct {
	svc *answeruc.Service
	mem *memory.Memory
}

func (s sessionAnswerer) Answer(ctx context.Context, query string) (string, error) {
	return s.svc.Answer(ctx, s.mem, query)
}
