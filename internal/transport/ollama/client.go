// Package ollama implements embedding and completion backends over a local Ollama server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/memrag/internal/domain"
	"github.com/kailas-cloud/memrag/internal/metrics"
)

const provider = "ollama"

// Config holds Ollama backend settings.
type Config struct {
	BaseURL string // default: http://localhost:11434
	Model   string
	Timeout time.Duration
	Logger  *zap.Logger
}

type client struct {
	http    *http.Client
	baseURL string
	model   string
	logger  *zap.Logger
}

func newClient(cfg *Config) client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return client{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
		model:   cfg.Model,
		logger:  cfg.Logger,
	}
}

// post sends payload as JSON and decodes a 2xx response into out.
// Transport failures and non-2xx statuses wrap sentinel.
func (c client) post(ctx context.Context, path string, payload, out any, sentinel error) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ollama %s: %w: %w", path, sentinel, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w: %w", path, sentinel, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ollama %s returned %s: %s: %w",
			path, resp.Status, strings.TrimSpace(string(respBody)), sentinel)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode %s response: %w: %w", path, sentinel, err)
	}
	return nil
}

// HealthCheck lists local models via /api/tags.
func (c client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("build tags request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ollama /api/tags: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama /api/tags returned %s", resp.Status)
	}
	return nil
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response        string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

// Completer generates text with /api/generate.
type Completer struct {
	client
}

// NewCompleter creates an Ollama completion backend.
func NewCompleter(cfg *Config) *Completer {
	return &Completer{client: newClient(cfg)}
}

// Complete implements domain.Completer. An empty response is an error.
func (c *Completer) Complete(ctx context.Context, system, user string) (domain.CompletionResult, error) {
	start := time.Now()

	var out generateResponse
	err := c.post(ctx, "/api/generate", generateRequest{
		Model:  c.model,
		Prompt: user,
		System: system,
		Stream: false,
	}, &out, domain.ErrCompletionProviderError)

	duration := time.Since(start)

	if err != nil {
		metrics.CompletionRequestsTotal.WithLabelValues(provider, c.model, "error").Inc()
		return domain.CompletionResult{}, err
	}

	text := strings.TrimSpace(out.Response)
	if text == "" {
		metrics.CompletionRequestsTotal.WithLabelValues(provider, c.model, "error").Inc()
		return domain.CompletionResult{}, fmt.Errorf("empty generate response: %w", domain.ErrCompletionProviderError)
	}

	metrics.CompletionRequestsTotal.WithLabelValues(provider, c.model, "success").Inc()
	metrics.CompletionRequestDuration.WithLabelValues(provider, c.model).Observe(duration.Seconds())
	metrics.CompletionTokensTotal.WithLabelValues(provider, c.model, "prompt").Add(float64(out.PromptEvalCount))
	metrics.CompletionTokensTotal.WithLabelValues(provider, c.model, "completion").Add(float64(out.EvalCount))

	c.logger.Debug("Completion request completed",
		zap.String("provider", provider),
		zap.String("model", c.model),
		zap.Duration("duration", duration),
	)

	return domain.CompletionResult{
		Text:             text,
		PromptTokens:     out.PromptEvalCount,
		CompletionTokens: out.EvalCount,
	}, nil
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings      [][]float32 `json:"embeddings"`
	PromptEvalCount int         `json:"prompt_eval_count"`
}

// Embedder vectorizes text with /api/embed.
type Embedder struct {
	client
}

// NewEmbedder creates an Ollama embedding backend.
func NewEmbedder(cfg *Config) *Embedder {
	return &Embedder{client: newClient(cfg)}
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := e.BatchEmbed(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{
		Embedding:    res.Embeddings[0],
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

// BatchEmbed implements domain.BatchEmbedder with a single /api/embed call.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	start := time.Now()

	var out embedResponse
	err := e.post(ctx, "/api/embed", embedRequest{Model: e.model, Input: texts}, &out, domain.ErrEmbeddingProviderError)

	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(provider, e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(provider, e.model, "api_error").Inc()
		return domain.BatchEmbeddingResult{}, err
	}

	if len(out.Embeddings) != len(texts) {
		metrics.EmbeddingRequestsTotal.WithLabelValues(provider, e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(provider, e.model, "count_mismatch").Inc()
		return domain.BatchEmbeddingResult{}, fmt.Errorf("embed response has %d vectors for %d inputs: %w",
			len(out.Embeddings), len(texts), domain.ErrEmbeddingProviderError)
	}
	for i, vec := range out.Embeddings {
		if len(vec) == 0 {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("empty embedding at index %d: %w", i, domain.ErrEmbeddingProviderError)
		}
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(provider, e.model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(provider, e.model).Observe(duration.Seconds())
	if out.PromptEvalCount > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(provider, e.model, "prompt").Add(float64(out.PromptEvalCount))
		metrics.EmbeddingTokensTotal.WithLabelValues(provider, e.model, "total").Add(float64(out.PromptEvalCount))
	}

	return domain.BatchEmbeddingResult{
		Embeddings:   out.Embeddings,
		PromptTokens: out.PromptEvalCount,
		TotalTokens:  out.PromptEvalCount,
	}, nil
}
