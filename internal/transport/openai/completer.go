package openai

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/memrag/internal/domain"
	"github.com/kailas-cloud/memrag/internal/metrics"
)

// Completer is a chat completion backend using the OpenAI-compatible API.
type Completer struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	user        string
	provider    string
	logger      *zap.Logger
}

// NewCompleter creates an OpenAI-compatible completion backend.
func NewCompleter(cfg *Config) *Completer {
	return &Completer{
		client:      newClient(cfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		user:        cfg.User,
		provider:    cfg.Provider,
		logger:      cfg.Logger,
	}
}

// Complete implements domain.Completer. The system message is sent only when non-empty.
func (c *Completer) Complete(ctx context.Context, system, user string) (domain.CompletionResult, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: user})

	temperature := c.temperature
	if temperature == 0 {
		// temperature is omitempty in the request; zero would fall back to the server default.
		temperature = math.SmallestNonzeroFloat32
	}

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
		User:        c.user,
	}
	if c.maxTokens > 0 {
		req.MaxTokens = c.maxTokens
	}

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, req)

	duration := time.Since(start)

	if err != nil {
		metrics.CompletionRequestsTotal.WithLabelValues(c.provider, c.model, "error").Inc()
		return domain.CompletionResult{}, parseAPIError("completion", err, domain.ErrCompletionProviderError)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		metrics.CompletionRequestsTotal.WithLabelValues(c.provider, c.model, "error").Inc()
		return domain.CompletionResult{}, fmt.Errorf("empty completion response: %w", domain.ErrCompletionProviderError)
	}

	metrics.CompletionRequestsTotal.WithLabelValues(c.provider, c.model, "success").Inc()
	metrics.CompletionRequestDuration.WithLabelValues(c.provider, c.model).Observe(duration.Seconds())
	metrics.CompletionTokensTotal.WithLabelValues(c.provider, c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
	metrics.CompletionTokensTotal.WithLabelValues(c.provider, c.model, "completion").Add(float64(resp.Usage.CompletionTokens))

	c.logger.Debug("Completion request completed",
		zap.String("provider", c.provider),
		zap.String("model", c.model),
		zap.Duration("duration", duration),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	return domain.CompletionResult{
		Text:             strings.TrimSpace(resp.Choices[0].Message.Content),
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels.
func (c *Completer) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}
