package domain

import "context"

type requestUsageKey struct{}

// RequestUsage collects token usage for a single answer request.
// The handler puts a mutable pointer into the context before calling the service;
// the service writes after each provider call; the handler reads it for response headers.
type RequestUsage struct {
	EmbeddingTokens  int
	CompletionTokens int
	Used             bool // true once a provider was called, even on a cache hit with 0 tokens
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *RequestUsage) {
	u := &RequestUsage{}
	return context.WithValue(ctx, requestUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *RequestUsage {
	u, _ := ctx.Value(requestUsageKey{}).(*RequestUsage)
	return u
}

// AddEmbedding records tokens consumed by the embedding provider.
func (u *RequestUsage) AddEmbedding(n int) {
	if u != nil {
		u.EmbeddingTokens += n
		u.Used = true
	}
}

// AddCompletion records prompt plus generated tokens of a completion.
func (u *RequestUsage) AddCompletion(r CompletionResult) {
	if u != nil {
		u.CompletionTokens += r.PromptTokens + r.CompletionTokens
		u.Used = true
	}
}
