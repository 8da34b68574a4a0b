package domain

import "context"

// Completer is the text generation contract shared by every completion backend.
type Completer interface {
	Complete(ctx context.Context, system, user string) (CompletionResult, error)
}

// CompletionResult carries generated text and token usage.
// Cached results report zero tokens.
type CompletionResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}
