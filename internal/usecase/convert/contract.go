package convert

import "context"

// Converter turns one source document into markdown.
type Converter interface {
	Convert(ctx context.Context, path string) (string, error)
}
