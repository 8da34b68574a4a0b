package domain

import "errors"

var (
	// ErrEmbeddingProviderError signals an embedding backend failure or a malformed response.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrCompletionProviderError signals a completion backend failure or an empty reply.
	ErrCompletionProviderError = errors.New("completion provider error")
	// ErrCorruptCache signals an unparseable durable cache.
	ErrCorruptCache = errors.New("corrupt cache")
	// ErrSourceConversion signals that a single source document could not be turned into text.
	ErrSourceConversion = errors.New("source conversion failure")
	// ErrIndexAlignment signals a row count mismatch between the vector index and its id list.
	ErrIndexAlignment = errors.New("index alignment error")
	// ErrVectorDimMismatch signals vectors of different dimensions in one index or query.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrSessionNotFound signals a missing session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidSessionID signals a session id that cannot name a durable session.
	ErrInvalidSessionID = errors.New("invalid session id")
	// ErrEmptyQuery signals a blank question.
	ErrEmptyQuery = errors.New("empty query")
)
