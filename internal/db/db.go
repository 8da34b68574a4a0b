package db

import (
	"context"
	"time"
)

// Store is the facade implemented by every cache database driver.
type Store interface {
	Pinger
	HashStore
	Close()
}

// ReadyWaiter is implemented by network stores that need a readiness probe at startup.
type ReadyWaiter interface {
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashStore provides field-level access to a named hash.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
}
