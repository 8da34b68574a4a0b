package health

import "context"

// Checker is any component that can verify its own availability.
// Embedding and completion providers and the corpus store satisfy it.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// Pinger checks cache backend availability.
type Pinger interface {
	Ping(ctx context.Context) error
}
