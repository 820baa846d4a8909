package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers request keys so a retried write is not pushed
// to the accounting system twice
type IdempotencyStore interface {
	// Claim holds key for ttl. It returns false if the key is already held.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release drops key so the same request may be sent again
	Release(ctx context.Context, key string) error
	Close() error
}
