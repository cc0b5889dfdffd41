package shared

import (
	"context"
	"time"
)

// IdempotencyStore stores processed keys to prevent duplicate processing
// of the same logical event (webhook re-delivery, duplicate notification).
type IdempotencyStore interface {
	// MarkProcessed marks a key as processed with a TTL.
	// Returns true if the key was newly marked, false if it was already processed.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks if a key has already been processed
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Close closes the store and releases resources
	Close() error
}
