package ports

import (
	"context"
	"time"
)

// StoredResponse is the result of a completed submission kept for replays.
type StoredResponse struct {
	OrderID string
	Body    []byte
}

// Claim is the outcome of trying to reserve an idempotency key.
type Claim struct {
	// Acquired is true when the caller now owns the key and must Complete or Release it.
	Acquired bool
	// Stored holds the earlier result when the key was already completed.
	Stored *StoredResponse
}

// IdempotencyStore reserves keys for a bounded window so retried submissions
// replay instead of repeating side effects.
type IdempotencyStore interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (Claim, error)
	Complete(ctx context.Context, key string, response StoredResponse, ttl time.Duration) error
	Release(ctx context.Context, key string) error
	// Forget drops a completed key while it still holds orderID, so a submission whose
	// order can no longer be paid is not replayed.
	Forget(ctx context.Context, key, orderID string) error
}
