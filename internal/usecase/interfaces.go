package usecase

import (
	"context"
	"time"

	"github.com/iho/cashbook/internal/domain"
)

// MovementRepository defines data access for movements.
// Implementations must be safe for concurrent use.
type MovementRepository interface {
	// Append adds a movement to the tail of the history and returns it unchanged.
	Append(ctx context.Context, movement domain.Movement) (domain.Movement, error)
	// ListByTimeDesc returns a fresh copy of all movements, newest first.
	ListByTimeDesc(ctx context.Context) ([]domain.Movement, error)
}

// Clock supplies the instant stamped on new movements.
type Clock interface {
	Now() time.Time
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release frees key so a later request with it is processed again.
	Release(ctx context.Context, key string) error
}
