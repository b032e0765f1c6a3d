package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/iho/cashbook/internal/domain"
)

// MovementStore implements usecase.MovementRepository as an append-only
// in-memory sequence. It is safe for concurrent use.
type MovementStore struct {
	mu        sync.RWMutex
	movements []domain.Movement
}

// NewMovementStore creates an empty MovementStore.
func NewMovementStore() *MovementStore {
	return &MovementStore{}
}

// Append adds movement to the tail of the sequence and returns it unchanged.
func (s *MovementStore) Append(ctx context.Context, movement domain.Movement) (domain.Movement, error) {
	if movement.IsZero() {
		return domain.Movement{}, fmt.Errorf("%w: movement", domain.ErrMissingField)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.movements = append(s.movements, movement)
	return movement, nil
}

// ListByTimeDesc returns a copy of all movements sorted newest first.
// Movements with equal timestamps come back in no particular order.
func (s *MovementStore) ListByTimeDesc(ctx context.Context) ([]domain.Movement, error) {
	s.mu.RLock()
	result := slices.Clone(s.movements)
	s.mu.RUnlock()

	if result == nil {
		result = []domain.Movement{}
	}

	slices.SortFunc(result, func(a, b domain.Movement) int {
		return b.OccurredAt().Compare(a.OccurredAt())
	})

	return result, nil
}

// Len returns the number of stored movements.
func (s *MovementStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.movements)
}
