package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

// MovementType is the kind of a movement.
type MovementType string

const (
	MovementTypeDeposit  MovementType = "DEPOSIT"
	MovementTypeWithdraw MovementType = "WITHDRAW"
)

// ParseMovementType parses a movement type case-insensitively.
func ParseMovementType(s string) (MovementType, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", missingField("type")
	}

	t := MovementType(strings.ToUpper(s))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMovementType, s)
	}

	return t, nil
}

// Valid reports whether t is a known movement type.
func (t MovementType) Valid() bool {
	return t == MovementTypeDeposit || t == MovementTypeWithdraw
}

// Movement is a recorded deposit or withdrawal. Movements are immutable and
// identified by ID alone: two movements with the same type, amount and time
// are still distinct.
type Movement struct {
	id         string
	kind       MovementType
	amount     Money
	occurredAt time.Time
}

// NewMovement creates a movement with a fresh ULID.
func NewMovement(kind MovementType, amount Money, occurredAt time.Time) (Movement, error) {
	if kind == "" {
		return Movement{}, missingField("type")
	}

	if !kind.Valid() {
		return Movement{}, fmt.Errorf("%w: %q", ErrInvalidMovementType, kind)
	}

	if !amount.IsSet() {
		return Movement{}, missingField("amount")
	}

	if !amount.IsPositive() {
		return Movement{}, fmt.Errorf("%w: %s", ErrNonPositiveAmount, amount)
	}

	if occurredAt.IsZero() {
		return Movement{}, missingField("occurred_at")
	}

	return Movement{
		id:         ulid.Make().String(),
		kind:       kind,
		amount:     amount,
		occurredAt: occurredAt,
	}, nil
}

func (m Movement) ID() string            { return m.id }
func (m Movement) Type() MovementType    { return m.kind }
func (m Movement) Amount() Money         { return m.amount }
func (m Movement) OccurredAt() time.Time { return m.occurredAt }

// IsZero reports whether m is the zero Movement.
func (m Movement) IsZero() bool {
	return m.id == ""
}

// Equal reports whether m and other are the same movement.
func (m Movement) Equal(other Movement) bool {
	return m.id == other.id
}

// SignedAmount returns the amount as it affects the balance:
// positive for deposits, negative for withdrawals.
func (m Movement) SignedAmount() decimal.Decimal {
	if m.kind == MovementTypeWithdraw {
		return m.amount.Decimal().Neg()
	}
	return m.amount.Decimal()
}
