package domain

import (
	"errors"
	"fmt"
)

var (
	// Amount errors
	ErrNegativeAmount    = errors.New("amount can't be negative")
	ErrInvalidPrecision  = errors.New("amount can't have more than 2 decimal places")
	ErrEmptyAmount       = errors.New("amount can't be empty")
	ErrMalformedAmount   = errors.New("amount is not a valid decimal number")
	ErrNonPositiveAmount = errors.New("amount must be positive")
	ErrNegativeResult    = errors.New("result would be negative")
	ErrAmountTooLarge    = errors.New("amount is too large")

	// Movement errors
	ErrMissingField        = errors.New("missing required field")
	ErrInvalidMovementType = errors.New("invalid transaction type")

	// Ledger errors
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// InsufficientFundsError is returned when a withdrawal exceeds the balance.
// It matches ErrInsufficientFunds with errors.Is.
type InsufficientFundsError struct {
	Available Money
	Requested Money
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: current balance is %s, requested %s", e.Available, e.Requested)
}

// Is reports whether target is ErrInsufficientFunds.
func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

func missingField(name string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, name)
}
