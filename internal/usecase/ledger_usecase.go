package usecase

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/cashbook/internal/domain"
	"github.com/iho/cashbook/internal/infrastructure/metrics"
)

var (
	// ErrInconsistentLedger is returned when the recorded history implies a negative balance.
	ErrInconsistentLedger = errors.New("ledger is inconsistent: balance went negative")
)

// LedgerUseCase records deposits and withdrawals for the single account and
// derives its balance from the movement history.
//
// Every operation runs inside one critical section, so a withdrawal's balance
// check and its append can never interleave with another deposit or withdrawal.
type LedgerUseCase struct {
	mu      sync.Mutex
	repo    MovementRepository
	clock   Clock
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// Option configures a LedgerUseCase.
type Option func(*LedgerUseCase)

// WithMetrics records ledger metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(uc *LedgerUseCase) {
		uc.metrics = m
	}
}

// WithLogger sets the logger used for movement and rejection logs.
func WithLogger(logger zerolog.Logger) Option {
	return func(uc *LedgerUseCase) {
		uc.logger = logger
	}
}

// NewLedgerUseCase creates a new LedgerUseCase. It panics if repo or clock is nil.
func NewLedgerUseCase(repo MovementRepository, clock Clock, opts ...Option) *LedgerUseCase {
	if repo == nil {
		panic("usecase: MovementRepository cannot be nil")
	}
	if clock == nil {
		panic("usecase: Clock cannot be nil")
	}

	uc := &LedgerUseCase{
		repo:   repo,
		clock:  clock,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// Deposit records a deposit of amount.
func (uc *LedgerUseCase) Deposit(ctx context.Context, amount domain.Money) (domain.Movement, error) {
	if !amount.IsSet() {
		return domain.Movement{}, uc.reject("deposit", fmt.Errorf("%w: amount", domain.ErrMissingField))
	}

	uc.lock()
	defer uc.mu.Unlock()

	return uc.appendMovement(ctx, "deposit", domain.MovementTypeDeposit, amount)
}

// Withdraw records a withdrawal of amount, or returns an
// *domain.InsufficientFundsError if the balance does not cover it.
// On rejection the history is left untouched.
func (uc *LedgerUseCase) Withdraw(ctx context.Context, amount domain.Money) (domain.Movement, error) {
	if !amount.IsSet() {
		return domain.Movement{}, uc.reject("withdraw", fmt.Errorf("%w: amount", domain.ErrMissingField))
	}

	uc.lock()
	defer uc.mu.Unlock()

	balance, err := uc.balance(ctx)
	if err != nil {
		return domain.Movement{}, uc.reject("withdraw", err)
	}

	if balance.LessThan(amount) {
		return domain.Movement{}, uc.reject("withdraw", &domain.InsufficientFundsError{
			Available: balance,
			Requested: amount,
		})
	}

	return uc.appendMovement(ctx, "withdraw", domain.MovementTypeWithdraw, amount)
}

// Record dispatches to Deposit or Withdraw according to kind.
func (uc *LedgerUseCase) Record(ctx context.Context, kind domain.MovementType, amount domain.Money) (domain.Movement, error) {
	switch kind {
	case domain.MovementTypeDeposit:
		return uc.Deposit(ctx, amount)
	case domain.MovementTypeWithdraw:
		return uc.Withdraw(ctx, amount)
	case "":
		return domain.Movement{}, uc.reject("record", fmt.Errorf("%w: type", domain.ErrMissingField))
	default:
		return domain.Movement{}, uc.reject("record", fmt.Errorf("%w: %q", domain.ErrInvalidMovementType, kind))
	}
}

// GetBalance recomputes the balance from the full history.
func (uc *LedgerUseCase) GetBalance(ctx context.Context) (domain.Money, error) {
	uc.lock()
	defer uc.mu.Unlock()

	balance, err := uc.balance(ctx)
	if err != nil {
		return domain.Money{}, err
	}

	if uc.metrics != nil {
		uc.metrics.Balance.Set(balance.Decimal().InexactFloat64())
	}

	return balance, nil
}

// ListMovements returns every movement, newest first.
func (uc *LedgerUseCase) ListMovements(ctx context.Context) ([]domain.Movement, error) {
	uc.lock()
	defer uc.mu.Unlock()

	return uc.repo.ListByTimeDesc(ctx)
}

// ConsistencyReport summarizes a replay of the movement history.
type ConsistencyReport struct {
	Consistent  bool
	Movements   int
	Deposits    decimal.Decimal
	Withdrawals decimal.Decimal
	Balance     decimal.Decimal
	// LowestBalance is the smallest running balance seen during replay.
	LowestBalance decimal.Decimal
}

// CheckConsistency replays the history oldest first and verifies that the
// running balance never went below zero. Movements sharing a timestamp are
// replayed in ID order, which follows creation order for ULIDs.
func (uc *LedgerUseCase) CheckConsistency(ctx context.Context) (ConsistencyReport, error) {
	uc.lock()
	defer uc.mu.Unlock()

	movements, err := uc.repo.ListByTimeDesc(ctx)
	if err != nil {
		return ConsistencyReport{}, err
	}

	slices.SortFunc(movements, func(a, b domain.Movement) int {
		if c := a.OccurredAt().Compare(b.OccurredAt()); c != 0 {
			return c
		}
		return cmp.Compare(a.ID(), b.ID())
	})

	report := ConsistencyReport{
		Consistent:    true,
		Movements:     len(movements),
		Deposits:      decimal.Zero,
		Withdrawals:   decimal.Zero,
		Balance:       decimal.Zero,
		LowestBalance: decimal.Zero,
	}

	for _, m := range movements {
		switch m.Type() {
		case domain.MovementTypeDeposit:
			report.Deposits = report.Deposits.Add(m.Amount().Decimal())
		case domain.MovementTypeWithdraw:
			report.Withdrawals = report.Withdrawals.Add(m.Amount().Decimal())
		}

		report.Balance = report.Balance.Add(m.SignedAmount())
		if report.Balance.LessThan(report.LowestBalance) {
			report.LowestBalance = report.Balance
		}
	}

	if report.LowestBalance.IsNegative() {
		report.Consistent = false
		uc.logger.Error().
			Str("lowest_balance", report.LowestBalance.StringFixed(domain.Scale)).
			Int("movements", report.Movements).
			Msg("ledger replay went negative")

		return report, ErrInconsistentLedger
	}

	return report, nil
}

// balance must be called with uc.mu held.
func (uc *LedgerUseCase) balance(ctx context.Context) (domain.Money, error) {
	movements, err := uc.repo.ListByTimeDesc(ctx)
	if err != nil {
		return domain.Money{}, err
	}

	total := decimal.Zero
	for _, m := range movements {
		total = total.Add(m.SignedAmount())
	}

	balance, err := domain.NewMoney(total)
	if err != nil {
		return domain.Money{}, fmt.Errorf("%w: computed balance %s", ErrInconsistentLedger, total)
	}

	return balance, nil
}

// appendMovement must be called with uc.mu held.
func (uc *LedgerUseCase) appendMovement(ctx context.Context, op string, kind domain.MovementType, amount domain.Money) (domain.Movement, error) {
	movement, err := domain.NewMovement(kind, amount, uc.clock.Now())
	if err != nil {
		return domain.Movement{}, uc.reject(op, err)
	}

	saved, err := uc.repo.Append(ctx, movement)
	if err != nil {
		return domain.Movement{}, uc.reject(op, err)
	}

	if uc.metrics != nil {
		uc.metrics.MovementsRecorded.WithLabelValues(string(kind)).Inc()
		uc.metrics.MovementAmount.WithLabelValues(string(kind)).Observe(amount.Decimal().InexactFloat64())
	}

	uc.logger.Info().
		Str("movement_id", saved.ID()).
		Str("type", string(saved.Type())).
		Str("amount", saved.Amount().String()).
		Time("occurred_at", saved.OccurredAt()).
		Msg("movement recorded")

	return saved, nil
}

func (uc *LedgerUseCase) lock() {
	start := time.Now()
	uc.mu.Lock()

	if uc.metrics != nil {
		uc.metrics.LockWait.Observe(time.Since(start).Seconds())
	}
}

func (uc *LedgerUseCase) reject(op string, err error) error {
	kind := errorType(err)

	if uc.metrics != nil {
		uc.metrics.OperationErrors.WithLabelValues(op, kind).Inc()
	}

	event := uc.logger.Warn()
	if kind == "internal" {
		event = uc.logger.Error()
	}
	event.Err(err).Str("operation", op).Str("error_type", kind).Msg("ledger operation rejected")

	return err
}

func errorType(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domain.ErrMissingField),
		errors.Is(err, domain.ErrInvalidMovementType),
		errors.Is(err, domain.ErrNonPositiveAmount),
		errors.Is(err, domain.ErrNegativeAmount),
		errors.Is(err, domain.ErrInvalidPrecision):
		return "validation"
	default:
		return "internal"
	}
}
