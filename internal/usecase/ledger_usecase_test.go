package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/cashbook/internal/adapter/repository/memory"
	"github.com/iho/cashbook/internal/domain"
	"github.com/iho/cashbook/internal/infrastructure/metrics"
	"github.com/iho/cashbook/internal/usecase"
	"github.com/iho/cashbook/internal/usecase/mocks"
)

// stepClock returns base, base+1s, base+2s, ... on successive calls.
func stepClock(base time.Time) usecase.Clock {
	var mu sync.Mutex
	next := base

	return usecase.ClockFunc(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := next
		next = next.Add(time.Second)
		return now
	})
}

func newLedger(t *testing.T, opts ...usecase.Option) (*usecase.LedgerUseCase, *memory.MovementStore) {
	t.Helper()

	store := memory.NewMovementStore()
	clock := stepClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	return usecase.NewLedgerUseCase(store, clock, opts...), store
}

func money(s string) domain.Money {
	return domain.MustParseMoney(s)
}

func TestLedgerUseCase_EmptyLedger(t *testing.T) {
	uc, _ := newLedger(t)
	ctx := context.Background()

	balance, err := uc.GetBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0.00", balance.String())

	list, err := uc.ListMovements(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestLedgerUseCase_DepositsSum(t *testing.T) {
	uc, _ := newLedger(t)
	ctx := context.Background()

	for _, amount := range []string{"10.10", "0.01", "99.89", "1000"} {
		_, err := uc.Deposit(ctx, money(amount))
		require.NoError(t, err)
	}

	balance, err := uc.GetBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1110.00", balance.String())
}

func TestLedgerUseCase_DepositReturnsRecordedMovement(t *testing.T) {
	uc, _ := newLedger(t)
	ctx := context.Background()

	m, err := uc.Deposit(ctx, money("100.5"))
	require.NoError(t, err)

	assert.NotEmpty(t, m.ID())
	assert.Equal(t, domain.MovementTypeDeposit, m.Type())
	assert.Equal(t, "100.50", m.Amount().String())
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), m.OccurredAt())

	list, err := uc.ListMovements(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Equal(m))
}

func TestLedgerUseCase_MixedSequence(t *testing.T) {
	uc, _ := newLedger(t)
	ctx := context.Background()

	steps := []struct {
		kind   domain.MovementType
		amount string
	}{
		{domain.MovementTypeDeposit, "100.00"},
		{domain.MovementTypeWithdraw, "30.25"},
		{domain.MovementTypeDeposit, "5.50"},
		{domain.MovementTypeWithdraw, "75.25"},
	}

	for _, s := range steps {
		_, err := uc.Record(ctx, s.kind, money(s.amount))
		require.NoError(t, err)
	}

	balance, err := uc.GetBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0.00", balance.String())
}

func TestLedgerUseCase_DepositThenWithdrawScenario(t *testing.T) {
	uc, _ := newLedger(t)
	ctx := context.Background()

	deposit, err := uc.Deposit(ctx, money("100.50"))
	require.NoError(t, err)

	withdrawal, err := uc.Withdraw(ctx, money("50.25"))
	require.NoError(t, err)

	balance, err := uc.GetBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, "50.25", balance.String())

	list, err := uc.ListMovements(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].Equal(withdrawal), "newest movement first")
	assert.True(t, list[1].Equal(deposit))
}

func TestLedgerUseCase_WithdrawExactBalance(t *testing.T) {
	uc, _ := newLedger(t)
	ctx := context.Background()

	_, err := uc.Deposit(ctx, money("42.42"))
	require.NoError(t, err)

	_, err = uc.Withdraw(ctx, money("42.42"))
	require.NoError(t, err)

	balance, err := uc.GetBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0.00", balance.String())
}

func TestLedgerUseCase_WithdrawFromEmptyLedger(t *testing.T) {
	uc, store := newLedger(t)
	ctx := context.Background()

	_, err := uc.Withdraw(ctx, money("10.00"))

	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	var insufficient *domain.InsufficientFundsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "0.00", insufficient.Available.String())
	assert.Equal(t, "10.00", insufficient.Requested.String())
	assert.Equal(t, "insufficient funds: current balance is 0.00, requested 10.00", err.Error())
	assert.Equal(t, 0, store.Len())
}

func TestLedgerUseCase_RejectedOverdraftLeavesHistoryUnchanged(t *testing.T) {
	uc, _ := newLedger(t)
	ctx := context.Background()

	_, err := uc.Deposit(ctx, money("20.00"))
	require.NoError(t, err)

	before, err := uc.ListMovements(ctx)
	require.NoError(t, err)

	_, err = uc.Withdraw(ctx, money("20.01"))
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	after, err := uc.ListMovements(ctx)
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range before {
		assert.True(t, before[i].Equal(after[i]))
	}

	balance, err := uc.GetBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, "20.00", balance.String())
}

func TestLedgerUseCase_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		call    func(uc *usecase.LedgerUseCase) error
		wantErr error
	}{
		{
			name: "deposit without amount",
			call: func(uc *usecase.LedgerUseCase) error {
				_, err := uc.Deposit(context.Background(), domain.Money{})
				return err
			},
			wantErr: domain.ErrMissingField,
		},
		{
			name: "withdraw without amount",
			call: func(uc *usecase.LedgerUseCase) error {
				_, err := uc.Withdraw(context.Background(), domain.Money{})
				return err
			},
			wantErr: domain.ErrMissingField,
		},
		{
			name: "deposit of zero",
			call: func(uc *usecase.LedgerUseCase) error {
				_, err := uc.Deposit(context.Background(), domain.Zero())
				return err
			},
			wantErr: domain.ErrNonPositiveAmount,
		},
		{
			name: "withdraw of zero",
			call: func(uc *usecase.LedgerUseCase) error {
				_, err := uc.Withdraw(context.Background(), domain.Zero())
				return err
			},
			wantErr: domain.ErrNonPositiveAmount,
		},
		{
			name: "record without type",
			call: func(uc *usecase.LedgerUseCase) error {
				_, err := uc.Record(context.Background(), "", money("1"))
				return err
			},
			wantErr: domain.ErrMissingField,
		},
		{
			name: "record with unknown type",
			call: func(uc *usecase.LedgerUseCase) error {
				_, err := uc.Record(context.Background(), domain.MovementType("TRANSFER"), money("1"))
				return err
			},
			wantErr: domain.ErrInvalidMovementType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc, store := newLedger(t)

			err := tt.call(uc)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 0, store.Len())
		})
	}
}

func TestLedgerUseCase_RecordDispatches(t *testing.T) {
	uc, _ := newLedger(t)
	ctx := context.Background()

	dep, err := uc.Record(ctx, domain.MovementTypeDeposit, money("15"))
	require.NoError(t, err)
	assert.Equal(t, domain.MovementTypeDeposit, dep.Type())

	wd, err := uc.Record(ctx, domain.MovementTypeWithdraw, money("5"))
	require.NoError(t, err)
	assert.Equal(t, domain.MovementTypeWithdraw, wd.Type())

	_, err = uc.Record(ctx, domain.MovementTypeWithdraw, money("10.01"))
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
}

func TestLedgerUseCase_ConcurrentDeposits(t *testing.T) {
	uc, _ := newLedger(t)
	ctx := context.Background()

	const workers = 10

	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := uc.Deposit(ctx, money("10.00")); err != nil {
				errs <- err
			}
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("deposit failed: %v", err)
	}

	balance, err := uc.GetBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, "100.00", balance.String())

	list, err := uc.ListMovements(ctx)
	require.NoError(t, err)
	assert.Len(t, list, workers)
}

func TestLedgerUseCase_ConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	uc, _ := newLedger(t)
	ctx := context.Background()

	_, err := uc.Deposit(ctx, money("50.00"))
	require.NoError(t, err)

	const workers = 20

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := uc.Withdraw(ctx, money("10.00"))

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrInsufficientFunds):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, workers-5, rejected)

	balance, err := uc.GetBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0.00", balance.String())

	report, err := uc.CheckConsistency(ctx)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
}

func TestLedgerUseCase_ConcurrentMixedWorkload(t *testing.T) {
	uc, _ := newLedger(t)
	ctx := context.Background()

	const workers = 40

	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = uc.Deposit(ctx, money("3.00"))
				return
			}
			_, _ = uc.Withdraw(ctx, money("2.00"))
		}()
	}
	wg.Wait()

	report, err := uc.CheckConsistency(ctx)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.False(t, report.LowestBalance.IsNegative())

	balance, err := uc.GetBalance(ctx)
	require.NoError(t, err)
	assert.True(t, balance.Decimal().Equal(report.Balance))
	assert.True(t, report.Deposits.Sub(report.Withdrawals).Equal(report.Balance))
}

func TestLedgerUseCase_CheckConsistency(t *testing.T) {
	uc, _ := newLedger(t)
	ctx := context.Background()

	_, err := uc.Deposit(ctx, money("100"))
	require.NoError(t, err)
	_, err = uc.Withdraw(ctx, money("60"))
	require.NoError(t, err)
	_, err = uc.Deposit(ctx, money("0.5"))
	require.NoError(t, err)

	report, err := uc.CheckConsistency(ctx)
	require.NoError(t, err)

	assert.True(t, report.Consistent)
	assert.Equal(t, 3, report.Movements)
	assert.Equal(t, "100.50", report.Deposits.StringFixed(2))
	assert.Equal(t, "60.00", report.Withdrawals.StringFixed(2))
	assert.Equal(t, "40.50", report.Balance.StringFixed(2))
	assert.Equal(t, "0.00", report.LowestBalance.StringFixed(2))
}

func TestLedgerUseCase_CheckConsistencyDetectsNegativeReplay(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockMovementRepository(ctrl)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	withdrawal, err := domain.NewMovement(domain.MovementTypeWithdraw, money("30"), base)
	require.NoError(t, err)
	deposit, err := domain.NewMovement(domain.MovementTypeDeposit, money("50"), base.Add(time.Minute))
	require.NoError(t, err)

	repo.EXPECT().ListByTimeDesc(gomock.Any()).Return([]domain.Movement{deposit, withdrawal}, nil)

	uc := usecase.NewLedgerUseCase(repo, usecase.SystemClock())
	report, err := uc.CheckConsistency(context.Background())

	require.ErrorIs(t, err, usecase.ErrInconsistentLedger)
	assert.False(t, report.Consistent)
	assert.Equal(t, "-30.00", report.LowestBalance.StringFixed(2))
	assert.Equal(t, "20.00", report.Balance.StringFixed(2))
}

func TestLedgerUseCase_RepositoryErrors(t *testing.T) {
	errStore := errors.New("store unavailable")

	tests := []struct {
		name  string
		setup func(repo *mocks.MockMovementRepository)
		call  func(uc *usecase.LedgerUseCase) error
	}{
		{
			name: "deposit append fails",
			setup: func(repo *mocks.MockMovementRepository) {
				repo.EXPECT().Append(gomock.Any(), gomock.Any()).Return(domain.Movement{}, errStore)
			},
			call: func(uc *usecase.LedgerUseCase) error {
				_, err := uc.Deposit(context.Background(), money("1"))
				return err
			},
		},
		{
			name: "withdraw balance read fails",
			setup: func(repo *mocks.MockMovementRepository) {
				repo.EXPECT().ListByTimeDesc(gomock.Any()).Return(nil, errStore)
			},
			call: func(uc *usecase.LedgerUseCase) error {
				_, err := uc.Withdraw(context.Background(), money("1"))
				return err
			},
		},
		{
			name: "balance read fails",
			setup: func(repo *mocks.MockMovementRepository) {
				repo.EXPECT().ListByTimeDesc(gomock.Any()).Return(nil, errStore)
			},
			call: func(uc *usecase.LedgerUseCase) error {
				_, err := uc.GetBalance(context.Background())
				return err
			},
		},
		{
			name: "list fails",
			setup: func(repo *mocks.MockMovementRepository) {
				repo.EXPECT().ListByTimeDesc(gomock.Any()).Return(nil, errStore)
			},
			call: func(uc *usecase.LedgerUseCase) error {
				_, err := uc.ListMovements(context.Background())
				return err
			},
		},
		{
			name: "consistency read fails",
			setup: func(repo *mocks.MockMovementRepository) {
				repo.EXPECT().ListByTimeDesc(gomock.Any()).Return(nil, errStore)
			},
			call: func(uc *usecase.LedgerUseCase) error {
				_, err := uc.CheckConsistency(context.Background())
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			repo := mocks.NewMockMovementRepository(ctrl)
			tt.setup(repo)

			uc := usecase.NewLedgerUseCase(repo, usecase.SystemClock())

			assert.ErrorIs(t, tt.call(uc), errStore)
		})
	}
}

func TestLedgerUseCase_WithdrawUsesClockOnlyOnSuccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockMovementRepository(ctrl)
	clock := mocks.NewMockClock(ctrl)

	at := time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)
	seed, err := domain.NewMovement(domain.MovementTypeDeposit, money("25"), at.Add(-time.Hour))
	require.NoError(t, err)

	gomock.InOrder(
		repo.EXPECT().ListByTimeDesc(gomock.Any()).Return([]domain.Movement{seed}, nil),
		clock.EXPECT().Now().Return(at),
		repo.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, m domain.Movement) (domain.Movement, error) {
				return m, nil
			},
		),
		repo.EXPECT().ListByTimeDesc(gomock.Any()).Return([]domain.Movement{seed}, nil),
	)

	uc := usecase.NewLedgerUseCase(repo, clock)

	m, err := uc.Withdraw(context.Background(), money("10"))
	require.NoError(t, err)
	assert.Equal(t, at, m.OccurredAt())
	assert.Equal(t, domain.MovementTypeWithdraw, m.Type())

	// Rejected withdrawal reads the balance but never stamps or appends.
	_, err = uc.Withdraw(context.Background(), money("30"))
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
}

func TestLedgerUseCase_Metrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	uc, _ := newLedger(t, usecase.WithMetrics(m))
	ctx := context.Background()

	_, err := uc.Deposit(ctx, money("30"))
	require.NoError(t, err)
	_, err = uc.Withdraw(ctx, money("10"))
	require.NoError(t, err)
	_, err = uc.Withdraw(ctx, money("100"))
	require.Error(t, err)
	_, err = uc.Deposit(ctx, domain.Zero())
	require.Error(t, err)

	_, err = uc.GetBalance(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.MovementsRecorded.WithLabelValues("DEPOSIT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MovementsRecorded.WithLabelValues("WITHDRAW")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationErrors.WithLabelValues("withdraw", "insufficient_funds")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationErrors.WithLabelValues("deposit", "validation")))
	assert.Equal(t, 20.0, testutil.ToFloat64(m.Balance))
}

func TestNewLedgerUseCase_PanicsOnNilDependencies(t *testing.T) {
	assert.Panics(t, func() {
		usecase.NewLedgerUseCase(nil, usecase.SystemClock())
	})
	assert.Panics(t, func() {
		usecase.NewLedgerUseCase(memory.NewMovementStore(), nil)
	})
}
