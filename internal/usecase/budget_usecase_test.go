package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bolsoapp/bolso/internal/domain"
	"github.com/bolsoapp/bolso/internal/usecase"
)

func (f *fixture) budgetUseCase() *usecase.BudgetUseCase {
	return usecase.NewBudgetUseCase(
		f.txManager,
		f.budgetRepo,
		f.categoryRepo,
		f.syncRepo,
		f.budgets,
		f.idGen,
		f.cache,
	)
}

func TestCreateBudget_DerivesConsumedFromExistingTransactions(t *testing.T) {
	f := newFixture()
	f.seedAccount("acc-1", 1000)
	f.seedCategory("cat-food", domain.CategoryExpense)

	catID := "cat-food"
	txUC := f.transactionUseCase()
	_, err := txUC.CreateTransaction(context.Background(), usecase.CreateTransactionInput{
		AccountID:   "acc-1",
		CategoryID:  &catID,
		Amount:      decimal.NewFromInt(200),
		Kind:        domain.KindExpense,
		Date:        time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC),
		Effectuated: true,
	})
	require.NoError(t, err)

	budget, err := f.budgetUseCase().CreateBudget(context.Background(), usecase.CreateBudgetInput{
		CategoryID: "cat-food",
		Month:      3,
		Year:       2025,
		Planned:    decimal.NewFromInt(500),
	})
	require.NoError(t, err)

	assert.True(t, budget.Consumed.Equal(decimal.NewFromInt(200)),
		"consumed = %s", budget.Consumed)
}

func TestCreateBudget_RejectsIncomeCategory(t *testing.T) {
	f := newFixture()
	f.seedCategory("cat-salary", domain.CategoryIncome)

	_, err := f.budgetUseCase().CreateBudget(context.Background(), usecase.CreateBudgetInput{
		CategoryID: "cat-salary",
		Month:      3,
		Year:       2025,
		Planned:    decimal.NewFromInt(500),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreateBudget_RejectsDuplicatePeriod(t *testing.T) {
	f := newFixture()
	f.seedCategory("cat-food", domain.CategoryExpense)
	f.seedBudget("bud-1", "cat-food", 3, 2025, 500)

	_, err := f.budgetUseCase().CreateBudget(context.Background(), usecase.CreateBudgetInput{
		CategoryID: "cat-food",
		Month:      3,
		Year:       2025,
		Planned:    decimal.NewFromInt(300),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBudgetExists)
}

func TestBudgetAggregator_PublishesThresholdEscalation(t *testing.T) {
	f := newFixture()
	f.seedAccount("acc-1", 1000)
	f.seedCategory("cat-food", domain.CategoryExpense)
	f.seedBudget("bud-1", "cat-food", 3, 2025, 100)

	catID := "cat-food"
	uc := f.transactionUseCase()

	// 40% of planned: no event.
	_, err := uc.CreateTransaction(context.Background(), usecase.CreateTransactionInput{
		AccountID:   "acc-1",
		CategoryID:  &catID,
		Amount:      decimal.NewFromInt(40),
		Kind:        domain.KindExpense,
		Date:        time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC),
		Effectuated: true,
	})
	require.NoError(t, err)
	assert.Empty(t, f.bus.Published())

	// 90% total: escalates past info straight to warning.
	_, err = uc.CreateTransaction(context.Background(), usecase.CreateTransactionInput{
		AccountID:   "acc-1",
		CategoryID:  &catID,
		Amount:      decimal.NewFromInt(50),
		Kind:        domain.KindExpense,
		Date:        time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC),
		Effectuated: true,
	})
	require.NoError(t, err)

	events := f.bus.Published()
	require.Len(t, events, 1)
	threshold, ok := events[0].(domain.BudgetThresholdEvent)
	require.True(t, ok)
	assert.Equal(t, "bud-1", threshold.BudgetID)
	assert.Equal(t, domain.BudgetAlertWarning, threshold.Level)

	// 110% total: critical.
	_, err = uc.CreateTransaction(context.Background(), usecase.CreateTransactionInput{
		AccountID:   "acc-1",
		CategoryID:  &catID,
		Amount:      decimal.NewFromInt(20),
		Kind:        domain.KindExpense,
		Date:        time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC),
		Effectuated: true,
	})
	require.NoError(t, err)

	events = f.bus.Published()
	require.Len(t, events, 2)
	threshold, ok = events[1].(domain.BudgetThresholdEvent)
	require.True(t, ok)
	assert.Equal(t, domain.BudgetAlertCritical, threshold.Level)
}

func TestReconcilePeriod_RecomputesAllBudgets(t *testing.T) {
	f := newFixture()
	f.seedCategory("cat-food", domain.CategoryExpense)
	f.seedCategory("cat-fun", domain.CategoryExpense)
	f.seedBudget("bud-food", "cat-food", 3, 2025, 500)
	f.seedBudget("bud-fun", "cat-fun", 3, 2025, 500)

	// Drift the stored values; reconciliation must restore both from the
	// transaction log (empty here, so both go back to zero).
	f.budgetRepo.Budgets["bud-food"].Consumed = decimal.NewFromInt(999)
	f.budgetRepo.Budgets["bud-fun"].Consumed = decimal.NewFromInt(42)

	require.NoError(t, f.budgetUseCase().ReconcilePeriod(context.Background(), 3, 2025))

	assert.True(t, f.budgetRepo.Budgets["bud-food"].Consumed.IsZero())
	assert.True(t, f.budgetRepo.Budgets["bud-fun"].Consumed.IsZero())
}

func TestDeleteBudget_WritesTombstoneOnlyWhenServerKnowsIt(t *testing.T) {
	f := newFixture()
	f.seedCategory("cat-food", domain.CategoryExpense)
	f.seedBudget("bud-1", "cat-food", 3, 2025, 500)

	// Server has already seen the budget.
	require.NoError(t, f.syncRepo.Upsert(context.Background(), nil, &domain.SyncState{
		EntityType:    domain.EntityBudget,
		EntityID:      "bud-1",
		ServerVersion: 3,
	}))

	require.NoError(t, f.budgetUseCase().DeleteBudget(context.Background(), "bud-1"))

	state, err := f.syncRepo.Get(context.Background(), nil, domain.EntityBudget, "bud-1")
	require.NoError(t, err)
	assert.True(t, state.Deleted)
	assert.Equal(t, domain.OpDelete, state.Operation())
}
