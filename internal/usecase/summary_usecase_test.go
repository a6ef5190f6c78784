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

func (f *fixture) summaryUseCase() *usecase.SummaryUseCase {
	return usecase.NewSummaryUseCase(
		f.accountRepo,
		f.transactionRepo,
		f.budgetRepo,
		f.goalRepo,
		f.cache,
	)
}

func seedMonth(f *fixture) {
	f.seedAccount("acc-1", 1000)
	f.seedCategory("cat-food", domain.CategoryExpense)
	f.seedCategory("cat-salary", domain.CategoryIncome)

	food := "cat-food"
	salary := "cat-salary"
	f.transactionRepo.Transactions["tx-1"] = &domain.Transaction{
		ID: "tx-1", AccountID: "acc-1", CategoryID: &salary,
		Amount: decimal.NewFromInt(3000), Kind: domain.KindIncome,
		Date: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), Effectuated: true,
	}
	f.transactionRepo.Transactions["tx-2"] = &domain.Transaction{
		ID: "tx-2", AccountID: "acc-1", CategoryID: &food,
		Amount: decimal.NewFromInt(400), Kind: domain.KindExpense,
		Date: time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC), Effectuated: true,
	}
	// Pending: excluded from month totals.
	f.transactionRepo.Transactions["tx-3"] = &domain.Transaction{
		ID: "tx-3", AccountID: "acc-1", CategoryID: &food,
		Amount: decimal.NewFromInt(50), Kind: domain.KindExpense,
		Date: time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC), Effectuated: false,
	}
	// Other month: excluded.
	f.transactionRepo.Transactions["tx-4"] = &domain.Transaction{
		ID: "tx-4", AccountID: "acc-1", CategoryID: &food,
		Amount: decimal.NewFromInt(999), Kind: domain.KindExpense,
		Date: time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC), Effectuated: true,
	}
}

func TestDashboard_MonthTotals(t *testing.T) {
	f := newFixture()
	seedMonth(f)

	summary, err := f.summaryUseCase().Dashboard(context.Background(), 3, 2025)
	require.NoError(t, err)

	assert.True(t, summary.MonthIncome.Equal(decimal.NewFromInt(3000)))
	assert.True(t, summary.MonthExpense.Equal(decimal.NewFromInt(400)))
	assert.True(t, summary.MonthNet.Equal(decimal.NewFromInt(2600)))
	assert.True(t, summary.TotalBalance.Equal(decimal.NewFromInt(1000)))
	require.Len(t, summary.Accounts, 1)
}

func TestDashboard_ExcludedAccountNotInTotal(t *testing.T) {
	f := newFixture()
	f.seedAccount("acc-1", 1000)
	hidden := f.seedAccount("acc-2", 500)
	hidden.IncludeInTotal = false

	summary, err := f.summaryUseCase().Dashboard(context.Background(), 3, 2025)
	require.NoError(t, err)

	assert.True(t, summary.TotalBalance.Equal(decimal.NewFromInt(1000)))
	assert.Len(t, summary.Accounts, 2)
}

func TestDashboard_ServedFromCacheUntilInvalidated(t *testing.T) {
	f := newFixture()
	seedMonth(f)
	uc := f.summaryUseCase()

	first, err := uc.Dashboard(context.Background(), 3, 2025)
	require.NoError(t, err)

	// A write bypassing the usecase layer is invisible until invalidation.
	f.transactionRepo.Transactions["tx-5"] = &domain.Transaction{
		ID: "tx-5", AccountID: "acc-1",
		Amount: decimal.NewFromInt(100), Kind: domain.KindIncome,
		Date: time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), Effectuated: true,
	}

	cached, err := uc.Dashboard(context.Background(), 3, 2025)
	require.NoError(t, err)
	assert.True(t, cached.MonthIncome.Equal(first.MonthIncome))

	f.cache.DeletePrefix(usecase.CacheNamespaceDashboard)

	fresh, err := uc.Dashboard(context.Background(), 3, 2025)
	require.NoError(t, err)
	assert.True(t, fresh.MonthIncome.Equal(decimal.NewFromInt(3100)))
}

func TestReport_GroupsByCategory(t *testing.T) {
	f := newFixture()
	seedMonth(f)

	report, err := f.summaryUseCase().Report(context.Background(), 3, 2025)
	require.NoError(t, err)
	require.Len(t, report, 2)

	byCategory := make(map[string]usecase.CategoryTotal, len(report))
	for _, row := range report {
		byCategory[row.CategoryID] = row
	}

	salary := byCategory["cat-salary"]
	assert.Equal(t, string(domain.KindIncome), salary.Kind)
	assert.True(t, salary.Total.Equal(decimal.NewFromInt(3000)))
	assert.Equal(t, 1, salary.Count)

	food := byCategory["cat-food"]
	assert.True(t, food.Total.Equal(decimal.NewFromInt(400)))
	assert.Equal(t, 1, food.Count)
}

func TestDashboard_RejectsInvalidPeriod(t *testing.T) {
	f := newFixture()

	_, err := f.summaryUseCase().Dashboard(context.Background(), 13, 2025)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
