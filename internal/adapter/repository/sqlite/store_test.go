package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bolsoapp/bolso/internal/adapter/repository/sqlite"
	"github.com/bolsoapp/bolso/internal/domain"
	"github.com/bolsoapp/bolso/internal/usecase"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "ledger.db"))
	t.Cleanup(func() { store.Close() })
	return store
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testAccount(id string) *domain.Account {
	now := time.Now().UTC()
	return &domain.Account{
		ID:             id,
		Name:           "Checking",
		Kind:           domain.AccountChecking,
		Bank:           "Acme Bank",
		InitialBalance: dec("1000"),
		Balance:        dec("1000"),
		Active:         true,
		IncludeInTotal: true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestAccountRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	repo := sqlite.NewAccountRepository(store)

	account := testAccount("acc-1")
	require.NoError(t, repo.Create(ctx, nil, account))

	got, err := repo.GetByID(ctx, nil, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "Checking", got.Name)
	assert.Equal(t, domain.AccountChecking, got.Kind)
	assert.True(t, got.Balance.Equal(dec("1000")))
	assert.True(t, got.Active)
	assert.WithinDuration(t, account.CreatedAt, got.CreatedAt, time.Millisecond)

	require.NoError(t, repo.UpdateBalance(ctx, nil, "acc-1", dec("850"), time.Now()))
	got, err = repo.GetByID(ctx, nil, "acc-1")
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(dec("850")))
	// Initial balance is untouched by balance writes.
	assert.True(t, got.InitialBalance.Equal(dec("1000")))
}

func TestAccountRepositoryNotFound(t *testing.T) {
	ctx := context.Background()
	repo := sqlite.NewAccountRepository(newStore(t))

	_, err := repo.GetByID(ctx, nil, "missing")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = repo.UpdateBalance(ctx, nil, "missing", dec("1"), time.Now())
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestAccountRepositoryListFilters(t *testing.T) {
	ctx := context.Background()
	repo := sqlite.NewAccountRepository(newStore(t))

	checking := testAccount("acc-1")
	savings := testAccount("acc-2")
	savings.Name = "Savings"
	savings.Kind = domain.AccountSavings
	inactive := testAccount("acc-3")
	inactive.Name = "Old wallet"
	inactive.Active = false
	for _, a := range []*domain.Account{checking, savings, inactive} {
		require.NoError(t, repo.Create(ctx, nil, a))
	}

	all, err := repo.List(ctx, usecase.AccountFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	active, err := repo.List(ctx, usecase.AccountFilter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, active, 2)

	kind := domain.AccountSavings
	byKind, err := repo.List(ctx, usecase.AccountFilter{Kind: &kind})
	require.NoError(t, err)
	require.Len(t, byKind, 1)
	assert.Equal(t, "acc-2", byKind[0].ID)
}

func TestTransactionRepositoryTouchingAndSum(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	accounts := sqlite.NewAccountRepository(store)
	categories := sqlite.NewCategoryRepository(store)
	transactions := sqlite.NewTransactionRepository(store)

	now := time.Now().UTC()
	require.NoError(t, accounts.Create(ctx, nil, testAccount("acc-1")))
	dest := testAccount("acc-2")
	dest.Name = "Savings"
	require.NoError(t, accounts.Create(ctx, nil, dest))
	require.NoError(t, categories.Create(ctx, nil, &domain.Category{
		ID: "cat-food", Name: "Food", Kind: domain.CategoryExpense,
		CreatedAt: now, UpdatedAt: now,
	}))

	catFood := "cat-food"
	destID := "acc-2"
	date := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	items := []*domain.Transaction{
		{ID: "tx-1", AccountID: "acc-1", CategoryID: &catFood, Amount: dec("150"),
			Kind: domain.KindExpense, Date: date, Effectuated: true, CreatedAt: now, UpdatedAt: now},
		{ID: "tx-2", AccountID: "acc-1", CategoryID: &catFood, Amount: dec("40"),
			Kind: domain.KindExpense, Date: date.AddDate(0, 0, 1), CreatedAt: now, UpdatedAt: now},
		{ID: "tx-3", AccountID: "acc-1", DestinationAccountID: &destID, Amount: dec("200"),
			Kind: domain.KindTransfer, Date: date, Effectuated: true, CreatedAt: now, UpdatedAt: now},
		{ID: "tx-4", AccountID: "acc-2", CategoryID: &catFood, Amount: dec("999"),
			Kind: domain.KindExpense, Date: date.AddDate(0, 1, 0), Effectuated: true, CreatedAt: now, UpdatedAt: now},
	}
	for _, tr := range items {
		require.NoError(t, transactions.Create(ctx, nil, tr))
	}

	// The transfer destination sees the transfer without being its source.
	touching, err := transactions.ListTouchingAccount(ctx, nil, "acc-2")
	require.NoError(t, err)
	require.Len(t, touching, 2)

	n, err := transactions.CountByAccount(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// Pending tx-2 and next-month tx-4 stay out of the March sum.
	sum, err := transactions.SumEffectuatedExpenses(ctx, nil, "cat-food", 3, 2026)
	require.NoError(t, err)
	assert.True(t, sum.Equal(dec("150")), "got %s", sum)
}

func TestTransactionRepositoryListFilterWindow(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	accounts := sqlite.NewAccountRepository(store)
	transactions := sqlite.NewTransactionRepository(store)

	now := time.Now().UTC()
	require.NoError(t, accounts.Create(ctx, nil, testAccount("acc-1")))
	for i, day := range []int{5, 15, 25} {
		require.NoError(t, transactions.Create(ctx, nil, &domain.Transaction{
			ID: "tx-" + string(rune('a'+i)), AccountID: "acc-1", Amount: dec("10"),
			Kind:      domain.KindIncome,
			Date:      time.Date(2026, time.April, day, 0, 0, 0, 0, time.UTC),
			CreatedAt: now, UpdatedAt: now,
		}))
	}

	from := time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, time.April, 20, 0, 0, 0, 0, time.UTC)
	got, err := transactions.List(ctx, usecase.TransactionFilter{AccountID: "acc-1", From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "tx-b", got[0].ID)
}

func TestBudgetRepositoryPeriodUniqueness(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	categories := sqlite.NewCategoryRepository(store)
	budgets := sqlite.NewBudgetRepository(store)

	now := time.Now().UTC()
	require.NoError(t, categories.Create(ctx, nil, &domain.Category{
		ID: "cat-food", Name: "Food", Kind: domain.CategoryExpense,
		CreatedAt: now, UpdatedAt: now,
	}))

	budget := &domain.Budget{
		ID: "bud-1", CategoryID: "cat-food", Month: 3, Year: 2026,
		Planned: dec("500"), Consumed: dec("0"), Active: true,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, budgets.Create(ctx, nil, budget))

	dup := *budget
	dup.ID = "bud-2"
	assert.ErrorIs(t, budgets.Create(ctx, nil, &dup), domain.ErrPersistence)

	got, err := budgets.GetByCategoryPeriod(ctx, nil, "cat-food", 3, 2026)
	require.NoError(t, err)
	assert.Equal(t, "bud-1", got.ID)

	_, err = budgets.GetByCategoryPeriod(ctx, nil, "cat-food", 4, 2026)
	assert.ErrorIs(t, err, domain.ErrBudgetNotFound)

	require.NoError(t, budgets.UpdateConsumed(ctx, nil, "bud-1", dec("150"), time.Now()))
	got, err = budgets.GetByID(ctx, nil, "bud-1")
	require.NoError(t, err)
	assert.True(t, got.Consumed.Equal(dec("150")))
}

func TestGoalRepositoryCompletedAt(t *testing.T) {
	ctx := context.Background()
	repo := sqlite.NewGoalRepository(newStore(t))

	now := time.Now().UTC()
	goal := &domain.Goal{
		ID: "goal-1", Name: "Vacation",
		TargetAmount: dec("3000"), CurrentAmount: dec("0"),
		StartDate:  now,
		TargetDate: now.AddDate(0, 6, 0),
		CreatedAt:  now, UpdatedAt: now,
	}
	require.NoError(t, repo.Create(ctx, nil, goal))

	got, err := repo.GetByID(ctx, nil, "goal-1")
	require.NoError(t, err)
	assert.Nil(t, got.CompletedAt)

	done := now.Add(time.Hour)
	got.Completed = true
	got.CompletedAt = &done
	got.CurrentAmount = dec("3000")
	require.NoError(t, repo.Update(ctx, nil, got))

	open, err := repo.List(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, open)

	all, err := repo.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.NotNil(t, all[0].CompletedAt)
	assert.WithinDuration(t, done, *all[0].CompletedAt, time.Millisecond)
}

func TestSyncStateRepositoryDirtyLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := sqlite.NewSyncStateRepository(newStore(t))

	now := time.Now().UTC()
	state := &domain.SyncState{
		EntityType: domain.EntityTransaction,
		EntityID:   "tx-1",
		Dirty:      true,
		ModifiedAt: now,
	}
	require.NoError(t, repo.Upsert(ctx, nil, state))

	dirty, err := repo.ListDirty(ctx)
	require.NoError(t, err)
	require.Len(t, dirty, 1)
	assert.Equal(t, domain.OpCreate, dirty[0].Operation())

	n, err := repo.CountDirty(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, repo.MarkClean(ctx, domain.EntityTransaction, "tx-1", 7, now))
	got, err := repo.Get(ctx, nil, domain.EntityTransaction, "tx-1")
	require.NoError(t, err)
	assert.False(t, got.Dirty)
	assert.EqualValues(t, 7, got.ServerVersion)
	require.NotNil(t, got.LastSyncedAt)

	n, err = repo.CountDirty(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, repo.Delete(ctx, nil, domain.EntityTransaction, "tx-1"))
	_, err = repo.Get(ctx, nil, domain.EntityTransaction, "tx-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSyncStateRepositoryCheckpoint(t *testing.T) {
	ctx := context.Background()
	repo := sqlite.NewSyncStateRepository(newStore(t))

	cp, err := repo.Checkpoint(ctx)
	require.NoError(t, err)
	assert.True(t, cp.IsZero())

	at := time.Date(2026, time.March, 10, 12, 30, 0, 0, time.UTC)
	require.NoError(t, repo.SetCheckpoint(ctx, at))

	cp, err = repo.Checkpoint(ctx)
	require.NoError(t, err)
	assert.True(t, cp.Equal(at))
}

func TestTxManagerRollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	manager := sqlite.NewTxManager(store)
	repo := sqlite.NewAccountRepository(store)

	tx, err := manager.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, tx, testAccount("acc-1")))
	require.NoError(t, tx.Rollback(ctx))

	_, err = repo.GetByID(ctx, nil, "acc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTxManagerCommitPersistsAndUnblocksNextWriter(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	manager := sqlite.NewTxManager(store)
	repo := sqlite.NewAccountRepository(store)

	tx, err := manager.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, tx, testAccount("acc-1")))
	require.NoError(t, tx.Commit(ctx))
	// Deferred rollback after commit is a no-op.
	require.NoError(t, tx.Rollback(ctx))

	tx2, err := manager.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, tx2, testAccount("acc-2")))
	require.NoError(t, tx2.Commit(ctx))

	all, err := repo.List(ctx, usecase.AccountFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestULIDGeneratorMonotonicShape(t *testing.T) {
	gen := sqlite.NewULIDGenerator()
	a := gen.Generate()
	b := gen.Generate()
	assert.Len(t, a, 26)
	assert.NotEqual(t, a, b)
}
