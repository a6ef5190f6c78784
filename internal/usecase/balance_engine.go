package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/bolsoapp/bolso/internal/domain"
)

// BalanceEngine derives account balances from the transaction log. It never
// trusts a cached balance: every recomputation folds the full transaction
// set of the account, so the ledger converges even after out-of-order edits
// or sync merges.
type BalanceEngine struct {
	accountRepo     AccountRepository
	transactionRepo TransactionRepository
}

// NewBalanceEngine creates a new BalanceEngine.
func NewBalanceEngine(accountRepo AccountRepository, transactionRepo TransactionRepository) *BalanceEngine {
	return &BalanceEngine{
		accountRepo:     accountRepo,
		transactionRepo: transactionRepo,
	}
}

// Recompute recalculates the balance of each given account inside the write
// transaction, so a committed write is never observable with a stale
// balance.
func (e *BalanceEngine) Recompute(ctx context.Context, tx Transaction, accountIDs ...string) error {
	now := time.Now().UTC()

	seen := make(map[string]bool, len(accountIDs))
	for _, id := range accountIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		account, err := e.accountRepo.GetByID(ctx, tx, id)
		if err != nil {
			return err
		}

		transactions, err := e.transactionRepo.ListTouchingAccount(ctx, tx, id)
		if err != nil {
			return err
		}

		balance := account.InitialBalance
		for _, t := range transactions {
			balance = balance.Add(t.SignedAmountFor(id))
		}

		if err := e.accountRepo.UpdateBalance(ctx, tx, id, balance, now); err != nil {
			return err
		}
	}

	return nil
}

// BudgetAggregator keeps each budget's consumed amount equal to the sum of
// effectuated expense transactions for its category and period.
type BudgetAggregator struct {
	budgetRepo      BudgetRepository
	transactionRepo TransactionRepository
	bus             EventBus
}

// NewBudgetAggregator creates a new BudgetAggregator.
func NewBudgetAggregator(budgetRepo BudgetRepository, transactionRepo TransactionRepository, bus EventBus) *BudgetAggregator {
	return &BudgetAggregator{
		budgetRepo:      budgetRepo,
		transactionRepo: transactionRepo,
		bus:             bus,
	}
}

// RecomputeCategory refreshes the budget matching the category and period,
// if one exists. It publishes a threshold event when the write moved the
// budget into a higher alert level.
func (a *BudgetAggregator) RecomputeCategory(ctx context.Context, tx Transaction, categoryID string, month, year int) error {
	if categoryID == "" {
		return nil
	}

	budget, err := a.budgetRepo.GetByCategoryPeriod(ctx, tx, categoryID, month, year)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}

	return a.recompute(ctx, tx, budget)
}

// RecomputePeriod refreshes every active budget of a period in one pass,
// for nightly reconciliation and bulk imports.
func (a *BudgetAggregator) RecomputePeriod(ctx context.Context, tx Transaction, month, year int) error {
	budgets, err := a.budgetRepo.ListByPeriod(ctx, tx, month, year, true)
	if err != nil {
		return err
	}

	for _, budget := range budgets {
		if err := a.recompute(ctx, tx, budget); err != nil {
			return err
		}
	}

	return nil
}

func (a *BudgetAggregator) recompute(ctx context.Context, tx Transaction, budget *domain.Budget) error {
	consumed, err := a.transactionRepo.SumEffectuatedExpenses(ctx, tx, budget.CategoryID, budget.Month, budget.Year)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	previousLevel := budget.AlertLevel()

	if err := a.budgetRepo.UpdateConsumed(ctx, tx, budget.ID, consumed, now); err != nil {
		return err
	}

	budget.Consumed = consumed
	if level := budget.AlertLevel(); level != previousLevel && level != domain.BudgetAlertNone && a.bus != nil {
		a.bus.Publish(domain.BudgetThresholdEvent{
			BudgetID:   budget.ID,
			CategoryID: budget.CategoryID,
			Level:      level,
			Consumed:   budget.Consumed,
			Planned:    budget.Planned,
			OccurredAt: now,
		})
	}

	return nil
}
