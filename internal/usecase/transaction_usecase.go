package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bolsoapp/bolso/internal/domain"
)

// TransactionUseCase is the write API for transactions. Every mutation runs
// validate -> persist -> mark dirty -> recompute derived values inside one
// storage transaction, then invalidates the aggregate cache.
type TransactionUseCase struct {
	txManager       TransactionManager
	accountRepo     AccountRepository
	categoryRepo    CategoryRepository
	transactionRepo TransactionRepository
	syncRepo        SyncStateRepository
	balances        *BalanceEngine
	budgets         *BudgetAggregator
	idGen           IDGenerator
	cache           Cache
}

// NewTransactionUseCase creates a new TransactionUseCase.
func NewTransactionUseCase(
	txManager TransactionManager,
	accountRepo AccountRepository,
	categoryRepo CategoryRepository,
	transactionRepo TransactionRepository,
	syncRepo SyncStateRepository,
	balances *BalanceEngine,
	budgets *BudgetAggregator,
	idGen IDGenerator,
	cache Cache,
) *TransactionUseCase {
	return &TransactionUseCase{
		txManager:       txManager,
		accountRepo:     accountRepo,
		categoryRepo:    categoryRepo,
		transactionRepo: transactionRepo,
		syncRepo:        syncRepo,
		balances:        balances,
		budgets:         budgets,
		idGen:           idGen,
		cache:           cache,
	}
}

// CreateTransactionInput represents input for creating a transaction.
type CreateTransactionInput struct {
	AccountID            string
	DestinationAccountID *string
	CategoryID           *string
	Description          string
	Notes                string
	Amount               decimal.Decimal
	Kind                 domain.TransactionKind
	Date                 time.Time
	Effectuated          bool
	Recurring            bool
	// Installments > 1 splits the amount into that many monthly
	// transactions sharing one group id.
	Installments int
	Reference    string
}

// CreateTransaction validates, persists and recomputes in one atomic step.
// With Installments > 1 it returns every installment created.
func (uc *TransactionUseCase) CreateTransaction(ctx context.Context, input CreateTransactionInput) ([]*domain.Transaction, error) {
	now := time.Now().UTC()

	transactions, err := uc.buildTransactions(input, now)
	if err != nil {
		return nil, err
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	defer tx.Rollback(ctx)

	if err := uc.checkReferences(ctx, tx, transactions[0]); err != nil {
		return nil, err
	}

	for _, t := range transactions {
		if err := uc.transactionRepo.Create(ctx, tx, t); err != nil {
			return nil, err
		}
		if err := markDirty(ctx, tx, uc.syncRepo, domain.EntityTransaction, t.ID, now); err != nil {
			return nil, err
		}
	}

	if err := uc.recompute(ctx, tx, transactions, nil); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	invalidateAggregates(uc.cache)

	return transactions, nil
}

// UpdateTransactionInput is a partial patch; nil fields stay unchanged.
type UpdateTransactionInput struct {
	Description *string
	Notes       *string
	Amount      *decimal.Decimal
	Date        *time.Time
	Effectuated *bool
	CategoryID  *string
	AccountID   *string
	Reference   *string
}

// UpdateTransaction applies a patch under the same contract as create.
func (uc *TransactionUseCase) UpdateTransaction(ctx context.Context, id string, patch UpdateTransactionInput) (*domain.Transaction, error) {
	now := time.Now().UTC()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	defer tx.Rollback(ctx)

	current, err := uc.transactionRepo.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	before := *current

	if patch.Description != nil {
		current.Description = *patch.Description
	}
	if patch.Notes != nil {
		current.Notes = *patch.Notes
	}
	if patch.Amount != nil {
		current.Amount = *patch.Amount
	}
	if patch.Date != nil {
		current.Date = *patch.Date
	}
	if patch.Effectuated != nil {
		current.Effectuated = *patch.Effectuated
	}
	if patch.CategoryID != nil {
		current.CategoryID = patch.CategoryID
	}
	if patch.AccountID != nil {
		current.AccountID = *patch.AccountID
	}
	if patch.Reference != nil {
		current.Reference = *patch.Reference
	}
	current.UpdatedAt = now

	if err := current.Validate(); err != nil {
		return nil, err
	}
	if err := uc.checkReferences(ctx, tx, current); err != nil {
		return nil, err
	}

	if err := uc.transactionRepo.Update(ctx, tx, current); err != nil {
		return nil, err
	}
	if err := markDirty(ctx, tx, uc.syncRepo, domain.EntityTransaction, current.ID, now); err != nil {
		return nil, err
	}

	if err := uc.recompute(ctx, tx, []*domain.Transaction{current}, &before); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	invalidateAggregates(uc.cache)

	return current, nil
}

// DeleteTransaction removes the transaction and recomputes from the
// remaining set. A transfer is one record, so both legs disappear in the
// same operation.
func (uc *TransactionUseCase) DeleteTransaction(ctx context.Context, id string) error {
	now := time.Now().UTC()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	defer tx.Rollback(ctx)

	current, err := uc.transactionRepo.GetByID(ctx, tx, id)
	if err != nil {
		return err
	}

	if err := uc.transactionRepo.Delete(ctx, tx, id); err != nil {
		return err
	}
	if err := markDeleted(ctx, tx, uc.syncRepo, domain.EntityTransaction, id, now); err != nil {
		return err
	}

	if err := uc.recompute(ctx, tx, []*domain.Transaction{current}, nil); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	invalidateAggregates(uc.cache)

	return nil
}

// GetTransaction retrieves a transaction by ID.
func (uc *TransactionUseCase) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	return uc.transactionRepo.GetByID(ctx, nil, id)
}

// ListTransactions lists transactions with pagination.
func (uc *TransactionUseCase) ListTransactions(ctx context.Context, filter TransactionFilter) ([]*domain.Transaction, error) {
	filter.Limit = clampLimit(filter.Limit)
	return uc.transactionRepo.List(ctx, filter)
}

// buildTransactions expands the input into one transaction, or into the
// installment series when Installments > 1. The last installment absorbs
// the rounding remainder so the series sums to the original amount.
func (uc *TransactionUseCase) buildTransactions(input CreateTransactionInput, now time.Time) ([]*domain.Transaction, error) {
	base := domain.Transaction{
		AccountID:            input.AccountID,
		DestinationAccountID: input.DestinationAccountID,
		CategoryID:           input.CategoryID,
		Description:          input.Description,
		Notes:                input.Notes,
		Amount:               input.Amount,
		Kind:                 input.Kind,
		Date:                 input.Date,
		Effectuated:          input.Effectuated,
		Recurring:            input.Recurring,
		Reference:            input.Reference,
	}
	if err := base.Validate(); err != nil {
		return nil, err
	}

	if input.Installments <= 1 {
		t := base
		t.ID = uc.idGen.Generate()
		t.CreatedAt = now
		t.UpdatedAt = now
		return []*domain.Transaction{&t}, nil
	}

	if input.Kind == domain.KindTransfer {
		return nil, fmt.Errorf("%w: transfers cannot be split into installments", domain.ErrInvalidInstallment)
	}

	count := input.Installments
	groupID := uc.idGen.Generate()
	per := input.Amount.DivRound(decimal.NewFromInt(int64(count)), 2)
	last := input.Amount.Sub(per.Mul(decimal.NewFromInt(int64(count - 1))))

	transactions := make([]*domain.Transaction, 0, count)
	for i := 0; i < count; i++ {
		t := base
		t.ID = uc.idGen.Generate()
		t.Amount = per
		if i == count-1 {
			t.Amount = last
		}
		t.Date = input.Date.AddDate(0, i, 0)
		t.InstallmentGroupID = &groupID
		t.InstallmentNumber = i + 1
		t.InstallmentCount = count
		// Only the first installment settles with the purchase.
		if i > 0 {
			t.Effectuated = false
		}
		t.CreatedAt = now
		t.UpdatedAt = now

		if err := t.Validate(); err != nil {
			return nil, err
		}
		transactions = append(transactions, &t)
	}

	return transactions, nil
}

// checkReferences verifies referenced accounts and category exist and that
// the category kind matches the transaction kind.
func (uc *TransactionUseCase) checkReferences(ctx context.Context, tx Transaction, t *domain.Transaction) error {
	if _, err := uc.accountRepo.GetByID(ctx, tx, t.AccountID); err != nil {
		return err
	}
	if t.DestinationAccountID != nil {
		if _, err := uc.accountRepo.GetByID(ctx, tx, *t.DestinationAccountID); err != nil {
			return err
		}
	}
	if t.CategoryID != nil {
		category, err := uc.categoryRepo.GetByID(ctx, tx, *t.CategoryID)
		if err != nil {
			return err
		}
		switch t.Kind {
		case domain.KindIncome:
			if category.Kind != domain.CategoryIncome {
				return domain.ErrCategoryKindMismatch
			}
		case domain.KindExpense:
			if category.Kind != domain.CategoryExpense {
				return domain.ErrCategoryKindMismatch
			}
		}
	}
	return nil
}

// recompute refreshes balances for every touched account and budgets for
// every touched category/period, including the pre-patch values when a
// transaction moved between accounts, categories or months.
func (uc *TransactionUseCase) recompute(ctx context.Context, tx Transaction, transactions []*domain.Transaction, before *domain.Transaction) error {
	var accountIDs []string
	type period struct {
		categoryID  string
		month, year int
	}
	periods := make(map[period]bool)

	collect := func(t *domain.Transaction) {
		accountIDs = append(accountIDs, t.AffectedAccountIDs()...)
		if t.Kind == domain.KindExpense && t.CategoryID != nil {
			periods[period{*t.CategoryID, int(t.Date.Month()), t.Date.Year()}] = true
		}
	}

	for _, t := range transactions {
		collect(t)
	}
	if before != nil {
		collect(before)
	}

	if err := uc.balances.Recompute(ctx, tx, accountIDs...); err != nil {
		return err
	}
	for p := range periods {
		if err := uc.budgets.RecomputeCategory(ctx, tx, p.categoryID, p.month, p.year); err != nil {
			return err
		}
	}

	return nil
}
