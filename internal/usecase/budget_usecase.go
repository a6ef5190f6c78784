package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bolsoapp/bolso/internal/domain"
)

// BudgetUseCase handles budget business logic. Consumed amounts always come
// from the aggregator, never from input.
type BudgetUseCase struct {
	txManager    TransactionManager
	budgetRepo   BudgetRepository
	categoryRepo CategoryRepository
	syncRepo     SyncStateRepository
	aggregator   *BudgetAggregator
	idGen        IDGenerator
	cache        Cache
}

// NewBudgetUseCase creates a new BudgetUseCase.
func NewBudgetUseCase(
	txManager TransactionManager,
	budgetRepo BudgetRepository,
	categoryRepo CategoryRepository,
	syncRepo SyncStateRepository,
	aggregator *BudgetAggregator,
	idGen IDGenerator,
	cache Cache,
) *BudgetUseCase {
	return &BudgetUseCase{
		txManager:    txManager,
		budgetRepo:   budgetRepo,
		categoryRepo: categoryRepo,
		syncRepo:     syncRepo,
		aggregator:   aggregator,
		idGen:        idGen,
		cache:        cache,
	}
}

// CreateBudgetInput represents input for creating a budget.
type CreateBudgetInput struct {
	CategoryID string
	Month      int
	Year       int
	Planned    decimal.Decimal
}

// CreateBudget creates a budget and immediately derives its consumed amount
// from the period's existing transactions.
func (uc *BudgetUseCase) CreateBudget(ctx context.Context, input CreateBudgetInput) (*domain.Budget, error) {
	now := time.Now().UTC()

	budget := &domain.Budget{
		ID:         uc.idGen.Generate(),
		CategoryID: input.CategoryID,
		Month:      input.Month,
		Year:       input.Year,
		Planned:    input.Planned,
		Consumed:   decimal.Zero,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := budget.Validate(); err != nil {
		return nil, err
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	defer tx.Rollback(ctx)

	category, err := uc.categoryRepo.GetByID(ctx, tx, input.CategoryID)
	if err != nil {
		return nil, err
	}
	if category.Kind != domain.CategoryExpense {
		return nil, fmt.Errorf("%w: budgets apply to expense categories", domain.ErrInvalidCategoryKind)
	}

	if _, err := uc.budgetRepo.GetByCategoryPeriod(ctx, tx, input.CategoryID, input.Month, input.Year); err == nil {
		return nil, domain.ErrBudgetExists
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if err := uc.budgetRepo.Create(ctx, tx, budget); err != nil {
		return nil, err
	}
	if err := markDirty(ctx, tx, uc.syncRepo, domain.EntityBudget, budget.ID, now); err != nil {
		return nil, err
	}
	if err := uc.aggregator.RecomputeCategory(ctx, tx, budget.CategoryID, budget.Month, budget.Year); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	invalidateAggregates(uc.cache)

	// Return the derived consumed amount, not the zero seed.
	return uc.budgetRepo.GetByID(ctx, nil, budget.ID)
}

// UpdateBudgetInput is a partial patch; nil fields stay unchanged.
type UpdateBudgetInput struct {
	Planned *decimal.Decimal
	Active  *bool
}

// UpdateBudget applies a patch.
func (uc *BudgetUseCase) UpdateBudget(ctx context.Context, id string, patch UpdateBudgetInput) (*domain.Budget, error) {
	now := time.Now().UTC()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	defer tx.Rollback(ctx)

	budget, err := uc.budgetRepo.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if patch.Planned != nil {
		budget.Planned = *patch.Planned
	}
	if patch.Active != nil {
		budget.Active = *patch.Active
	}
	budget.UpdatedAt = now

	if err := budget.Validate(); err != nil {
		return nil, err
	}

	if err := uc.budgetRepo.Update(ctx, tx, budget); err != nil {
		return nil, err
	}
	if err := markDirty(ctx, tx, uc.syncRepo, domain.EntityBudget, budget.ID, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	invalidateAggregates(uc.cache)

	return budget, nil
}

// DeleteBudget removes a budget.
func (uc *BudgetUseCase) DeleteBudget(ctx context.Context, id string) error {
	now := time.Now().UTC()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	defer tx.Rollback(ctx)

	if _, err := uc.budgetRepo.GetByID(ctx, tx, id); err != nil {
		return err
	}
	if err := uc.budgetRepo.Delete(ctx, tx, id); err != nil {
		return err
	}
	if err := markDeleted(ctx, tx, uc.syncRepo, domain.EntityBudget, id, now); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	invalidateAggregates(uc.cache)

	return nil
}

// GetBudget retrieves a budget by ID.
func (uc *BudgetUseCase) GetBudget(ctx context.Context, id string) (*domain.Budget, error) {
	return uc.budgetRepo.GetByID(ctx, nil, id)
}

// ListBudgets lists the budgets of a period.
func (uc *BudgetUseCase) ListBudgets(ctx context.Context, month, year int, activeOnly bool) ([]*domain.Budget, error) {
	if err := domain.ValidatePeriod(month, year); err != nil {
		return nil, err
	}
	return uc.budgetRepo.ListByPeriod(ctx, nil, month, year, activeOnly)
}

// ReconcilePeriod recomputes every active budget of a period in one batch,
// used after bulk imports and by the nightly schedule.
func (uc *BudgetUseCase) ReconcilePeriod(ctx context.Context, month, year int) error {
	if err := domain.ValidatePeriod(month, year); err != nil {
		return err
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	defer tx.Rollback(ctx)

	if err := uc.aggregator.RecomputePeriod(ctx, tx, month, year); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	invalidateAggregates(uc.cache)

	return nil
}
