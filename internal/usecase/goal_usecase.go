package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bolsoapp/bolso/internal/domain"
)

// GoalUseCase handles savings-goal business logic.
type GoalUseCase struct {
	txManager TransactionManager
	goalRepo  GoalRepository
	syncRepo  SyncStateRepository
	idGen     IDGenerator
	cache     Cache
	bus       EventBus
}

// NewGoalUseCase creates a new GoalUseCase.
func NewGoalUseCase(
	txManager TransactionManager,
	goalRepo GoalRepository,
	syncRepo SyncStateRepository,
	idGen IDGenerator,
	cache Cache,
	bus EventBus,
) *GoalUseCase {
	return &GoalUseCase{
		txManager: txManager,
		goalRepo:  goalRepo,
		syncRepo:  syncRepo,
		idGen:     idGen,
		cache:     cache,
		bus:       bus,
	}
}

// CreateGoalInput represents input for creating a goal.
type CreateGoalInput struct {
	Name         string
	TargetAmount decimal.Decimal
	StartDate    time.Time
	TargetDate   time.Time
}

// CreateGoal creates a new goal.
func (uc *GoalUseCase) CreateGoal(ctx context.Context, input CreateGoalInput) (*domain.Goal, error) {
	now := time.Now().UTC()

	goal := &domain.Goal{
		ID:            uc.idGen.Generate(),
		Name:          input.Name,
		TargetAmount:  input.TargetAmount,
		CurrentAmount: decimal.Zero,
		StartDate:     input.StartDate,
		TargetDate:    input.TargetDate,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := goal.Validate(); err != nil {
		return nil, err
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	defer tx.Rollback(ctx)

	if err := uc.goalRepo.Create(ctx, tx, goal); err != nil {
		return nil, err
	}
	if err := markDirty(ctx, tx, uc.syncRepo, domain.EntityGoal, goal.ID, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	invalidateAggregates(uc.cache)

	return goal, nil
}

// UpdateGoalInput is a partial patch; nil fields stay unchanged. The
// current amount only moves through contributions.
type UpdateGoalInput struct {
	Name         *string
	TargetAmount *decimal.Decimal
	TargetDate   *time.Time
}

// UpdateGoal applies a patch.
func (uc *GoalUseCase) UpdateGoal(ctx context.Context, id string, patch UpdateGoalInput) (*domain.Goal, error) {
	now := time.Now().UTC()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	defer tx.Rollback(ctx)

	goal, err := uc.goalRepo.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		goal.Name = *patch.Name
	}
	if patch.TargetAmount != nil {
		goal.TargetAmount = *patch.TargetAmount
	}
	if patch.TargetDate != nil {
		goal.TargetDate = *patch.TargetDate
	}
	goal.UpdatedAt = now

	if err := goal.Validate(); err != nil {
		return nil, err
	}

	if err := uc.goalRepo.Update(ctx, tx, goal); err != nil {
		return nil, err
	}
	if err := markDirty(ctx, tx, uc.syncRepo, domain.EntityGoal, goal.ID, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	invalidateAggregates(uc.cache)

	return goal, nil
}

// ContributeToGoal increases the current amount and evaluates the
// completion invariant in the same operation; the completion event fires
// only after commit.
func (uc *GoalUseCase) ContributeToGoal(ctx context.Context, id string, amount decimal.Decimal) (*domain.Goal, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	defer tx.Rollback(ctx)

	goal, err := uc.goalRepo.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	crossed := goal.ApplyContribution(amount, now)

	if err := uc.goalRepo.Update(ctx, tx, goal); err != nil {
		return nil, err
	}
	if err := markDirty(ctx, tx, uc.syncRepo, domain.EntityGoal, goal.ID, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	invalidateAggregates(uc.cache)

	if crossed && uc.bus != nil {
		uc.bus.Publish(domain.GoalCompletedEvent{
			GoalID:      goal.ID,
			Name:        goal.Name,
			Target:      goal.TargetAmount,
			CompletedAt: *goal.CompletedAt,
		})
	}

	return goal, nil
}

// DeleteGoal removes a goal.
func (uc *GoalUseCase) DeleteGoal(ctx context.Context, id string) error {
	now := time.Now().UTC()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	defer tx.Rollback(ctx)

	if _, err := uc.goalRepo.GetByID(ctx, tx, id); err != nil {
		return err
	}
	if err := uc.goalRepo.Delete(ctx, tx, id); err != nil {
		return err
	}
	if err := markDeleted(ctx, tx, uc.syncRepo, domain.EntityGoal, id, now); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	invalidateAggregates(uc.cache)

	return nil
}

// GetGoal retrieves a goal by ID.
func (uc *GoalUseCase) GetGoal(ctx context.Context, id string) (*domain.Goal, error) {
	return uc.goalRepo.GetByID(ctx, nil, id)
}

// ListGoals lists goals, optionally only the open ones.
func (uc *GoalUseCase) ListGoals(ctx context.Context, openOnly bool) ([]*domain.Goal, error) {
	return uc.goalRepo.List(ctx, openOnly)
}
