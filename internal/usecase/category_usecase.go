package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/bolsoapp/bolso/internal/domain"
)

// CategoryUseCase handles category business logic.
type CategoryUseCase struct {
	txManager    TransactionManager
	categoryRepo CategoryRepository
	syncRepo     SyncStateRepository
	idGen        IDGenerator
	cache        Cache
}

// NewCategoryUseCase creates a new CategoryUseCase.
func NewCategoryUseCase(
	txManager TransactionManager,
	categoryRepo CategoryRepository,
	syncRepo SyncStateRepository,
	idGen IDGenerator,
	cache Cache,
) *CategoryUseCase {
	return &CategoryUseCase{
		txManager:    txManager,
		categoryRepo: categoryRepo,
		syncRepo:     syncRepo,
		idGen:        idGen,
		cache:        cache,
	}
}

// CreateCategoryInput represents input for creating a category.
type CreateCategoryInput struct {
	Name  string
	Kind  domain.CategoryKind
	Icon  string
	Color string
}

// CreateCategory creates a new category.
func (uc *CategoryUseCase) CreateCategory(ctx context.Context, input CreateCategoryInput) (*domain.Category, error) {
	now := time.Now().UTC()

	category := &domain.Category{
		ID:        uc.idGen.Generate(),
		Name:      input.Name,
		Kind:      input.Kind,
		Icon:      input.Icon,
		Color:     input.Color,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := category.Validate(); err != nil {
		return nil, err
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	defer tx.Rollback(ctx)

	if err := uc.categoryRepo.Create(ctx, tx, category); err != nil {
		return nil, err
	}
	if err := markDirty(ctx, tx, uc.syncRepo, domain.EntityCategory, category.ID, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	return category, nil
}

// UpdateCategoryInput is a partial patch; nil fields stay unchanged. The
// kind is immutable: transactions already reference it.
type UpdateCategoryInput struct {
	Name  *string
	Icon  *string
	Color *string
}

// UpdateCategory applies a patch.
func (uc *CategoryUseCase) UpdateCategory(ctx context.Context, id string, patch UpdateCategoryInput) (*domain.Category, error) {
	now := time.Now().UTC()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	defer tx.Rollback(ctx)

	category, err := uc.categoryRepo.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		category.Name = *patch.Name
	}
	if patch.Icon != nil {
		category.Icon = *patch.Icon
	}
	if patch.Color != nil {
		category.Color = *patch.Color
	}
	category.UpdatedAt = now

	if err := category.Validate(); err != nil {
		return nil, err
	}

	if err := uc.categoryRepo.Update(ctx, tx, category); err != nil {
		return nil, err
	}
	if err := markDirty(ctx, tx, uc.syncRepo, domain.EntityCategory, category.ID, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	invalidateAggregates(uc.cache)

	return category, nil
}

// DeleteCategory removes a category.
func (uc *CategoryUseCase) DeleteCategory(ctx context.Context, id string) error {
	now := time.Now().UTC()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	defer tx.Rollback(ctx)

	if _, err := uc.categoryRepo.GetByID(ctx, tx, id); err != nil {
		return err
	}
	if err := uc.categoryRepo.Delete(ctx, tx, id); err != nil {
		return err
	}
	if err := markDeleted(ctx, tx, uc.syncRepo, domain.EntityCategory, id, now); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	invalidateAggregates(uc.cache)

	return nil
}

// GetCategory retrieves a category by ID.
func (uc *CategoryUseCase) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	return uc.categoryRepo.GetByID(ctx, nil, id)
}

// ListCategories lists categories, optionally filtered by kind.
func (uc *CategoryUseCase) ListCategories(ctx context.Context, kind *domain.CategoryKind) ([]*domain.Category, error) {
	return uc.categoryRepo.List(ctx, kind)
}
