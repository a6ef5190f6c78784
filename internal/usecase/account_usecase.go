package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bolsoapp/bolso/internal/domain"
)

// AccountUseCase handles account business logic.
type AccountUseCase struct {
	txManager       TransactionManager
	accountRepo     AccountRepository
	transactionRepo TransactionRepository
	syncRepo        SyncStateRepository
	idGen           IDGenerator
	cache           Cache
}

// NewAccountUseCase creates a new AccountUseCase.
func NewAccountUseCase(
	txManager TransactionManager,
	accountRepo AccountRepository,
	transactionRepo TransactionRepository,
	syncRepo SyncStateRepository,
	idGen IDGenerator,
	cache Cache,
) *AccountUseCase {
	return &AccountUseCase{
		txManager:       txManager,
		accountRepo:     accountRepo,
		transactionRepo: transactionRepo,
		syncRepo:        syncRepo,
		idGen:           idGen,
		cache:           cache,
	}
}

// CreateAccountInput represents input for creating an account.
type CreateAccountInput struct {
	Name           string
	Kind           domain.AccountKind
	Bank           string
	Color          string
	InitialBalance decimal.Decimal
	IncludeInTotal bool
}

// CreateAccount creates a new account with its balance seeded from the
// initial balance.
func (uc *AccountUseCase) CreateAccount(ctx context.Context, input CreateAccountInput) (*domain.Account, error) {
	now := time.Now().UTC()

	account := &domain.Account{
		ID:             uc.idGen.Generate(),
		Name:           input.Name,
		Kind:           input.Kind,
		Bank:           input.Bank,
		Color:          input.Color,
		InitialBalance: input.InitialBalance,
		Balance:        input.InitialBalance,
		Active:         true,
		IncludeInTotal: input.IncludeInTotal,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := account.Validate(); err != nil {
		return nil, err
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	defer tx.Rollback(ctx)

	if err := uc.accountRepo.Create(ctx, tx, account); err != nil {
		return nil, err
	}
	if err := markDirty(ctx, tx, uc.syncRepo, domain.EntityAccount, account.ID, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	invalidateAggregates(uc.cache)

	return account, nil
}

// UpdateAccountInput is a partial patch; nil fields stay unchanged.
type UpdateAccountInput struct {
	Name           *string
	Bank           *string
	Color          *string
	Active         *bool
	IncludeInTotal *bool
}

// UpdateAccount applies a patch. Balance and initial balance are not
// patchable: balances belong to the balance engine.
func (uc *AccountUseCase) UpdateAccount(ctx context.Context, id string, patch UpdateAccountInput) (*domain.Account, error) {
	now := time.Now().UTC()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	defer tx.Rollback(ctx)

	account, err := uc.accountRepo.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		account.Name = *patch.Name
	}
	if patch.Bank != nil {
		account.Bank = *patch.Bank
	}
	if patch.Color != nil {
		account.Color = *patch.Color
	}
	if patch.Active != nil {
		account.Active = *patch.Active
	}
	if patch.IncludeInTotal != nil {
		account.IncludeInTotal = *patch.IncludeInTotal
	}
	account.UpdatedAt = now

	if err := account.Validate(); err != nil {
		return nil, err
	}

	if err := uc.accountRepo.Update(ctx, tx, account); err != nil {
		return nil, err
	}
	if err := markDirty(ctx, tx, uc.syncRepo, domain.EntityAccount, account.ID, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	invalidateAggregates(uc.cache)

	return account, nil
}

// DeleteAccount soft-deletes by clearing the active flag. Hard delete is
// allowed only while the account has no transactions.
func (uc *AccountUseCase) DeleteAccount(ctx context.Context, id string, hard bool) error {
	now := time.Now().UTC()

	count, err := uc.transactionRepo.CountByAccount(ctx, id)
	if err != nil {
		return err
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	defer tx.Rollback(ctx)

	if hard {
		if count > 0 {
			return domain.ErrAccountHasActivity
		}
		if err := uc.accountRepo.Delete(ctx, tx, id); err != nil {
			return err
		}
		if err := markDeleted(ctx, tx, uc.syncRepo, domain.EntityAccount, id, now); err != nil {
			return err
		}
	} else {
		account, err := uc.accountRepo.GetByID(ctx, tx, id)
		if err != nil {
			return err
		}
		account.Active = false
		account.UpdatedAt = now
		if err := uc.accountRepo.Update(ctx, tx, account); err != nil {
			return err
		}
		if err := markDirty(ctx, tx, uc.syncRepo, domain.EntityAccount, id, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	invalidateAggregates(uc.cache)

	return nil
}

// GetAccount retrieves an account by ID.
func (uc *AccountUseCase) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	return uc.accountRepo.GetByID(ctx, nil, id)
}

// ListAccounts lists accounts, optionally filtered by kind or active flag.
func (uc *AccountUseCase) ListAccounts(ctx context.Context, filter AccountFilter) ([]*domain.Account, error) {
	return uc.accountRepo.List(ctx, filter)
}
