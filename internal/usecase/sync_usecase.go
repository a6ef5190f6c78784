package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bolsoapp/bolso/internal/domain"
)

// SyncUseCase is the ledger-side half of synchronization: it builds upload
// deltas from the dirty set and applies downloaded changes back through the
// store, so sync merges pass the same invariant-enforcement chokepoint as
// interactive writes.
type SyncUseCase struct {
	txManager       TransactionManager
	accountRepo     AccountRepository
	categoryRepo    CategoryRepository
	transactionRepo TransactionRepository
	budgetRepo      BudgetRepository
	goalRepo        GoalRepository
	syncRepo        SyncStateRepository
	balances        *BalanceEngine
	budgets         *BudgetAggregator
	cache           Cache
}

// NewSyncUseCase creates a new SyncUseCase.
func NewSyncUseCase(
	txManager TransactionManager,
	accountRepo AccountRepository,
	categoryRepo CategoryRepository,
	transactionRepo TransactionRepository,
	budgetRepo BudgetRepository,
	goalRepo GoalRepository,
	syncRepo SyncStateRepository,
	balances *BalanceEngine,
	budgets *BudgetAggregator,
	cache Cache,
) *SyncUseCase {
	return &SyncUseCase{
		txManager:       txManager,
		accountRepo:     accountRepo,
		categoryRepo:    categoryRepo,
		transactionRepo: transactionRepo,
		budgetRepo:      budgetRepo,
		goalRepo:        goalRepo,
		syncRepo:        syncRepo,
		balances:        balances,
		budgets:         budgets,
		cache:           cache,
	}
}

// CollectDirty builds the upload delta. Entities deleted between marking
// and collection are skipped; their tombstones stay for the next cycle.
func (uc *SyncUseCase) CollectDirty(ctx context.Context) ([]domain.SyncItem, error) {
	states, err := uc.syncRepo.ListDirty(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]domain.SyncItem, 0, len(states))
	for _, state := range states {
		item := domain.SyncItem{
			Type:          state.EntityType,
			ID:            state.EntityID,
			Operation:     state.Operation(),
			ClientVersion: state.ServerVersion,
			ModifiedAt:    state.ModifiedAt,
		}

		if !state.Deleted {
			fields, err := uc.encodeEntity(ctx, state.EntityType, state.EntityID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					continue
				}
				return nil, err
			}
			item.Fields = fields
		}

		items = append(items, item)
	}

	return items, nil
}

// SyncAck acknowledges one uploaded item with its server-assigned version.
type SyncAck struct {
	Type          domain.EntityType
	ID            string
	ServerVersion int64
}

// MarkSynced clears dirty flags for acknowledged uploads. Tombstones are
// dropped entirely once the server has seen the delete.
func (uc *SyncUseCase) MarkSynced(ctx context.Context, acks []SyncAck, syncedAt time.Time) error {
	for _, ack := range acks {
		state, err := uc.syncRepo.Get(ctx, nil, ack.Type, ack.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return err
		}

		// A write that landed after collection keeps the item dirty for
		// the next cycle.
		if state.Deleted {
			if err := uc.syncRepo.Delete(ctx, nil, ack.Type, ack.ID); err != nil {
				return err
			}
			continue
		}

		if err := uc.syncRepo.MarkClean(ctx, ack.Type, ack.ID, ack.ServerVersion, syncedAt); err != nil {
			return err
		}
	}

	return nil
}

// LocalState exposes per-entity sync bookkeeping for conflict detection.
func (uc *SyncUseCase) LocalState(ctx context.Context, entityType domain.EntityType, entityID string) (*domain.SyncState, error) {
	return uc.syncRepo.Get(ctx, nil, entityType, entityID)
}

// PendingCount returns the number of locally dirty items.
func (uc *SyncUseCase) PendingCount(ctx context.Context) (int, error) {
	return uc.syncRepo.CountDirty(ctx)
}

// Checkpoint returns the last successful sync timestamp.
func (uc *SyncUseCase) Checkpoint(ctx context.Context) (time.Time, error) {
	return uc.syncRepo.Checkpoint(ctx)
}

// SetCheckpoint records a successful sync timestamp.
func (uc *SyncUseCase) SetCheckpoint(ctx context.Context, at time.Time) error {
	return uc.syncRepo.SetCheckpoint(ctx, at)
}

// ApplyRemote merges downloaded items into the ledger in one storage
// transaction, then recomputes every touched balance and budget before the
// merge becomes visible.
func (uc *SyncUseCase) ApplyRemote(ctx context.Context, items []domain.SyncItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	defer tx.Rollback(ctx)

	var accountIDs []string
	type period struct {
		categoryID  string
		month, year int
	}
	periods := make(map[period]bool)

	touchTransaction := func(t *domain.Transaction) {
		accountIDs = append(accountIDs, t.AffectedAccountIDs()...)
		if t.Kind == domain.KindExpense && t.CategoryID != nil {
			periods[period{*t.CategoryID, int(t.Date.Month()), t.Date.Year()}] = true
		}
	}

	now := time.Now().UTC()

	for _, item := range items {
		switch item.Type {
		case domain.EntityAccount:
			if item.Operation == domain.OpDelete {
				if err := uc.deleteIgnoringMissing(uc.accountRepo.Delete, ctx, tx, item.ID); err != nil {
					return err
				}
				break
			}
			account, err := DecodeAccount(item.ID, item.Fields)
			if err != nil {
				return err
			}
			if err := uc.upsertAccount(ctx, tx, account); err != nil {
				return err
			}
			accountIDs = append(accountIDs, account.ID)

		case domain.EntityCategory:
			if item.Operation == domain.OpDelete {
				if err := uc.deleteIgnoringMissing(uc.categoryRepo.Delete, ctx, tx, item.ID); err != nil {
					return err
				}
				break
			}
			category, err := DecodeCategory(item.ID, item.Fields)
			if err != nil {
				return err
			}
			if err := uc.upsertCategory(ctx, tx, category); err != nil {
				return err
			}

		case domain.EntityTransaction:
			if item.Operation == domain.OpDelete {
				existing, err := uc.transactionRepo.GetByID(ctx, tx, item.ID)
				if err == nil {
					touchTransaction(existing)
					if err := uc.transactionRepo.Delete(ctx, tx, item.ID); err != nil {
						return err
					}
				} else if !errors.Is(err, domain.ErrNotFound) {
					return err
				}
				break
			}
			transaction, err := DecodeTransaction(item.ID, item.Fields)
			if err != nil {
				return err
			}
			previous, err := uc.transactionRepo.GetByID(ctx, tx, item.ID)
			if err == nil {
				touchTransaction(previous)
			} else if !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			if err := uc.upsertTransaction(ctx, tx, transaction); err != nil {
				return err
			}
			touchTransaction(transaction)

		case domain.EntityBudget:
			if item.Operation == domain.OpDelete {
				if err := uc.deleteIgnoringMissing(uc.budgetRepo.Delete, ctx, tx, item.ID); err != nil {
					return err
				}
				break
			}
			budget, err := DecodeBudget(item.ID, item.Fields)
			if err != nil {
				return err
			}
			if err := uc.upsertBudget(ctx, tx, budget); err != nil {
				return err
			}
			periods[period{budget.CategoryID, budget.Month, budget.Year}] = true

		case domain.EntityGoal:
			if item.Operation == domain.OpDelete {
				if err := uc.deleteIgnoringMissing(uc.goalRepo.Delete, ctx, tx, item.ID); err != nil {
					return err
				}
				break
			}
			goal, err := DecodeGoal(item.ID, item.Fields)
			if err != nil {
				return err
			}
			if err := uc.upsertGoal(ctx, tx, goal); err != nil {
				return err
			}

		default:
			return fmt.Errorf("%w: unknown entity type %q", domain.ErrValidation, item.Type)
		}

		// Record the server version; the merged copy is clean by
		// definition.
		if item.Operation == domain.OpDelete {
			if err := uc.syncRepo.Delete(ctx, tx, item.Type, item.ID); err != nil {
				return err
			}
		} else {
			if err := uc.syncRepo.Upsert(ctx, tx, &domain.SyncState{
				EntityType:    item.Type,
				EntityID:      item.ID,
				ServerVersion: item.ServerVersion,
				Dirty:         false,
				ModifiedAt:    item.ModifiedAt,
				LastSyncedAt:  &now,
			}); err != nil {
				return err
			}
		}
	}

	if err := uc.balances.Recompute(ctx, tx, accountIDs...); err != nil {
		return err
	}
	for p := range periods {
		if err := uc.budgets.RecomputeCategory(ctx, tx, p.categoryID, p.month, p.year); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	invalidateAggregates(uc.cache)

	return nil
}

func (uc *SyncUseCase) encodeEntity(ctx context.Context, entityType domain.EntityType, id string) (json.RawMessage, error) {
	switch entityType {
	case domain.EntityAccount:
		account, err := uc.accountRepo.GetByID(ctx, nil, id)
		if err != nil {
			return nil, err
		}
		return EncodeAccount(account)
	case domain.EntityCategory:
		category, err := uc.categoryRepo.GetByID(ctx, nil, id)
		if err != nil {
			return nil, err
		}
		return EncodeCategory(category)
	case domain.EntityTransaction:
		transaction, err := uc.transactionRepo.GetByID(ctx, nil, id)
		if err != nil {
			return nil, err
		}
		return EncodeTransaction(transaction)
	case domain.EntityBudget:
		budget, err := uc.budgetRepo.GetByID(ctx, nil, id)
		if err != nil {
			return nil, err
		}
		return EncodeBudget(budget)
	case domain.EntityGoal:
		goal, err := uc.goalRepo.GetByID(ctx, nil, id)
		if err != nil {
			return nil, err
		}
		return EncodeGoal(goal)
	}
	return nil, fmt.Errorf("%w: unknown entity type %q", domain.ErrValidation, entityType)
}

type deleteFunc func(ctx context.Context, tx Transaction, id string) error

func (uc *SyncUseCase) deleteIgnoringMissing(del deleteFunc, ctx context.Context, tx Transaction, id string) error {
	if err := del(ctx, tx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return nil
}

func (uc *SyncUseCase) upsertAccount(ctx context.Context, tx Transaction, account *domain.Account) error {
	_, err := uc.accountRepo.GetByID(ctx, tx, account.ID)
	if err == nil {
		return uc.accountRepo.Update(ctx, tx, account)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return uc.accountRepo.Create(ctx, tx, account)
}

func (uc *SyncUseCase) upsertCategory(ctx context.Context, tx Transaction, category *domain.Category) error {
	_, err := uc.categoryRepo.GetByID(ctx, tx, category.ID)
	if err == nil {
		return uc.categoryRepo.Update(ctx, tx, category)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return uc.categoryRepo.Create(ctx, tx, category)
}

func (uc *SyncUseCase) upsertTransaction(ctx context.Context, tx Transaction, t *domain.Transaction) error {
	_, err := uc.transactionRepo.GetByID(ctx, tx, t.ID)
	if err == nil {
		return uc.transactionRepo.Update(ctx, tx, t)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return uc.transactionRepo.Create(ctx, tx, t)
}

func (uc *SyncUseCase) upsertBudget(ctx context.Context, tx Transaction, budget *domain.Budget) error {
	_, err := uc.budgetRepo.GetByID(ctx, tx, budget.ID)
	if err == nil {
		return uc.budgetRepo.Update(ctx, tx, budget)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return uc.budgetRepo.Create(ctx, tx, budget)
}

func (uc *SyncUseCase) upsertGoal(ctx context.Context, tx Transaction, goal *domain.Goal) error {
	_, err := uc.goalRepo.GetByID(ctx, tx, goal.ID)
	if err == nil {
		return uc.goalRepo.Update(ctx, tx, goal)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return uc.goalRepo.Create(ctx, tx, goal)
}
