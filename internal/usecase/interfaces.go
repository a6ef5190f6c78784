package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bolsoapp/bolso/internal/domain"
)

// AccountFilter narrows account listings.
type AccountFilter struct {
	Kind       *domain.AccountKind
	ActiveOnly bool
}

// TransactionFilter narrows transaction listings.
type TransactionFilter struct {
	AccountID  string
	CategoryID string
	Kind       *domain.TransactionKind
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// AccountRepository defines data access for accounts.
type AccountRepository interface {
	Create(ctx context.Context, tx Transaction, account *domain.Account) error
	GetByID(ctx context.Context, tx Transaction, id string) (*domain.Account, error)
	List(ctx context.Context, filter AccountFilter) ([]*domain.Account, error)
	Update(ctx context.Context, tx Transaction, account *domain.Account) error
	UpdateBalance(ctx context.Context, tx Transaction, id string, balance decimal.Decimal, updatedAt time.Time) error
	Delete(ctx context.Context, tx Transaction, id string) error
}

// CategoryRepository defines data access for categories.
type CategoryRepository interface {
	Create(ctx context.Context, tx Transaction, category *domain.Category) error
	GetByID(ctx context.Context, tx Transaction, id string) (*domain.Category, error)
	List(ctx context.Context, kind *domain.CategoryKind) ([]*domain.Category, error)
	Update(ctx context.Context, tx Transaction, category *domain.Category) error
	Delete(ctx context.Context, tx Transaction, id string) error
}

// TransactionRepository defines data access for transactions.
type TransactionRepository interface {
	Create(ctx context.Context, tx Transaction, t *domain.Transaction) error
	GetByID(ctx context.Context, tx Transaction, id string) (*domain.Transaction, error)
	List(ctx context.Context, filter TransactionFilter) ([]*domain.Transaction, error)
	Update(ctx context.Context, tx Transaction, t *domain.Transaction) error
	Delete(ctx context.Context, tx Transaction, id string) error
	// ListTouchingAccount returns every transaction where the account is
	// source or transfer destination; the balance engine recomputes from
	// this full set, never from deltas.
	ListTouchingAccount(ctx context.Context, tx Transaction, accountID string) ([]*domain.Transaction, error)
	CountByAccount(ctx context.Context, accountID string) (int, error)
	// SumEffectuatedExpenses totals settled expense transactions for one
	// category inside a month/year window.
	SumEffectuatedExpenses(ctx context.Context, tx Transaction, categoryID string, month, year int) (decimal.Decimal, error)
}

// BudgetRepository defines data access for budgets.
type BudgetRepository interface {
	Create(ctx context.Context, tx Transaction, budget *domain.Budget) error
	GetByID(ctx context.Context, tx Transaction, id string) (*domain.Budget, error)
	GetByCategoryPeriod(ctx context.Context, tx Transaction, categoryID string, month, year int) (*domain.Budget, error)
	ListByPeriod(ctx context.Context, tx Transaction, month, year int, activeOnly bool) ([]*domain.Budget, error)
	Update(ctx context.Context, tx Transaction, budget *domain.Budget) error
	UpdateConsumed(ctx context.Context, tx Transaction, id string, consumed decimal.Decimal, updatedAt time.Time) error
	Delete(ctx context.Context, tx Transaction, id string) error
}

// GoalRepository defines data access for goals.
type GoalRepository interface {
	Create(ctx context.Context, tx Transaction, goal *domain.Goal) error
	GetByID(ctx context.Context, tx Transaction, id string) (*domain.Goal, error)
	List(ctx context.Context, openOnly bool) ([]*domain.Goal, error)
	Update(ctx context.Context, tx Transaction, goal *domain.Goal) error
	Delete(ctx context.Context, tx Transaction, id string) error
}

// SyncStateRepository tracks per-entity dirty flags, versions and the sync
// checkpoint.
type SyncStateRepository interface {
	Get(ctx context.Context, tx Transaction, entityType domain.EntityType, entityID string) (*domain.SyncState, error)
	Upsert(ctx context.Context, tx Transaction, state *domain.SyncState) error
	ListDirty(ctx context.Context) ([]*domain.SyncState, error)
	CountDirty(ctx context.Context) (int, error)
	MarkClean(ctx context.Context, entityType domain.EntityType, entityID string, serverVersion int64, syncedAt time.Time) error
	Delete(ctx context.Context, tx Transaction, entityType domain.EntityType, entityID string) error
	Checkpoint(ctx context.Context) (time.Time, error)
	SetCheckpoint(ctx context.Context, at time.Time) error
}

// Transaction represents a storage transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles storage transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Cache is the best-effort read cache for expensive aggregates. A miss or
// failed invalidation never affects correctness.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration)
	DeletePrefix(prefix string) int
}

// EventBus publishes domain events raised after recomputation.
type EventBus interface {
	Publish(event domain.Event)
}
