// Package mocks provides hand-rolled in-memory fakes for the usecase
// ports. Default behavior is a working in-memory store; individual calls
// can be overridden through the exported func fields.
package mocks

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bolsoapp/bolso/internal/domain"
	"github.com/bolsoapp/bolso/internal/usecase"
)

// MockTx is a no-op storage transaction.
type MockTx struct {
	Committed  bool
	RolledBack bool
}

func (t *MockTx) Commit(ctx context.Context) error {
	t.Committed = true
	return nil
}

func (t *MockTx) Rollback(ctx context.Context) error {
	if !t.Committed {
		t.RolledBack = true
	}
	return nil
}

// MockTxManager hands out no-op transactions.
type MockTxManager struct {
	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
	Began     int
}

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

func (m *MockTxManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	m.Began++
	return &MockTx{}, nil
}

// MockIDGenerator returns sequential ids.
type MockIDGenerator struct {
	GenerateFunc func() string
	mu           sync.Mutex
	next         int
}

func NewMockIDGenerator() *MockIDGenerator { return &MockIDGenerator{} }

func (m *MockIDGenerator) Generate() string {
	if m.GenerateFunc != nil {
		return m.GenerateFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	return "id-" + itoa(m.next)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var b [8]byte
	i := len(b)
	for n > 0 {
		i--
		b[i] = byte('0' + n%10)
		n /= 10
	}
	return string(b[i:])
}

// MockAccountRepository is an in-memory AccountRepository.
type MockAccountRepository struct {
	mu       sync.RWMutex
	Accounts map[string]*domain.Account

	CreateFunc        func(ctx context.Context, tx usecase.Transaction, account *domain.Account) error
	GetByIDFunc       func(ctx context.Context, tx usecase.Transaction, id string) (*domain.Account, error)
	UpdateBalanceFunc func(ctx context.Context, tx usecase.Transaction, id string, balance decimal.Decimal, updatedAt time.Time) error
}

func NewMockAccountRepository() *MockAccountRepository {
	return &MockAccountRepository{Accounts: make(map[string]*domain.Account)}
}

func (m *MockAccountRepository) Create(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, account)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *account
	m.Accounts[account.ID] = &cp
	return nil
}

func (m *MockAccountRepository) GetByID(ctx context.Context, tx usecase.Transaction, id string) (*domain.Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, tx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if a, ok := m.Accounts[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, domain.ErrAccountNotFound
}

func (m *MockAccountRepository) List(ctx context.Context, filter usecase.AccountFilter) ([]*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Account
	for _, a := range m.Accounts {
		if filter.ActiveOnly && !a.Active {
			continue
		}
		if filter.Kind != nil && a.Kind != *filter.Kind {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MockAccountRepository) Update(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Accounts[account.ID]; !ok {
		return domain.ErrAccountNotFound
	}
	cp := *account
	m.Accounts[account.ID] = &cp
	return nil
}

func (m *MockAccountRepository) UpdateBalance(ctx context.Context, tx usecase.Transaction, id string, balance decimal.Decimal, updatedAt time.Time) error {
	if m.UpdateBalanceFunc != nil {
		return m.UpdateBalanceFunc(ctx, tx, id, balance, updatedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.Accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	a.Balance = balance
	a.UpdatedAt = updatedAt
	return nil
}

func (m *MockAccountRepository) Delete(ctx context.Context, tx usecase.Transaction, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Accounts[id]; !ok {
		return domain.ErrAccountNotFound
	}
	delete(m.Accounts, id)
	return nil
}

// MockCategoryRepository is an in-memory CategoryRepository.
type MockCategoryRepository struct {
	mu         sync.RWMutex
	Categories map[string]*domain.Category

	GetByIDFunc func(ctx context.Context, tx usecase.Transaction, id string) (*domain.Category, error)
}

func NewMockCategoryRepository() *MockCategoryRepository {
	return &MockCategoryRepository{Categories: make(map[string]*domain.Category)}
}

func (m *MockCategoryRepository) Create(ctx context.Context, tx usecase.Transaction, category *domain.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *category
	m.Categories[category.ID] = &cp
	return nil
}

func (m *MockCategoryRepository) GetByID(ctx context.Context, tx usecase.Transaction, id string) (*domain.Category, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, tx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.Categories[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, domain.ErrCategoryNotFound
}

func (m *MockCategoryRepository) List(ctx context.Context, kind *domain.CategoryKind) ([]*domain.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Category
	for _, c := range m.Categories {
		if kind != nil && c.Kind != *kind {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MockCategoryRepository) Update(ctx context.Context, tx usecase.Transaction, category *domain.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Categories[category.ID]; !ok {
		return domain.ErrCategoryNotFound
	}
	cp := *category
	m.Categories[category.ID] = &cp
	return nil
}

func (m *MockCategoryRepository) Delete(ctx context.Context, tx usecase.Transaction, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Categories[id]; !ok {
		return domain.ErrCategoryNotFound
	}
	delete(m.Categories, id)
	return nil
}

// MockTransactionRepository is an in-memory TransactionRepository.
type MockTransactionRepository struct {
	mu           sync.RWMutex
	Transactions map[string]*domain.Transaction

	CreateFunc func(ctx context.Context, tx usecase.Transaction, t *domain.Transaction) error
}

func NewMockTransactionRepository() *MockTransactionRepository {
	return &MockTransactionRepository{Transactions: make(map[string]*domain.Transaction)}
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx usecase.Transaction, t *domain.Transaction) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, t)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.Transactions[t.ID] = &cp
	return nil
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, tx usecase.Transaction, id string) (*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.Transactions[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, domain.ErrTransactionNotFound
}

func (m *MockTransactionRepository) List(ctx context.Context, filter usecase.TransactionFilter) ([]*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Transaction
	for _, t := range m.Transactions {
		if filter.AccountID != "" && !t.Touches(filter.AccountID) {
			continue
		}
		if filter.CategoryID != "" && (t.CategoryID == nil || *t.CategoryID != filter.CategoryID) {
			continue
		}
		if filter.Kind != nil && t.Kind != *filter.Kind {
			continue
		}
		if filter.From != nil && t.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && t.Date.After(*filter.To) {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MockTransactionRepository) Update(ctx context.Context, tx usecase.Transaction, t *domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Transactions[t.ID]; !ok {
		return domain.ErrTransactionNotFound
	}
	cp := *t
	m.Transactions[t.ID] = &cp
	return nil
}

func (m *MockTransactionRepository) Delete(ctx context.Context, tx usecase.Transaction, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Transactions[id]; !ok {
		return domain.ErrTransactionNotFound
	}
	delete(m.Transactions, id)
	return nil
}

func (m *MockTransactionRepository) ListTouchingAccount(ctx context.Context, tx usecase.Transaction, accountID string) ([]*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Transaction
	for _, t := range m.Transactions {
		if t.Touches(accountID) {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockTransactionRepository) CountByAccount(ctx context.Context, accountID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, t := range m.Transactions {
		if t.Touches(accountID) {
			count++
		}
	}
	return count, nil
}

func (m *MockTransactionRepository) SumEffectuatedExpenses(ctx context.Context, tx usecase.Transaction, categoryID string, month, year int) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sum := decimal.Zero
	for _, t := range m.Transactions {
		if t.Kind != domain.KindExpense || !t.Effectuated {
			continue
		}
		if t.CategoryID == nil || *t.CategoryID != categoryID {
			continue
		}
		if !t.InPeriod(month, year) {
			continue
		}
		sum = sum.Add(t.Amount)
	}
	return sum, nil
}

// MockBudgetRepository is an in-memory BudgetRepository.
type MockBudgetRepository struct {
	mu      sync.RWMutex
	Budgets map[string]*domain.Budget
}

func NewMockBudgetRepository() *MockBudgetRepository {
	return &MockBudgetRepository{Budgets: make(map[string]*domain.Budget)}
}

func (m *MockBudgetRepository) Create(ctx context.Context, tx usecase.Transaction, budget *domain.Budget) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *budget
	m.Budgets[budget.ID] = &cp
	return nil
}

func (m *MockBudgetRepository) GetByID(ctx context.Context, tx usecase.Transaction, id string) (*domain.Budget, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if b, ok := m.Budgets[id]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, domain.ErrBudgetNotFound
}

func (m *MockBudgetRepository) GetByCategoryPeriod(ctx context.Context, tx usecase.Transaction, categoryID string, month, year int) (*domain.Budget, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.Budgets {
		if b.CategoryID == categoryID && b.Month == month && b.Year == year {
			cp := *b
			return &cp, nil
		}
	}
	return nil, domain.ErrBudgetNotFound
}

func (m *MockBudgetRepository) ListByPeriod(ctx context.Context, tx usecase.Transaction, month, year int, activeOnly bool) ([]*domain.Budget, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Budget
	for _, b := range m.Budgets {
		if b.Month != month || b.Year != year {
			continue
		}
		if activeOnly && !b.Active {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MockBudgetRepository) Update(ctx context.Context, tx usecase.Transaction, budget *domain.Budget) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Budgets[budget.ID]; !ok {
		return domain.ErrBudgetNotFound
	}
	cp := *budget
	m.Budgets[budget.ID] = &cp
	return nil
}

func (m *MockBudgetRepository) UpdateConsumed(ctx context.Context, tx usecase.Transaction, id string, consumed decimal.Decimal, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.Budgets[id]
	if !ok {
		return domain.ErrBudgetNotFound
	}
	b.Consumed = consumed
	b.UpdatedAt = updatedAt
	return nil
}

func (m *MockBudgetRepository) Delete(ctx context.Context, tx usecase.Transaction, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Budgets[id]; !ok {
		return domain.ErrBudgetNotFound
	}
	delete(m.Budgets, id)
	return nil
}

// MockGoalRepository is an in-memory GoalRepository.
type MockGoalRepository struct {
	mu    sync.RWMutex
	Goals map[string]*domain.Goal
}

func NewMockGoalRepository() *MockGoalRepository {
	return &MockGoalRepository{Goals: make(map[string]*domain.Goal)}
}

func (m *MockGoalRepository) Create(ctx context.Context, tx usecase.Transaction, goal *domain.Goal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *goal
	m.Goals[goal.ID] = &cp
	return nil
}

func (m *MockGoalRepository) GetByID(ctx context.Context, tx usecase.Transaction, id string) (*domain.Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if g, ok := m.Goals[id]; ok {
		cp := *g
		return &cp, nil
	}
	return nil, domain.ErrGoalNotFound
}

func (m *MockGoalRepository) List(ctx context.Context, openOnly bool) ([]*domain.Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Goal
	for _, g := range m.Goals {
		if openOnly && g.Completed {
			continue
		}
		cp := *g
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MockGoalRepository) Update(ctx context.Context, tx usecase.Transaction, goal *domain.Goal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Goals[goal.ID]; !ok {
		return domain.ErrGoalNotFound
	}
	cp := *goal
	m.Goals[goal.ID] = &cp
	return nil
}

func (m *MockGoalRepository) Delete(ctx context.Context, tx usecase.Transaction, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Goals[id]; !ok {
		return domain.ErrGoalNotFound
	}
	delete(m.Goals, id)
	return nil
}

// MockSyncStateRepository is an in-memory SyncStateRepository.
type MockSyncStateRepository struct {
	mu         sync.RWMutex
	States     map[string]*domain.SyncState
	checkpoint time.Time
}

func NewMockSyncStateRepository() *MockSyncStateRepository {
	return &MockSyncStateRepository{States: make(map[string]*domain.SyncState)}
}

func stateKey(entityType domain.EntityType, id string) string {
	return string(entityType) + "/" + id
}

func (m *MockSyncStateRepository) Get(ctx context.Context, tx usecase.Transaction, entityType domain.EntityType, entityID string) (*domain.SyncState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.States[stateKey(entityType, entityID)]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *MockSyncStateRepository) Upsert(ctx context.Context, tx usecase.Transaction, state *domain.SyncState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *state
	m.States[stateKey(state.EntityType, state.EntityID)] = &cp
	return nil
}

func (m *MockSyncStateRepository) ListDirty(ctx context.Context) ([]*domain.SyncState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.SyncState
	for _, s := range m.States {
		if s.Dirty {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockSyncStateRepository) CountDirty(ctx context.Context) (int, error) {
	dirty, err := m.ListDirty(ctx)
	return len(dirty), err
}

func (m *MockSyncStateRepository) MarkClean(ctx context.Context, entityType domain.EntityType, entityID string, serverVersion int64, syncedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.States[stateKey(entityType, entityID)]
	if !ok {
		return domain.ErrNotFound
	}
	s.Dirty = false
	s.ServerVersion = serverVersion
	s.LastSyncedAt = &syncedAt
	return nil
}

func (m *MockSyncStateRepository) Delete(ctx context.Context, tx usecase.Transaction, entityType domain.EntityType, entityID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.States, stateKey(entityType, entityID))
	return nil
}

func (m *MockSyncStateRepository) Checkpoint(ctx context.Context) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.checkpoint, nil
}

func (m *MockSyncStateRepository) SetCheckpoint(ctx context.Context, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoint = at
	return nil
}

// MockCache records cache traffic.
type MockCache struct {
	mu      sync.Mutex
	Entries map[string][]byte
	Deleted []string
}

func NewMockCache() *MockCache {
	return &MockCache{Entries: make(map[string][]byte)}
}

func (m *MockCache) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.Entries[key]
	return v, ok
}

func (m *MockCache) Set(key string, value []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries[key] = value
}

func (m *MockCache) DeletePrefix(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.Entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.Entries, k)
			n++
		}
	}
	m.Deleted = append(m.Deleted, prefix)
	return n
}

// MockEventBus records published events.
type MockEventBus struct {
	mu     sync.Mutex
	Events []domain.Event
}

func NewMockEventBus() *MockEventBus { return &MockEventBus{} }

func (m *MockEventBus) Publish(event domain.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
}

// Published returns a snapshot of everything published so far.
func (m *MockEventBus) Published() []domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Event, len(m.Events))
	copy(out, m.Events)
	return out
}
