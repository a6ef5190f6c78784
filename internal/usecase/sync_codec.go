package usecase

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bolsoapp/bolso/internal/domain"
)

// Wire shapes for entity fields. Derived values (account balance, budget
// consumed) never travel: each device recomputes them from its own log.

type accountFields struct {
	Name           string          `json:"name"`
	Kind           string          `json:"kind"`
	Bank           string          `json:"bank,omitempty"`
	Color          string          `json:"color,omitempty"`
	InitialBalance decimal.Decimal `json:"initialBalance"`
	Active         bool            `json:"active"`
	IncludeInTotal bool            `json:"includeInTotal"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

type categoryFields struct {
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Icon      string    `json:"icon,omitempty"`
	Color     string    `json:"color,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type transactionFields struct {
	AccountID            string          `json:"accountId"`
	DestinationAccountID *string         `json:"destinationAccountId,omitempty"`
	CategoryID           *string         `json:"categoryId,omitempty"`
	Description          string          `json:"description,omitempty"`
	Notes                string          `json:"notes,omitempty"`
	Amount               decimal.Decimal `json:"amount"`
	Kind                 string          `json:"kind"`
	Date                 time.Time       `json:"date"`
	Effectuated          bool            `json:"effectuated"`
	Recurring            bool            `json:"recurring"`
	InstallmentGroupID   *string         `json:"installmentGroupId,omitempty"`
	InstallmentNumber    int             `json:"installmentNumber,omitempty"`
	InstallmentCount     int             `json:"installmentCount,omitempty"`
	Reference            string          `json:"reference,omitempty"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}

type budgetFields struct {
	CategoryID string          `json:"categoryId"`
	Month      int             `json:"month"`
	Year       int             `json:"year"`
	Planned    decimal.Decimal `json:"planned"`
	Active     bool            `json:"active"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

type goalFields struct {
	Name          string          `json:"name"`
	TargetAmount  decimal.Decimal `json:"targetAmount"`
	CurrentAmount decimal.Decimal `json:"currentAmount"`
	StartDate     time.Time       `json:"startDate"`
	TargetDate    time.Time       `json:"targetDate"`
	Completed     bool            `json:"completed"`
	CompletedAt   *time.Time      `json:"completedAt,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// EncodeAccount serializes an account for the wire.
func EncodeAccount(a *domain.Account) (json.RawMessage, error) {
	return json.Marshal(accountFields{
		Name:           a.Name,
		Kind:           string(a.Kind),
		Bank:           a.Bank,
		Color:          a.Color,
		InitialBalance: a.InitialBalance,
		Active:         a.Active,
		IncludeInTotal: a.IncludeInTotal,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	})
}

// DecodeAccount rebuilds an account from wire fields. The balance is left
// equal to the initial balance; the balance engine overwrites it right
// after the merge.
func DecodeAccount(id string, fields json.RawMessage) (*domain.Account, error) {
	var f accountFields
	if err := json.Unmarshal(fields, &f); err != nil {
		return nil, fmt.Errorf("%w: account fields: %v", domain.ErrValidation, err)
	}
	return &domain.Account{
		ID:             id,
		Name:           f.Name,
		Kind:           domain.AccountKind(f.Kind),
		Bank:           f.Bank,
		Color:          f.Color,
		InitialBalance: f.InitialBalance,
		Balance:        f.InitialBalance,
		Active:         f.Active,
		IncludeInTotal: f.IncludeInTotal,
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.UpdatedAt,
	}, nil
}

// EncodeCategory serializes a category for the wire.
func EncodeCategory(c *domain.Category) (json.RawMessage, error) {
	return json.Marshal(categoryFields{
		Name:      c.Name,
		Kind:      string(c.Kind),
		Icon:      c.Icon,
		Color:     c.Color,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	})
}

// DecodeCategory rebuilds a category from wire fields.
func DecodeCategory(id string, fields json.RawMessage) (*domain.Category, error) {
	var f categoryFields
	if err := json.Unmarshal(fields, &f); err != nil {
		return nil, fmt.Errorf("%w: category fields: %v", domain.ErrValidation, err)
	}
	return &domain.Category{
		ID:        id,
		Name:      f.Name,
		Kind:      domain.CategoryKind(f.Kind),
		Icon:      f.Icon,
		Color:     f.Color,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}, nil
}

// EncodeTransaction serializes a transaction for the wire.
func EncodeTransaction(t *domain.Transaction) (json.RawMessage, error) {
	return json.Marshal(transactionFields{
		AccountID:            t.AccountID,
		DestinationAccountID: t.DestinationAccountID,
		CategoryID:           t.CategoryID,
		Description:          t.Description,
		Notes:                t.Notes,
		Amount:               t.Amount,
		Kind:                 string(t.Kind),
		Date:                 t.Date,
		Effectuated:          t.Effectuated,
		Recurring:            t.Recurring,
		InstallmentGroupID:   t.InstallmentGroupID,
		InstallmentNumber:    t.InstallmentNumber,
		InstallmentCount:     t.InstallmentCount,
		Reference:            t.Reference,
		CreatedAt:            t.CreatedAt,
		UpdatedAt:            t.UpdatedAt,
	})
}

// DecodeTransaction rebuilds a transaction from wire fields.
func DecodeTransaction(id string, fields json.RawMessage) (*domain.Transaction, error) {
	var f transactionFields
	if err := json.Unmarshal(fields, &f); err != nil {
		return nil, fmt.Errorf("%w: transaction fields: %v", domain.ErrValidation, err)
	}
	return &domain.Transaction{
		ID:                   id,
		AccountID:            f.AccountID,
		DestinationAccountID: f.DestinationAccountID,
		CategoryID:           f.CategoryID,
		Description:          f.Description,
		Notes:                f.Notes,
		Amount:               f.Amount,
		Kind:                 domain.TransactionKind(f.Kind),
		Date:                 f.Date,
		Effectuated:          f.Effectuated,
		Recurring:            f.Recurring,
		InstallmentGroupID:   f.InstallmentGroupID,
		InstallmentNumber:    f.InstallmentNumber,
		InstallmentCount:     f.InstallmentCount,
		Reference:            f.Reference,
		CreatedAt:            f.CreatedAt,
		UpdatedAt:            f.UpdatedAt,
	}, nil
}

// EncodeBudget serializes a budget for the wire.
func EncodeBudget(b *domain.Budget) (json.RawMessage, error) {
	return json.Marshal(budgetFields{
		CategoryID: b.CategoryID,
		Month:      b.Month,
		Year:       b.Year,
		Planned:    b.Planned,
		Active:     b.Active,
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	})
}

// DecodeBudget rebuilds a budget from wire fields. Consumed starts at zero
// and is derived by the aggregator after the merge.
func DecodeBudget(id string, fields json.RawMessage) (*domain.Budget, error) {
	var f budgetFields
	if err := json.Unmarshal(fields, &f); err != nil {
		return nil, fmt.Errorf("%w: budget fields: %v", domain.ErrValidation, err)
	}
	return &domain.Budget{
		ID:         id,
		CategoryID: f.CategoryID,
		Month:      f.Month,
		Year:       f.Year,
		Planned:    f.Planned,
		Consumed:   decimal.Zero,
		Active:     f.Active,
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.UpdatedAt,
	}, nil
}

// EncodeGoal serializes a goal for the wire.
func EncodeGoal(g *domain.Goal) (json.RawMessage, error) {
	return json.Marshal(goalFields{
		Name:          g.Name,
		TargetAmount:  g.TargetAmount,
		CurrentAmount: g.CurrentAmount,
		StartDate:     g.StartDate,
		TargetDate:    g.TargetDate,
		Completed:     g.Completed,
		CompletedAt:   g.CompletedAt,
		CreatedAt:     g.CreatedAt,
		UpdatedAt:     g.UpdatedAt,
	})
}

// DecodeGoal rebuilds a goal from wire fields.
func DecodeGoal(id string, fields json.RawMessage) (*domain.Goal, error) {
	var f goalFields
	if err := json.Unmarshal(fields, &f); err != nil {
		return nil, fmt.Errorf("%w: goal fields: %v", domain.ErrValidation, err)
	}
	return &domain.Goal{
		ID:            id,
		Name:          f.Name,
		TargetAmount:  f.TargetAmount,
		CurrentAmount: f.CurrentAmount,
		StartDate:     f.StartDate,
		TargetDate:    f.TargetDate,
		Completed:     f.Completed,
		CompletedAt:   f.CompletedAt,
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
	}, nil
}
