package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bolsoapp/bolso/internal/domain"
	"github.com/bolsoapp/bolso/internal/usecase"
)

// BudgetRepository implements usecase.BudgetRepository.
type BudgetRepository struct {
	store *Store
}

// NewBudgetRepository creates a new BudgetRepository.
func NewBudgetRepository(store *Store) *BudgetRepository {
	return &BudgetRepository{store: store}
}

const budgetColumns = `id, category_id, month, year, planned, consumed, active,
	created_at, updated_at`

// Create inserts a new budget. The (category, month, year) unique index
// backs the one-budget-per-period rule.
func (r *BudgetRepository) Create(ctx context.Context, tx usecase.Transaction, budget *domain.Budget) error {
	ex, err := r.store.exec(tx)
	if err != nil {
		return err
	}

	_, err = ex.ExecContext(ctx, `
		INSERT INTO budgets (`+budgetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		budget.ID, budget.CategoryID, budget.Month, budget.Year,
		budget.Planned.String(), budget.Consumed.String(), boolToInt(budget.Active),
		formatTime(budget.CreatedAt), formatTime(budget.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("%w: insert budget: %v", domain.ErrPersistence, err)
	}
	return nil
}

// GetByID retrieves a budget by ID.
func (r *BudgetRepository) GetByID(ctx context.Context, tx usecase.Transaction, id string) (*domain.Budget, error) {
	ex, err := r.store.exec(tx)
	if err != nil {
		return nil, err
	}

	row := ex.QueryRowContext(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = ?`, id)
	budget, err := scanBudget(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBudgetNotFound
		}
		return nil, err
	}
	return budget, nil
}

// GetByCategoryPeriod retrieves the budget of a category for one month.
func (r *BudgetRepository) GetByCategoryPeriod(ctx context.Context, tx usecase.Transaction, categoryID string, month, year int) (*domain.Budget, error) {
	ex, err := r.store.exec(tx)
	if err != nil {
		return nil, err
	}

	row := ex.QueryRowContext(ctx, `
		SELECT `+budgetColumns+` FROM budgets
		WHERE category_id = ? AND month = ? AND year = ?`,
		categoryID, month, year,
	)
	budget, err := scanBudget(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBudgetNotFound
		}
		return nil, err
	}
	return budget, nil
}

// ListByPeriod lists the budgets of one month.
func (r *BudgetRepository) ListByPeriod(ctx context.Context, tx usecase.Transaction, month, year int, activeOnly bool) ([]*domain.Budget, error) {
	ex, err := r.store.exec(tx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + budgetColumns + ` FROM budgets WHERE month = ? AND year = ?`
	args := []any{month, year}
	if activeOnly {
		query += ` AND active = 1`
	}
	query += ` ORDER BY category_id`

	rows, err := ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list budgets: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()

	var budgets []*domain.Budget
	for rows.Next() {
		budget, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		budgets = append(budgets, budget)
	}
	return budgets, rows.Err()
}

// Update rewrites the budget row.
func (r *BudgetRepository) Update(ctx context.Context, tx usecase.Transaction, budget *domain.Budget) error {
	ex, err := r.store.exec(tx)
	if err != nil {
		return err
	}

	res, err := ex.ExecContext(ctx, `
		UPDATE budgets
		SET category_id = ?, month = ?, year = ?, planned = ?, consumed = ?,
			active = ?, updated_at = ?
		WHERE id = ?`,
		budget.CategoryID, budget.Month, budget.Year,
		budget.Planned.String(), budget.Consumed.String(), boolToInt(budget.Active),
		formatTime(budget.UpdatedAt), budget.ID,
	)
	if err != nil {
		return fmt.Errorf("%w: update budget: %v", domain.ErrPersistence, err)
	}
	return requireRow(res, domain.ErrBudgetNotFound)
}

// UpdateConsumed writes the derived consumed amount only.
func (r *BudgetRepository) UpdateConsumed(ctx context.Context, tx usecase.Transaction, id string, consumed decimal.Decimal, updatedAt time.Time) error {
	ex, err := r.store.exec(tx)
	if err != nil {
		return err
	}

	res, err := ex.ExecContext(ctx,
		`UPDATE budgets SET consumed = ?, updated_at = ? WHERE id = ?`,
		consumed.String(), formatTime(updatedAt), id,
	)
	if err != nil {
		return fmt.Errorf("%w: update consumed: %v", domain.ErrPersistence, err)
	}
	return requireRow(res, domain.ErrBudgetNotFound)
}

// Delete removes a budget row.
func (r *BudgetRepository) Delete(ctx context.Context, tx usecase.Transaction, id string) error {
	ex, err := r.store.exec(tx)
	if err != nil {
		return err
	}

	res, err := ex.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: delete budget: %v", domain.ErrPersistence, err)
	}
	return requireRow(res, domain.ErrBudgetNotFound)
}

func scanBudget(row rowScanner) (*domain.Budget, error) {
	var (
		b                    domain.Budget
		planned, consumed    string
		active               int64
		createdAt, updatedAt string
	)
	if err := row.Scan(&b.ID, &b.CategoryID, &b.Month, &b.Year,
		&planned, &consumed, &active, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: scan budget: %v", domain.ErrPersistence, err)
	}

	var err error
	if b.Planned, err = parseDecimal(planned); err != nil {
		return nil, err
	}
	if b.Consumed, err = parseDecimal(consumed); err != nil {
		return nil, err
	}
	b.Active = active != 0
	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if b.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}
