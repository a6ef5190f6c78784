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

// TransactionRepository implements usecase.TransactionRepository.
type TransactionRepository struct {
	store *Store
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(store *Store) *TransactionRepository {
	return &TransactionRepository{store: store}
}

const transactionColumns = `id, account_id, destination_account_id, category_id,
	description, notes, amount, kind, date, effectuated, recurring,
	installment_group_id, installment_number, installment_count, reference,
	created_at, updated_at`

// Create inserts a new transaction.
func (r *TransactionRepository) Create(ctx context.Context, tx usecase.Transaction, t *domain.Transaction) error {
	ex, err := r.store.exec(tx)
	if err != nil {
		return err
	}

	_, err = ex.ExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.AccountID, nullString(t.DestinationAccountID), nullString(t.CategoryID),
		t.Description, t.Notes, t.Amount.String(), string(t.Kind), formatTime(t.Date),
		boolToInt(t.Effectuated), boolToInt(t.Recurring),
		nullString(t.InstallmentGroupID), t.InstallmentNumber, t.InstallmentCount,
		t.Reference, formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("%w: insert transaction: %v", domain.ErrPersistence, err)
	}
	return nil
}

// GetByID retrieves a transaction by ID.
func (r *TransactionRepository) GetByID(ctx context.Context, tx usecase.Transaction, id string) (*domain.Transaction, error) {
	ex, err := r.store.exec(tx)
	if err != nil {
		return nil, err
	}

	row := ex.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}
	return t, nil
}

// List lists transactions newest first, applying the filter fields that are
// set.
func (r *TransactionRepository) List(ctx context.Context, filter usecase.TransactionFilter) ([]*domain.Transaction, error) {
	ex, err := r.store.exec(nil)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE 1=1`
	var args []any
	if filter.AccountID != "" {
		query += ` AND (account_id = ? OR destination_account_id = ?)`
		args = append(args, filter.AccountID, filter.AccountID)
	}
	if filter.CategoryID != "" {
		query += ` AND category_id = ?`
		args = append(args, filter.CategoryID)
	}
	if filter.Kind != nil {
		query += ` AND kind = ?`
		args = append(args, string(*filter.Kind))
	}
	if filter.From != nil {
		query += ` AND date >= ?`
		args = append(args, formatTime(*filter.From))
	}
	if filter.To != nil {
		query += ` AND date < ?`
		args = append(args, formatTime(*filter.To))
	}
	query += ` ORDER BY date DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list transactions: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// Update rewrites the transaction row.
func (r *TransactionRepository) Update(ctx context.Context, tx usecase.Transaction, t *domain.Transaction) error {
	ex, err := r.store.exec(tx)
	if err != nil {
		return err
	}

	res, err := ex.ExecContext(ctx, `
		UPDATE transactions
		SET account_id = ?, destination_account_id = ?, category_id = ?,
			description = ?, notes = ?, amount = ?, kind = ?, date = ?,
			effectuated = ?, recurring = ?, installment_group_id = ?,
			installment_number = ?, installment_count = ?, reference = ?,
			updated_at = ?
		WHERE id = ?`,
		t.AccountID, nullString(t.DestinationAccountID), nullString(t.CategoryID),
		t.Description, t.Notes, t.Amount.String(), string(t.Kind), formatTime(t.Date),
		boolToInt(t.Effectuated), boolToInt(t.Recurring), nullString(t.InstallmentGroupID),
		t.InstallmentNumber, t.InstallmentCount, t.Reference,
		formatTime(t.UpdatedAt), t.ID,
	)
	if err != nil {
		return fmt.Errorf("%w: update transaction: %v", domain.ErrPersistence, err)
	}
	return requireRow(res, domain.ErrTransactionNotFound)
}

// Delete removes a transaction row.
func (r *TransactionRepository) Delete(ctx context.Context, tx usecase.Transaction, id string) error {
	ex, err := r.store.exec(tx)
	if err != nil {
		return err
	}

	res, err := ex.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: delete transaction: %v", domain.ErrPersistence, err)
	}
	return requireRow(res, domain.ErrTransactionNotFound)
}

// ListTouchingAccount returns every transaction where the account appears as
// source or transfer destination.
func (r *TransactionRepository) ListTouchingAccount(ctx context.Context, tx usecase.Transaction, accountID string) ([]*domain.Transaction, error) {
	ex, err := r.store.exec(tx)
	if err != nil {
		return nil, err
	}

	rows, err := ex.QueryContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE account_id = ? OR destination_account_id = ?
		ORDER BY date, id`,
		accountID, accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list touching account: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// CountByAccount counts transactions touching an account.
func (r *TransactionRepository) CountByAccount(ctx context.Context, accountID string) (int, error) {
	ex, err := r.store.exec(nil)
	if err != nil {
		return 0, err
	}

	var n int
	err = ex.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM transactions
		WHERE account_id = ? OR destination_account_id = ?`,
		accountID, accountID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: count by account: %v", domain.ErrPersistence, err)
	}
	return n, nil
}

// SumEffectuatedExpenses totals settled expenses for a category in the given
// month. Summation happens in Go so decimals never round through SQL floats.
func (r *TransactionRepository) SumEffectuatedExpenses(ctx context.Context, tx usecase.Transaction, categoryID string, month, year int) (decimal.Decimal, error) {
	ex, err := r.store.exec(tx)
	if err != nil {
		return decimal.Zero, err
	}

	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	rows, err := ex.QueryContext(ctx, `
		SELECT amount FROM transactions
		WHERE category_id = ? AND kind = ? AND effectuated = 1
			AND date >= ? AND date < ?`,
		categoryID, string(domain.KindExpense), formatTime(from), formatTime(to),
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: sum expenses: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, fmt.Errorf("%w: scan amount: %v", domain.ErrPersistence, err)
		}
		amount, err := parseDecimal(raw)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(amount)
	}
	return total, rows.Err()
}

func collectTransactions(rows *sql.Rows) ([]*domain.Transaction, error) {
	var transactions []*domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		t                            domain.Transaction
		destination, category, group sql.NullString
		amount, kind                 string
		date, createdAt, updatedAt   string
		effectuated, recurring       int64
	)
	if err := row.Scan(&t.ID, &t.AccountID, &destination, &category,
		&t.Description, &t.Notes, &amount, &kind, &date,
		&effectuated, &recurring, &group,
		&t.InstallmentNumber, &t.InstallmentCount, &t.Reference,
		&createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: scan transaction: %v", domain.ErrPersistence, err)
	}

	var err error
	t.DestinationAccountID = stringPtr(destination)
	t.CategoryID = stringPtr(category)
	t.InstallmentGroupID = stringPtr(group)
	if t.Amount, err = parseDecimal(amount); err != nil {
		return nil, err
	}
	t.Kind = domain.TransactionKind(kind)
	if t.Date, err = parseTime(date); err != nil {
		return nil, err
	}
	t.Effectuated = effectuated != 0
	t.Recurring = recurring != 0
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
