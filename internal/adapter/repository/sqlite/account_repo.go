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

// AccountRepository implements usecase.AccountRepository.
type AccountRepository struct {
	store *Store
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(store *Store) *AccountRepository {
	return &AccountRepository{store: store}
}

const accountColumns = `id, name, kind, bank, color, initial_balance, balance,
	active, include_in_total, created_at, updated_at`

// Create inserts a new account.
func (r *AccountRepository) Create(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	ex, err := r.store.exec(tx)
	if err != nil {
		return err
	}

	_, err = ex.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID, account.Name, string(account.Kind), account.Bank, account.Color,
		account.InitialBalance.String(), account.Balance.String(),
		boolToInt(account.Active), boolToInt(account.IncludeInTotal),
		formatTime(account.CreatedAt), formatTime(account.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("%w: insert account: %v", domain.ErrPersistence, err)
	}
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, tx usecase.Transaction, id string) (*domain.Account, error) {
	ex, err := r.store.exec(tx)
	if err != nil {
		return nil, err
	}

	row := ex.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

// List lists accounts, optionally filtered by kind or active flag.
func (r *AccountRepository) List(ctx context.Context, filter usecase.AccountFilter) ([]*domain.Account, error) {
	ex, err := r.store.exec(nil)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE 1=1`
	var args []any
	if filter.ActiveOnly {
		query += ` AND active = 1`
	}
	if filter.Kind != nil {
		query += ` AND kind = ?`
		args = append(args, string(*filter.Kind))
	}
	query += ` ORDER BY name`

	rows, err := ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list accounts: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// Update rewrites every user-editable column.
func (r *AccountRepository) Update(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	ex, err := r.store.exec(tx)
	if err != nil {
		return err
	}

	res, err := ex.ExecContext(ctx, `
		UPDATE accounts
		SET name = ?, kind = ?, bank = ?, color = ?, initial_balance = ?,
			balance = ?, active = ?, include_in_total = ?, updated_at = ?
		WHERE id = ?`,
		account.Name, string(account.Kind), account.Bank, account.Color,
		account.InitialBalance.String(), account.Balance.String(),
		boolToInt(account.Active), boolToInt(account.IncludeInTotal),
		formatTime(account.UpdatedAt), account.ID,
	)
	if err != nil {
		return fmt.Errorf("%w: update account: %v", domain.ErrPersistence, err)
	}
	return requireRow(res, domain.ErrAccountNotFound)
}

// UpdateBalance writes the derived balance only.
func (r *AccountRepository) UpdateBalance(ctx context.Context, tx usecase.Transaction, id string, balance decimal.Decimal, updatedAt time.Time) error {
	ex, err := r.store.exec(tx)
	if err != nil {
		return err
	}

	res, err := ex.ExecContext(ctx,
		`UPDATE accounts SET balance = ?, updated_at = ? WHERE id = ?`,
		balance.String(), formatTime(updatedAt), id,
	)
	if err != nil {
		return fmt.Errorf("%w: update balance: %v", domain.ErrPersistence, err)
	}
	return requireRow(res, domain.ErrAccountNotFound)
}

// Delete removes an account row.
func (r *AccountRepository) Delete(ctx context.Context, tx usecase.Transaction, id string) error {
	ex, err := r.store.exec(tx)
	if err != nil {
		return err
	}

	res, err := ex.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: delete account: %v", domain.ErrPersistence, err)
	}
	return requireRow(res, domain.ErrAccountNotFound)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var (
		a                       domain.Account
		kind                    string
		initialBalance, balance string
		active, includeInTotal  int64
		createdAt, updatedAt    string
	)
	if err := row.Scan(&a.ID, &a.Name, &kind, &a.Bank, &a.Color,
		&initialBalance, &balance, &active, &includeInTotal,
		&createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: scan account: %v", domain.ErrPersistence, err)
	}

	var err error
	a.Kind = domain.AccountKind(kind)
	if a.InitialBalance, err = parseDecimal(initialBalance); err != nil {
		return nil, err
	}
	if a.Balance, err = parseDecimal(balance); err != nil {
		return nil, err
	}
	a.Active = active != 0
	a.IncludeInTotal = includeInTotal != 0
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: parse decimal %q: %v", domain.ErrPersistence, s, err)
	}
	return d, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// requireRow maps a zero-row update/delete to the entity's not-found error.
func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %v", domain.ErrPersistence, err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
