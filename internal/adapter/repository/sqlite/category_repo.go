package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bolsoapp/bolso/internal/domain"
	"github.com/bolsoapp/bolso/internal/usecase"
)

// CategoryRepository implements usecase.CategoryRepository.
type CategoryRepository struct {
	store *Store
}

// NewCategoryRepository creates a new CategoryRepository.
func NewCategoryRepository(store *Store) *CategoryRepository {
	return &CategoryRepository{store: store}
}

const categoryColumns = `id, name, kind, icon, color, created_at, updated_at`

// Create inserts a new category.
func (r *CategoryRepository) Create(ctx context.Context, tx usecase.Transaction, category *domain.Category) error {
	ex, err := r.store.exec(tx)
	if err != nil {
		return err
	}

	_, err = ex.ExecContext(ctx, `
		INSERT INTO categories (`+categoryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		category.ID, category.Name, string(category.Kind), category.Icon, category.Color,
		formatTime(category.CreatedAt), formatTime(category.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("%w: insert category: %v", domain.ErrPersistence, err)
	}
	return nil
}

// GetByID retrieves a category by ID.
func (r *CategoryRepository) GetByID(ctx context.Context, tx usecase.Transaction, id string) (*domain.Category, error) {
	ex, err := r.store.exec(tx)
	if err != nil {
		return nil, err
	}

	row := ex.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id)
	category, err := scanCategory(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCategoryNotFound
		}
		return nil, err
	}
	return category, nil
}

// List lists categories, optionally filtered by kind.
func (r *CategoryRepository) List(ctx context.Context, kind *domain.CategoryKind) ([]*domain.Category, error) {
	ex, err := r.store.exec(nil)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + categoryColumns + ` FROM categories`
	var args []any
	if kind != nil {
		query += ` WHERE kind = ?`
		args = append(args, string(*kind))
	}
	query += ` ORDER BY name`

	rows, err := ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list categories: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()

	var categories []*domain.Category
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

// Update rewrites the category row.
func (r *CategoryRepository) Update(ctx context.Context, tx usecase.Transaction, category *domain.Category) error {
	ex, err := r.store.exec(tx)
	if err != nil {
		return err
	}

	res, err := ex.ExecContext(ctx, `
		UPDATE categories
		SET name = ?, kind = ?, icon = ?, color = ?, updated_at = ?
		WHERE id = ?`,
		category.Name, string(category.Kind), category.Icon, category.Color,
		formatTime(category.UpdatedAt), category.ID,
	)
	if err != nil {
		return fmt.Errorf("%w: update category: %v", domain.ErrPersistence, err)
	}
	return requireRow(res, domain.ErrCategoryNotFound)
}

// Delete removes a category row.
func (r *CategoryRepository) Delete(ctx context.Context, tx usecase.Transaction, id string) error {
	ex, err := r.store.exec(tx)
	if err != nil {
		return err
	}

	res, err := ex.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: delete category: %v", domain.ErrPersistence, err)
	}
	return requireRow(res, domain.ErrCategoryNotFound)
}

func scanCategory(row rowScanner) (*domain.Category, error) {
	var (
		c                    domain.Category
		kind                 string
		createdAt, updatedAt string
	)
	if err := row.Scan(&c.ID, &c.Name, &kind, &c.Icon, &c.Color, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: scan category: %v", domain.ErrPersistence, err)
	}

	var err error
	c.Kind = domain.CategoryKind(kind)
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}
