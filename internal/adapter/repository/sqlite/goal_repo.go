package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bolsoapp/bolso/internal/domain"
	"github.com/bolsoapp/bolso/internal/usecase"
)

// GoalRepository implements usecase.GoalRepository.
type GoalRepository struct {
	store *Store
}

// NewGoalRepository creates a new GoalRepository.
func NewGoalRepository(store *Store) *GoalRepository {
	return &GoalRepository{store: store}
}

const goalColumns = `id, name, target_amount, current_amount, start_date,
	target_date, completed, completed_at, created_at, updated_at`

// Create inserts a new goal.
func (r *GoalRepository) Create(ctx context.Context, tx usecase.Transaction, goal *domain.Goal) error {
	ex, err := r.store.exec(tx)
	if err != nil {
		return err
	}

	_, err = ex.ExecContext(ctx, `
		INSERT INTO goals (`+goalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		goal.ID, goal.Name, goal.TargetAmount.String(), goal.CurrentAmount.String(),
		formatTime(goal.StartDate), formatTime(goal.TargetDate),
		boolToInt(goal.Completed), nullTime(goal.CompletedAt),
		formatTime(goal.CreatedAt), formatTime(goal.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("%w: insert goal: %v", domain.ErrPersistence, err)
	}
	return nil
}

// GetByID retrieves a goal by ID.
func (r *GoalRepository) GetByID(ctx context.Context, tx usecase.Transaction, id string) (*domain.Goal, error) {
	ex, err := r.store.exec(tx)
	if err != nil {
		return nil, err
	}

	row := ex.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = ?`, id)
	goal, err := scanGoal(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrGoalNotFound
		}
		return nil, err
	}
	return goal, nil
}

// List lists goals, optionally only the still-open ones.
func (r *GoalRepository) List(ctx context.Context, openOnly bool) ([]*domain.Goal, error) {
	ex, err := r.store.exec(nil)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + goalColumns + ` FROM goals`
	if openOnly {
		query += ` WHERE completed = 0`
	}
	query += ` ORDER BY target_date, name`

	rows, err := ex.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: list goals: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()

	var goals []*domain.Goal
	for rows.Next() {
		goal, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		goals = append(goals, goal)
	}
	return goals, rows.Err()
}

// Update rewrites the goal row.
func (r *GoalRepository) Update(ctx context.Context, tx usecase.Transaction, goal *domain.Goal) error {
	ex, err := r.store.exec(tx)
	if err != nil {
		return err
	}

	res, err := ex.ExecContext(ctx, `
		UPDATE goals
		SET name = ?, target_amount = ?, current_amount = ?, start_date = ?,
			target_date = ?, completed = ?, completed_at = ?, updated_at = ?
		WHERE id = ?`,
		goal.Name, goal.TargetAmount.String(), goal.CurrentAmount.String(),
		formatTime(goal.StartDate), formatTime(goal.TargetDate),
		boolToInt(goal.Completed), nullTime(goal.CompletedAt),
		formatTime(goal.UpdatedAt), goal.ID,
	)
	if err != nil {
		return fmt.Errorf("%w: update goal: %v", domain.ErrPersistence, err)
	}
	return requireRow(res, domain.ErrGoalNotFound)
}

// Delete removes a goal row.
func (r *GoalRepository) Delete(ctx context.Context, tx usecase.Transaction, id string) error {
	ex, err := r.store.exec(tx)
	if err != nil {
		return err
	}

	res, err := ex.ExecContext(ctx, `DELETE FROM goals WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: delete goal: %v", domain.ErrPersistence, err)
	}
	return requireRow(res, domain.ErrGoalNotFound)
}

func scanGoal(row rowScanner) (*domain.Goal, error) {
	var (
		g                     domain.Goal
		target, current       string
		startDate, targetDate string
		completed             int64
		completedAt           sql.NullString
		createdAt, updatedAt  string
	)
	if err := row.Scan(&g.ID, &g.Name, &target, &current,
		&startDate, &targetDate, &completed, &completedAt,
		&createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: scan goal: %v", domain.ErrPersistence, err)
	}

	var err error
	if g.TargetAmount, err = parseDecimal(target); err != nil {
		return nil, err
	}
	if g.CurrentAmount, err = parseDecimal(current); err != nil {
		return nil, err
	}
	if g.StartDate, err = parseTime(startDate); err != nil {
		return nil, err
	}
	if g.TargetDate, err = parseTime(targetDate); err != nil {
		return nil, err
	}
	g.Completed = completed != 0
	if g.CompletedAt, err = timePtr(completedAt); err != nil {
		return nil, err
	}
	if g.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if g.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &g, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func timePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
