package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bolsoapp/bolso/internal/domain"
)

// UserRepository implements syncserver.UserRepository. Every operation runs
// on the pool, so all of them go through the retrier.
type UserRepository struct {
	pool  querier
	retry *Retrier
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool *pgxpool.Pool, retry *Retrier) *UserRepository {
	return &UserRepository{pool: pool, retry: retry}
}

// GetByEmail retrieves a user by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.get(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE email = $1`, email)
}

// GetByID retrieves a user by id.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.get(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE id = $1`, id)
}

func (r *UserRepository) get(ctx context.Context, query, arg string) (*domain.User, error) {
	var user domain.User
	err := r.retry.Retry(ctx, func() error {
		return r.pool.QueryRow(ctx, query, arg).
			Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get user: %w", domain.ErrPersistence, err)
	}
	return &user, nil
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	err := r.retry.Retry(ctx, func() error {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO users (id, email, password_hash, created_at)
			VALUES ($1, $2, $3, $4)`,
			user.ID, user.Email, user.PasswordHash, user.CreatedAt.UTC(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: insert user: %w", domain.ErrPersistence, err)
	}
	return nil
}

// DeviceRepository implements syncserver.DeviceRepository.
type DeviceRepository struct {
	pool  querier
	retry *Retrier
}

// NewDeviceRepository creates a new DeviceRepository.
func NewDeviceRepository(pool *pgxpool.Pool, retry *Retrier) *DeviceRepository {
	return &DeviceRepository{pool: pool, retry: retry}
}

// Ensure records a device on first contact; a known id is left untouched.
func (r *DeviceRepository) Ensure(ctx context.Context, device *domain.Device) error {
	err := r.retry.Retry(ctx, func() error {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO devices (id, user_id, name, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO NOTHING`,
			device.ID, device.UserID, device.Name, device.CreatedAt.UTC(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: ensure device: %w", domain.ErrPersistence, err)
	}
	return nil
}

// TouchLastSync stamps the device's last successful sync.
func (r *DeviceRepository) TouchLastSync(ctx context.Context, deviceID string, at time.Time) error {
	err := r.retry.Retry(ctx, func() error {
		_, err := r.pool.Exec(ctx,
			`UPDATE devices SET last_sync_at = $1 WHERE id = $2`,
			at.UTC(), deviceID,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: touch last sync: %w", domain.ErrPersistence, err)
	}
	return nil
}

// Get retrieves one device.
func (r *DeviceRepository) Get(ctx context.Context, deviceID string) (*domain.Device, error) {
	var device domain.Device
	err := r.retry.Retry(ctx, func() error {
		return r.pool.QueryRow(ctx,
			`SELECT id, user_id, name, last_sync_at, created_at FROM devices WHERE id = $1`,
			deviceID,
		).Scan(&device.ID, &device.UserID, &device.Name, &device.LastSyncAt, &device.CreatedAt)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: device %s", domain.ErrNotFound, deviceID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get device: %w", domain.ErrPersistence, err)
	}
	return &device, nil
}
