package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bolsoapp/bolso/internal/domain"
	"github.com/bolsoapp/bolso/internal/syncserver"
)

// querier is the query surface shared by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ItemRepository implements syncserver.ItemRepository. Pool-level reads go
// through the retrier; statements running on a caller-held transaction do
// not, the whole transaction is the retry unit there.
type ItemRepository struct {
	pool  querier
	retry *Retrier
}

// NewItemRepository creates a new ItemRepository.
func NewItemRepository(pool *pgxpool.Pool, retry *Retrier) *ItemRepository {
	return &ItemRepository{pool: pool, retry: retry}
}

func (r *ItemRepository) q(tx syncserver.Tx) querier {
	if tx != nil {
		return tx.(*Tx).PgxTx()
	}
	return r.pool
}

const itemColumns = `user_id, entity_type, entity_id, version, deleted,
	fields, modified_at, updated_at`

// Get retrieves the stored copy of one entity, locking the row when called
// inside a transaction so concurrent uploads serialize per item.
func (r *ItemRepository) Get(ctx context.Context, tx syncserver.Tx, userID string, entityType domain.EntityType, entityID string) (*syncserver.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM sync_items
		WHERE user_id = $1 AND entity_type = $2 AND entity_id = $3`
	if tx != nil {
		query += ` FOR UPDATE`
	}

	row := r.q(tx).QueryRow(ctx, query, userID, string(entityType), entityID)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return item, nil
}

// Upsert inserts or replaces the stored copy of one entity.
func (r *ItemRepository) Upsert(ctx context.Context, tx syncserver.Tx, item *syncserver.Item) error {
	_, err := r.q(tx).Exec(ctx, `
		INSERT INTO sync_items (`+itemColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, entity_type, entity_id) DO UPDATE SET
			version = excluded.version,
			deleted = excluded.deleted,
			fields = excluded.fields,
			modified_at = excluded.modified_at,
			updated_at = excluded.updated_at`,
		item.UserID, string(item.Type), item.ID, item.Version, item.Deleted,
		item.Fields, item.ModifiedAt.UTC(), item.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("%w: upsert sync item: %w", domain.ErrPersistence, err)
	}
	return nil
}

// ListSince returns every item of the user changed after the given time,
// tombstones included.
func (r *ItemRepository) ListSince(ctx context.Context, userID string, since time.Time) ([]*syncserver.Item, error) {
	var items []*syncserver.Item
	err := r.retry.Retry(ctx, func() error {
		items = nil
		rows, err := r.pool.Query(ctx, `
			SELECT `+itemColumns+` FROM sync_items
			WHERE user_id = $1 AND updated_at > $2
			ORDER BY updated_at, entity_type, entity_id`,
			userID, since.UTC(),
		)
		if err != nil {
			return fmt.Errorf("%w: list since: %w", domain.ErrPersistence, err)
		}
		defer rows.Close()

		for rows.Next() {
			item, err := scanItem(rows)
			if err != nil {
				return err
			}
			items = append(items, item)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func scanItem(row pgx.Row) (*syncserver.Item, error) {
	var (
		item       syncserver.Item
		entityType string
		fields     []byte
	)
	if err := row.Scan(&item.UserID, &entityType, &item.ID, &item.Version,
		&item.Deleted, &fields, &item.ModifiedAt, &item.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: scan sync item: %v", domain.ErrPersistence, err)
	}
	item.Type = domain.EntityType(entityType)
	if len(fields) > 0 {
		item.Fields = json.RawMessage(fields)
	}
	return &item, nil
}
