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

// SyncStateRepository implements usecase.SyncStateRepository over the
// sync_states and sync_meta tables.
type SyncStateRepository struct {
	store *Store
}

// NewSyncStateRepository creates a new SyncStateRepository.
func NewSyncStateRepository(store *Store) *SyncStateRepository {
	return &SyncStateRepository{store: store}
}

const syncStateColumns = `entity_type, entity_id, server_version, dirty,
	deleted, modified_at, last_synced_at`

const checkpointKey = "checkpoint"

// Get retrieves the sync state of one entity.
func (r *SyncStateRepository) Get(ctx context.Context, tx usecase.Transaction, entityType domain.EntityType, entityID string) (*domain.SyncState, error) {
	ex, err := r.store.exec(tx)
	if err != nil {
		return nil, err
	}

	row := ex.QueryRowContext(ctx, `
		SELECT `+syncStateColumns+` FROM sync_states
		WHERE entity_type = ? AND entity_id = ?`,
		string(entityType), entityID,
	)
	state, err := scanSyncState(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSyncStateNotFound
		}
		return nil, err
	}
	return state, nil
}

// Upsert inserts or replaces the sync state of one entity.
func (r *SyncStateRepository) Upsert(ctx context.Context, tx usecase.Transaction, state *domain.SyncState) error {
	ex, err := r.store.exec(tx)
	if err != nil {
		return err
	}

	_, err = ex.ExecContext(ctx, `
		INSERT INTO sync_states (`+syncStateColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (entity_type, entity_id) DO UPDATE SET
			server_version = excluded.server_version,
			dirty = excluded.dirty,
			deleted = excluded.deleted,
			modified_at = excluded.modified_at,
			last_synced_at = excluded.last_synced_at`,
		string(state.EntityType), state.EntityID, state.ServerVersion,
		boolToInt(state.Dirty), boolToInt(state.Deleted),
		formatTime(state.ModifiedAt), nullTime(state.LastSyncedAt),
	)
	if err != nil {
		return fmt.Errorf("%w: upsert sync state: %v", domain.ErrPersistence, err)
	}
	return nil
}

// ListDirty returns every entity awaiting upload.
func (r *SyncStateRepository) ListDirty(ctx context.Context) ([]*domain.SyncState, error) {
	ex, err := r.store.exec(nil)
	if err != nil {
		return nil, err
	}

	rows, err := ex.QueryContext(ctx, `
		SELECT `+syncStateColumns+` FROM sync_states
		WHERE dirty = 1
		ORDER BY modified_at, entity_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list dirty: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()

	var states []*domain.SyncState
	for rows.Next() {
		state, err := scanSyncState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, rows.Err()
}

// CountDirty counts entities awaiting upload.
func (r *SyncStateRepository) CountDirty(ctx context.Context) (int, error) {
	ex, err := r.store.exec(nil)
	if err != nil {
		return 0, err
	}

	var n int
	err = ex.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_states WHERE dirty = 1`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: count dirty: %v", domain.ErrPersistence, err)
	}
	return n, nil
}

// MarkClean clears the dirty flag after a server ack and records the
// server-assigned version.
func (r *SyncStateRepository) MarkClean(ctx context.Context, entityType domain.EntityType, entityID string, serverVersion int64, syncedAt time.Time) error {
	ex, err := r.store.exec(nil)
	if err != nil {
		return err
	}

	res, err := ex.ExecContext(ctx, `
		UPDATE sync_states
		SET dirty = 0, server_version = ?, last_synced_at = ?
		WHERE entity_type = ? AND entity_id = ?`,
		serverVersion, formatTime(syncedAt), string(entityType), entityID,
	)
	if err != nil {
		return fmt.Errorf("%w: mark clean: %v", domain.ErrPersistence, err)
	}
	return requireRow(res, domain.ErrSyncStateNotFound)
}

// Delete removes a sync state row, used when an acked tombstone or a
// never-synced entity leaves the ledger.
func (r *SyncStateRepository) Delete(ctx context.Context, tx usecase.Transaction, entityType domain.EntityType, entityID string) error {
	ex, err := r.store.exec(tx)
	if err != nil {
		return err
	}

	_, err = ex.ExecContext(ctx, `
		DELETE FROM sync_states WHERE entity_type = ? AND entity_id = ?`,
		string(entityType), entityID,
	)
	if err != nil {
		return fmt.Errorf("%w: delete sync state: %v", domain.ErrPersistence, err)
	}
	return nil
}

// Checkpoint returns the server timestamp of the last applied download,
// zero when the device never synced.
func (r *SyncStateRepository) Checkpoint(ctx context.Context) (time.Time, error) {
	ex, err := r.store.exec(nil)
	if err != nil {
		return time.Time{}, err
	}

	var raw string
	err = ex.QueryRowContext(ctx, `SELECT value FROM sync_meta WHERE key = ?`, checkpointKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: read checkpoint: %v", domain.ErrPersistence, err)
	}
	return parseTime(raw)
}

// SetCheckpoint stores the server timestamp of the last applied download.
func (r *SyncStateRepository) SetCheckpoint(ctx context.Context, at time.Time) error {
	ex, err := r.store.exec(nil)
	if err != nil {
		return err
	}

	_, err = ex.ExecContext(ctx, `
		INSERT INTO sync_meta (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		checkpointKey, formatTime(at),
	)
	if err != nil {
		return fmt.Errorf("%w: set checkpoint: %v", domain.ErrPersistence, err)
	}
	return nil
}

func scanSyncState(row rowScanner) (*domain.SyncState, error) {
	var (
		s              domain.SyncState
		entityType     string
		dirty, deleted int64
		modifiedAt     string
		lastSyncedAt   sql.NullString
	)
	if err := row.Scan(&entityType, &s.EntityID, &s.ServerVersion,
		&dirty, &deleted, &modifiedAt, &lastSyncedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: scan sync state: %v", domain.ErrPersistence, err)
	}

	var err error
	s.EntityType = domain.EntityType(entityType)
	s.Dirty = dirty != 0
	s.Deleted = deleted != 0
	if s.ModifiedAt, err = parseTime(modifiedAt); err != nil {
		return nil, err
	}
	if s.LastSyncedAt, err = timePtr(lastSyncedAt); err != nil {
		return nil, err
	}
	return &s, nil
}
