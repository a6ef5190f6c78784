package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/bolsoapp/bolso/internal/domain"
)

// markDirty flags an entity for upload inside the same write transaction as
// the mutation itself, so the dirty set can never miss a committed change.
func markDirty(ctx context.Context, tx Transaction, repo SyncStateRepository, entityType domain.EntityType, entityID string, now time.Time) error {
	state, err := repo.Get(ctx, tx, entityType, entityID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		state = &domain.SyncState{EntityType: entityType, EntityID: entityID}
	}

	state.Dirty = true
	state.ModifiedAt = now

	return repo.Upsert(ctx, tx, state)
}

// markDeleted records a tombstone so the delete still reaches the server.
// Entities the server never saw are dropped from the sync state instead.
func markDeleted(ctx context.Context, tx Transaction, repo SyncStateRepository, entityType domain.EntityType, entityID string, now time.Time) error {
	state, err := repo.Get(ctx, tx, entityType, entityID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		state = &domain.SyncState{EntityType: entityType, EntityID: entityID}
	}

	if state.ServerVersion == 0 {
		return repo.Delete(ctx, tx, entityType, entityID)
	}

	state.Dirty = true
	state.Deleted = true
	state.ModifiedAt = now

	return repo.Upsert(ctx, tx, state)
}

func invalidateAggregates(cache Cache) {
	if cache == nil {
		return
	}
	cache.DeletePrefix(CacheNamespaceDashboard)
	cache.DeletePrefix(CacheNamespaceReport)
}
