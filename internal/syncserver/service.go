// Package syncserver is the authoritative store behind the sync protocol:
// it versions uploaded entities, detects concurrent edits and serves deltas.
package syncserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bolsoapp/bolso/internal/domain"
)

// Item is one versioned entity copy as the server stores it. Version counts
// accepted writes; an upload whose ClientVersion does not match it raced a
// write from another device.
type Item struct {
	UserID     string
	Type       domain.EntityType
	ID         string
	Version    int64
	Deleted    bool
	Fields     json.RawMessage
	ModifiedAt time.Time
	UpdatedAt  time.Time
}

// Wire converts the stored copy to its on-the-wire form.
func (it *Item) Wire() *domain.SyncItem {
	op := domain.OpUpdate
	if it.Deleted {
		op = domain.OpDelete
	}
	return &domain.SyncItem{
		Type:          it.Type,
		ID:            it.ID,
		Operation:     op,
		Fields:        it.Fields,
		ServerVersion: it.Version,
		ModifiedAt:    it.ModifiedAt,
	}
}

// ItemRepository defines the server-side storage of synced entities.
type ItemRepository interface {
	Get(ctx context.Context, tx Tx, userID string, entityType domain.EntityType, entityID string) (*Item, error)
	Upsert(ctx context.Context, tx Tx, item *Item) error
	ListSince(ctx context.Context, userID string, since time.Time) ([]*Item, error)
}

// DeviceRepository tracks client installations and their last sync time.
type DeviceRepository interface {
	Ensure(ctx context.Context, device *domain.Device) error
	TouchLastSync(ctx context.Context, deviceID string, at time.Time) error
	Get(ctx context.Context, deviceID string) (*domain.Device, error)
}

// UserRepository resolves server accounts.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
}

// Tx is a server-side storage transaction.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TxManager begins server-side storage transactions.
type TxManager interface {
	Begin(ctx context.Context) (Tx, error)
}

// UploadResult reports one processed upload batch.
type UploadResult struct {
	Acks      []Ack
	Conflicts []domain.SyncConflict
	SyncedAt  time.Time
}

// Ack is one accepted item with its server-assigned version.
type Ack struct {
	Type          domain.EntityType
	ID            string
	ServerVersion int64
}

// Delta is the changes-since answer of the download phase.
type Delta struct {
	Items           []domain.SyncItem
	ServerTimestamp time.Time
}

// Service applies upload batches and serves deltas for one user at a time.
type Service struct {
	items   ItemRepository
	devices DeviceRepository
	txm     TxManager
	logger  zerolog.Logger
	now     func() time.Time
}

// NewService creates a sync server service.
func NewService(items ItemRepository, devices DeviceRepository, txm TxManager, logger zerolog.Logger) *Service {
	return &Service{
		items:   items,
		devices: devices,
		txm:     txm,
		logger:  logger.With().Str("component", "syncserver").Logger(),
		now:     time.Now,
	}
}

// Upload applies a device's dirty delta in one transaction. Items whose
// ClientVersion matches the stored version are accepted and bumped; the
// rest come back as conflicts carrying the server copy, and the batch
// still commits the accepted part.
func (s *Service) Upload(ctx context.Context, userID, deviceID string, items []domain.SyncItem) (*UploadResult, error) {
	for _, item := range items {
		if !item.Type.Valid() {
			return nil, fmt.Errorf("%w: unknown entity type %q", domain.ErrValidation, item.Type)
		}
		if item.ID == "" {
			return nil, fmt.Errorf("%w: sync item without id", domain.ErrValidation)
		}
	}

	tx, err := s.txm.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	now := s.now().UTC()
	result := &UploadResult{SyncedAt: now}

	for _, item := range items {
		stored, err := s.items.Get(ctx, tx, userID, item.Type, item.ID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			stored = nil
		case err != nil:
			return nil, err
		}

		if stored != nil && stored.Version != item.ClientVersion {
			result.Conflicts = append(result.Conflicts, domain.SyncConflict{
				ItemID:        item.ID,
				Type:          item.Type,
				LocalVersion:  item.ClientVersion,
				ServerVersion: stored.Version,
				Server:        stored.Wire(),
			})
			continue
		}

		next := &Item{
			UserID:     userID,
			Type:       item.Type,
			ID:         item.ID,
			Version:    item.ClientVersion + 1,
			Deleted:    item.Operation == domain.OpDelete,
			Fields:     item.Fields,
			ModifiedAt: item.ModifiedAt,
			UpdatedAt:  now,
		}
		if err := s.items.Upsert(ctx, tx, next); err != nil {
			return nil, err
		}
		result.Acks = append(result.Acks, Ack{Type: item.Type, ID: item.ID, ServerVersion: next.Version})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	if deviceID != "" {
		if err := s.devices.TouchLastSync(ctx, deviceID, now); err != nil {
			s.logger.Warn().Err(err).Str("device_id", deviceID).Msg("touch last sync failed")
		}
	}

	s.logger.Info().
		Str("user_id", userID).
		Int("accepted", len(result.Acks)).
		Int("conflicts", len(result.Conflicts)).
		Msg("upload applied")

	return result, nil
}

// Download returns every change of the user's data since the given time,
// tombstones included, with the timestamp the client should checkpoint.
func (s *Service) Download(ctx context.Context, userID string, since time.Time) (*Delta, error) {
	stored, err := s.items.ListSince(ctx, userID, since)
	if err != nil {
		return nil, err
	}

	delta := &Delta{ServerTimestamp: s.now().UTC()}
	for _, item := range stored {
		delta.Items = append(delta.Items, *item.Wire())
	}
	return delta, nil
}

// Status reports the server's view of one device.
func (s *Service) Status(ctx context.Context, deviceID string) (*domain.Device, error) {
	return s.devices.Get(ctx, deviceID)
}

// RegisterDevice records a device on first contact.
func (s *Service) RegisterDevice(ctx context.Context, userID, deviceID, name string) error {
	return s.devices.Ensure(ctx, &domain.Device{
		ID:        deviceID,
		UserID:    userID,
		Name:      name,
		CreatedAt: s.now().UTC(),
	})
}

// RecordResolutions validates and logs the client's conflict choices. The
// data change itself arrives as a follow-up upload (client-wins) or is
// already stored (server-wins), so nothing is mutated here.
func (s *Service) RecordResolutions(ctx context.Context, userID string, choices []Choice) error {
	for _, choice := range choices {
		if _, err := domain.ParseConflictResolution(choice.Resolution); err != nil {
			return fmt.Errorf("%w: item %s", err, choice.ItemID)
		}
	}
	for _, choice := range choices {
		s.logger.Info().
			Str("user_id", userID).
			Str("item_id", choice.ItemID).
			Str("resolution", choice.Resolution).
			Msg("conflict resolved")
	}
	return nil
}

// Choice is one reported conflict resolution.
type Choice struct {
	ItemID     string
	Type       domain.EntityType
	Resolution string
}
