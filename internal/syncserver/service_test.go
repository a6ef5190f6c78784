package syncserver

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bolsoapp/bolso/internal/domain"
)

type memItemRepo struct {
	items map[string]*Item
}

func newMemItemRepo() *memItemRepo {
	return &memItemRepo{items: make(map[string]*Item)}
}

func itemKey(userID string, entityType domain.EntityType, entityID string) string {
	return userID + "/" + string(entityType) + "/" + entityID
}

func (r *memItemRepo) Get(ctx context.Context, tx Tx, userID string, entityType domain.EntityType, entityID string) (*Item, error) {
	item, ok := r.items[itemKey(userID, entityType, entityID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *item
	return &copied, nil
}

func (r *memItemRepo) Upsert(ctx context.Context, tx Tx, item *Item) error {
	copied := *item
	r.items[itemKey(item.UserID, item.Type, item.ID)] = &copied
	return nil
}

func (r *memItemRepo) ListSince(ctx context.Context, userID string, since time.Time) ([]*Item, error) {
	var out []*Item
	for _, item := range r.items {
		if item.UserID == userID && item.UpdatedAt.After(since) {
			out = append(out, item)
		}
	}
	return out, nil
}

type memDeviceRepo struct {
	devices map[string]*domain.Device
	touched map[string]time.Time
}

func newMemDeviceRepo() *memDeviceRepo {
	return &memDeviceRepo{
		devices: make(map[string]*domain.Device),
		touched: make(map[string]time.Time),
	}
}

func (r *memDeviceRepo) Ensure(ctx context.Context, device *domain.Device) error {
	if _, ok := r.devices[device.ID]; !ok {
		r.devices[device.ID] = device
	}
	return nil
}

func (r *memDeviceRepo) TouchLastSync(ctx context.Context, deviceID string, at time.Time) error {
	r.touched[deviceID] = at
	return nil
}

func (r *memDeviceRepo) Get(ctx context.Context, deviceID string) (*domain.Device, error) {
	device, ok := r.devices[deviceID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return device, nil
}

type noopTx struct{ committed bool }

func (t *noopTx) Commit(ctx context.Context) error   { t.committed = true; return nil }
func (t *noopTx) Rollback(ctx context.Context) error { return nil }

type noopTxManager struct{ last *noopTx }

func (m *noopTxManager) Begin(ctx context.Context) (Tx, error) {
	m.last = &noopTx{}
	return m.last, nil
}

func newTestService() (*Service, *memItemRepo, *memDeviceRepo) {
	items := newMemItemRepo()
	devices := newMemDeviceRepo()
	svc := NewService(items, devices, &noopTxManager{}, zerolog.Nop())
	return svc, items, devices
}

func wireItem(entityType domain.EntityType, id string, clientVersion int64) domain.SyncItem {
	return domain.SyncItem{
		Type:          entityType,
		ID:            id,
		Operation:     domain.OpUpdate,
		Fields:        json.RawMessage(`{"name":"x"}`),
		ClientVersion: clientVersion,
		ModifiedAt:    time.Now().UTC(),
	}
}

func TestUpload_NewItemAccepted(t *testing.T) {
	svc, items, _ := newTestService()

	result, err := svc.Upload(context.Background(), "user-1", "device-1", []domain.SyncItem{
		wireItem(domain.EntityAccount, "acc-1", 0),
	})
	require.NoError(t, err)

	require.Len(t, result.Acks, 1)
	assert.Equal(t, int64(1), result.Acks[0].ServerVersion)
	assert.Empty(t, result.Conflicts)

	stored := items.items[itemKey("user-1", domain.EntityAccount, "acc-1")]
	require.NotNil(t, stored)
	assert.Equal(t, int64(1), stored.Version)
	assert.False(t, stored.Deleted)
}

func TestUpload_MatchingVersionBumps(t *testing.T) {
	svc, items, _ := newTestService()

	ctx := context.Background()
	_, err := svc.Upload(ctx, "user-1", "", []domain.SyncItem{wireItem(domain.EntityGoal, "g-1", 0)})
	require.NoError(t, err)

	result, err := svc.Upload(ctx, "user-1", "", []domain.SyncItem{wireItem(domain.EntityGoal, "g-1", 1)})
	require.NoError(t, err)

	require.Len(t, result.Acks, 1)
	assert.Equal(t, int64(2), result.Acks[0].ServerVersion)
	assert.Equal(t, int64(2), items.items[itemKey("user-1", domain.EntityGoal, "g-1")].Version)
}

func TestUpload_VersionMismatchConflictsWithServerCopy(t *testing.T) {
	svc, items, _ := newTestService()
	ctx := context.Background()

	// Device A writes twice, so the server is at version 2.
	_, err := svc.Upload(ctx, "user-1", "", []domain.SyncItem{wireItem(domain.EntityBudget, "b-1", 0)})
	require.NoError(t, err)
	_, err = svc.Upload(ctx, "user-1", "", []domain.SyncItem{wireItem(domain.EntityBudget, "b-1", 1)})
	require.NoError(t, err)

	// Device B still thinks it is at version 1.
	result, err := svc.Upload(ctx, "user-1", "", []domain.SyncItem{wireItem(domain.EntityBudget, "b-1", 1)})
	require.NoError(t, err)

	assert.Empty(t, result.Acks)
	require.Len(t, result.Conflicts, 1)

	conflict := result.Conflicts[0]
	assert.Equal(t, "b-1", conflict.ItemID)
	assert.Equal(t, int64(1), conflict.LocalVersion)
	assert.Equal(t, int64(2), conflict.ServerVersion)
	require.NotNil(t, conflict.Server)
	assert.Equal(t, int64(2), conflict.Server.ServerVersion)

	// The stale write must not have touched the stored copy.
	assert.Equal(t, int64(2), items.items[itemKey("user-1", domain.EntityBudget, "b-1")].Version)
}

func TestUpload_PartialBatchCommitsAcceptedItems(t *testing.T) {
	svc, items, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Upload(ctx, "user-1", "", []domain.SyncItem{wireItem(domain.EntityCategory, "c-1", 0)})
	require.NoError(t, err)

	result, err := svc.Upload(ctx, "user-1", "", []domain.SyncItem{
		wireItem(domain.EntityCategory, "c-1", 7), // stale
		wireItem(domain.EntityCategory, "c-2", 0), // fresh
	})
	require.NoError(t, err)

	require.Len(t, result.Conflicts, 1)
	require.Len(t, result.Acks, 1)
	assert.Equal(t, "c-2", result.Acks[0].ID)
	assert.NotNil(t, items.items[itemKey("user-1", domain.EntityCategory, "c-2")])
}

func TestUpload_DeleteStoresTombstone(t *testing.T) {
	svc, items, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Upload(ctx, "user-1", "", []domain.SyncItem{wireItem(domain.EntityTransaction, "t-1", 0)})
	require.NoError(t, err)

	tombstone := wireItem(domain.EntityTransaction, "t-1", 1)
	tombstone.Operation = domain.OpDelete
	result, err := svc.Upload(ctx, "user-1", "", []domain.SyncItem{tombstone})
	require.NoError(t, err)

	require.Len(t, result.Acks, 1)
	stored := items.items[itemKey("user-1", domain.EntityTransaction, "t-1")]
	require.NotNil(t, stored)
	assert.True(t, stored.Deleted)
	assert.Equal(t, domain.OpDelete, stored.Wire().Operation)
}

func TestUpload_RejectsInvalidItems(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Upload(ctx, "user-1", "", []domain.SyncItem{wireItem("gadget", "x-1", 0)})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Upload(ctx, "user-1", "", []domain.SyncItem{wireItem(domain.EntityAccount, "", 0)})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestUpload_TouchesDeviceLastSync(t *testing.T) {
	svc, _, devices := newTestService()

	_, err := svc.Upload(context.Background(), "user-1", "device-9", []domain.SyncItem{
		wireItem(domain.EntityAccount, "acc-1", 0),
	})
	require.NoError(t, err)

	_, touched := devices.touched["device-9"]
	assert.True(t, touched)
}

func TestDownload_ReturnsChangesSince(t *testing.T) {
	svc, items, _ := newTestService()
	ctx := context.Background()

	old := &Item{UserID: "user-1", Type: domain.EntityAccount, ID: "acc-old", Version: 3, UpdatedAt: time.Now().Add(-time.Hour)}
	fresh := &Item{UserID: "user-1", Type: domain.EntityAccount, ID: "acc-new", Version: 1, UpdatedAt: time.Now()}
	other := &Item{UserID: "user-2", Type: domain.EntityAccount, ID: "acc-other", Version: 1, UpdatedAt: time.Now()}
	for _, item := range []*Item{old, fresh, other} {
		require.NoError(t, items.Upsert(ctx, nil, item))
	}

	delta, err := svc.Download(ctx, "user-1", time.Now().Add(-time.Minute))
	require.NoError(t, err)

	require.Len(t, delta.Items, 1)
	assert.Equal(t, "acc-new", delta.Items[0].ID)
	assert.False(t, delta.ServerTimestamp.IsZero())
}

func TestRegisterDeviceAndStatus(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	require.NoError(t, svc.RegisterDevice(ctx, "user-1", "device-1", "laptop"))

	device, err := svc.Status(ctx, "device-1")
	require.NoError(t, err)
	assert.Equal(t, "laptop", device.Name)
	assert.Equal(t, "user-1", device.UserID)

	_, err = svc.Status(ctx, "device-missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordResolutions_ValidatesChoices(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	err := svc.RecordResolutions(ctx, "user-1", []Choice{
		{ItemID: "a", Type: domain.EntityAccount, Resolution: "server-wins"},
		{ItemID: "b", Type: domain.EntityGoal, Resolution: "client-wins"},
	})
	assert.NoError(t, err)

	err = svc.RecordResolutions(ctx, "user-1", []Choice{
		{ItemID: "c", Type: domain.EntityGoal, Resolution: "coin-flip"},
	})
	assert.ErrorIs(t, err, domain.ErrUnknownResolution)
}
