package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/bolsoapp/bolso/internal/adapter/http/dto"
	"github.com/bolsoapp/bolso/internal/adapter/http/handler"
	"github.com/bolsoapp/bolso/internal/adapter/http/middleware"
	"github.com/bolsoapp/bolso/internal/domain"
	"github.com/bolsoapp/bolso/internal/infrastructure/auth"
	"github.com/bolsoapp/bolso/internal/infrastructure/metrics"
	"github.com/bolsoapp/bolso/internal/syncserver"
)

// Prometheus collectors register globally, so the whole test binary shares
// one metrics instance.
var testMetrics = metrics.New()

type memItemRepo struct {
	items map[string]*syncserver.Item
}

func newMemItemRepo() *memItemRepo {
	return &memItemRepo{items: make(map[string]*syncserver.Item)}
}

func (r *memItemRepo) key(userID string, entityType domain.EntityType, entityID string) string {
	return userID + "/" + string(entityType) + "/" + entityID
}

func (r *memItemRepo) Get(ctx context.Context, tx syncserver.Tx, userID string, entityType domain.EntityType, entityID string) (*syncserver.Item, error) {
	item, ok := r.items[r.key(userID, entityType, entityID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return item, nil
}

func (r *memItemRepo) Upsert(ctx context.Context, tx syncserver.Tx, item *syncserver.Item) error {
	r.items[r.key(item.UserID, item.Type, item.ID)] = item
	return nil
}

func (r *memItemRepo) ListSince(ctx context.Context, userID string, since time.Time) ([]*syncserver.Item, error) {
	var out []*syncserver.Item
	for _, item := range r.items {
		if item.UserID == userID && item.UpdatedAt.After(since) {
			out = append(out, item)
		}
	}
	return out, nil
}

type memDeviceRepo struct {
	devices map[string]*domain.Device
}

func newMemDeviceRepo() *memDeviceRepo {
	return &memDeviceRepo{devices: make(map[string]*domain.Device)}
}

func (r *memDeviceRepo) Ensure(ctx context.Context, device *domain.Device) error {
	if _, ok := r.devices[device.ID]; !ok {
		r.devices[device.ID] = device
	}
	return nil
}

func (r *memDeviceRepo) TouchLastSync(ctx context.Context, deviceID string, at time.Time) error {
	if device, ok := r.devices[deviceID]; ok {
		device.LastSyncAt = &at
	}
	return nil
}

func (r *memDeviceRepo) Get(ctx context.Context, deviceID string) (*domain.Device, error) {
	device, ok := r.devices[deviceID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return device, nil
}

type memUserRepo struct {
	users map[string]*domain.User
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

func (r *memUserRepo) Create(ctx context.Context, user *domain.User) error {
	r.users[user.ID] = user
	return nil
}

type noopTx struct{}

func (noopTx) Commit(ctx context.Context) error   { return nil }
func (noopTx) Rollback(ctx context.Context) error { return nil }

type noopTxManager struct{}

func (noopTxManager) Begin(ctx context.Context) (syncserver.Tx, error) { return noopTx{}, nil }

type memCache struct {
	entries map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string][]byte)}
}

func (c *memCache) Get(ctx context.Context, key string) ([]byte, bool) {
	v, ok := c.entries[key]
	return v, ok
}

func (c *memCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.entries[key] = value
	return nil
}

func (c *memCache) DeletePattern(ctx context.Context, pattern string) (int, error) {
	n := len(c.entries)
	c.entries = make(map[string][]byte)
	return n, nil
}

func newTestSyncHandler() (*handler.SyncHandler, *memDeviceRepo, *memCache) {
	devices := newMemDeviceRepo()
	cache := newMemCache()
	service := syncserver.NewService(newMemItemRepo(), devices, noopTxManager{}, zerolog.Nop())
	return handler.NewSyncHandler(service, cache, testMetrics), devices, cache
}

// authed stamps the request context the way the auth middleware would.
func authed(r *http.Request, userID string) *http.Request {
	ctx := context.WithValue(r.Context(), middleware.UserIDContextKey, userID)
	return r.WithContext(ctx)
}

func TestUploadHandler_AcceptsBatch(t *testing.T) {
	h, _, _ := newTestSyncHandler()

	body, err := json.Marshal(dto.UploadRequest{
		DeviceID: "device-1",
		Items: []domain.SyncItem{{
			Type:       domain.EntityAccount,
			ID:         "acc-1",
			Operation:  domain.OpCreate,
			Fields:     json.RawMessage(`{"name":"Checking"}`),
			ModifiedAt: time.Now().UTC(),
		}},
	})
	require.NoError(t, err)

	req := authed(httptest.NewRequest(http.MethodPost, "/sync/upload", bytes.NewReader(body)), "user-1")
	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.ItemsSynced)
	require.Len(t, resp.Acks, 1)
	assert.Equal(t, int64(1), resp.Acks[0].ServerVersion)
}

func TestUploadHandler_ReportsConflicts(t *testing.T) {
	h, _, _ := newTestSyncHandler()

	upload := func(clientVersion int64) *httptest.ResponseRecorder {
		body, err := json.Marshal(dto.UploadRequest{
			Items: []domain.SyncItem{{
				Type:          domain.EntityGoal,
				ID:            "g-1",
				Operation:     domain.OpUpdate,
				ClientVersion: clientVersion,
				ModifiedAt:    time.Now().UTC(),
			}},
		})
		require.NoError(t, err)
		req := authed(httptest.NewRequest(http.MethodPost, "/sync/upload", bytes.NewReader(body)), "user-1")
		rec := httptest.NewRecorder()
		h.Upload(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, upload(0).Code)

	rec := upload(0) // stale: server is at version 1 now
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.Len(t, resp.Conflicts, 1)
	assert.Equal(t, int64(1), resp.Conflicts[0].ServerVersion)
}

func TestUploadHandler_InvalidBodyRejected(t *testing.T) {
	h, _, _ := newTestSyncHandler()

	req := authed(httptest.NewRequest(http.MethodPost, "/sync/upload", bytes.NewReader([]byte("{"))), "user-1")
	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadHandler_UnauthenticatedRejected(t *testing.T) {
	h, _, _ := newTestSyncHandler()

	req := httptest.NewRequest(http.MethodPost, "/sync/upload", bytes.NewReader([]byte("{}")))
	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDownloadHandler_BadSinceRejected(t *testing.T) {
	h, _, _ := newTestSyncHandler()

	req := authed(httptest.NewRequest(http.MethodGet, "/sync/download?since=yesterday", nil), "user-1")
	rec := httptest.NewRecorder()
	h.Download(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDownloadHandler_ReturnsDelta(t *testing.T) {
	h, _, _ := newTestSyncHandler()

	body, err := json.Marshal(dto.UploadRequest{
		Items: []domain.SyncItem{{
			Type:       domain.EntityCategory,
			ID:         "c-1",
			Operation:  domain.OpCreate,
			ModifiedAt: time.Now().UTC(),
		}},
	})
	require.NoError(t, err)
	uploadReq := authed(httptest.NewRequest(http.MethodPost, "/sync/upload", bytes.NewReader(body)), "user-1")
	h.Upload(httptest.NewRecorder(), uploadReq)

	req := authed(httptest.NewRequest(http.MethodGet, "/sync/download", nil), "user-1")
	rec := httptest.NewRecorder()
	h.Download(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.DownloadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "c-1", resp.Items[0].ID)
	assert.False(t, resp.ServerTimestamp.IsZero())
}

func TestStatusHandler_RequiresDeviceHeader(t *testing.T) {
	h, _, _ := newTestSyncHandler()

	req := authed(httptest.NewRequest(http.MethodGet, "/sync/status", nil), "user-1")
	rec := httptest.NewRecorder()
	h.Status(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusHandler_ServesAndCaches(t *testing.T) {
	h, devices, cache := newTestSyncHandler()

	last := time.Now().UTC().Truncate(time.Second)
	devices.devices["device-1"] = &domain.Device{ID: "device-1", UserID: "user-1", LastSyncAt: &last}

	req := authed(httptest.NewRequest(http.MethodGet, "/sync/status", nil), "user-1")
	req.Header.Set("X-Device-Id", "device-1")
	rec := httptest.NewRecorder()
	h.Status(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.LastSync)
	assert.True(t, resp.LastSync.Equal(last))

	_, cached := cache.entries["status:user-1:device-1"]
	assert.True(t, cached)
}

func TestResolveConflictsHandler(t *testing.T) {
	h, _, _ := newTestSyncHandler()

	body, err := json.Marshal([]dto.ConflictChoice{
		{ItemID: "g-1", Type: domain.EntityGoal, Resolution: "server-wins"},
	})
	require.NoError(t, err)

	req := authed(httptest.NewRequest(http.MethodPost, "/sync/resolve-conflicts", bytes.NewReader(body)), "user-1")
	rec := httptest.NewRecorder()
	h.ResolveConflicts(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	body, err = json.Marshal([]dto.ConflictChoice{
		{ItemID: "g-1", Type: domain.EntityGoal, Resolution: "coin-flip"},
	})
	require.NoError(t, err)

	req = authed(httptest.NewRequest(http.MethodPost, "/sync/resolve-conflicts", bytes.NewReader(body)), "user-1")
	rec = httptest.NewRecorder()
	h.ResolveConflicts(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func newTestAuthHandler(t *testing.T) (*handler.AuthHandler, *auth.JWTManager) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	users := &memUserRepo{users: map[string]*domain.User{
		"user-1": {ID: "user-1", Email: "ana@example.com", PasswordHash: string(hash)},
	}}
	service := syncserver.NewService(newMemItemRepo(), newMemDeviceRepo(), noopTxManager{}, zerolog.Nop())
	jwtManager := auth.NewJWTManager("test-secret", time.Minute, time.Hour)
	return handler.NewAuthHandler(users, service, jwtManager, testMetrics), jwtManager
}

func TestLogin_IssuesTokenPair(t *testing.T) {
	h, jwtManager := newTestAuthHandler(t)

	body, err := json.Marshal(dto.LoginRequest{Email: "ana@example.com", Password: "hunter2", DeviceID: "device-1"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	claims, err := jwtManager.Verify(resp.AccessToken, auth.KindAccess)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)

	_, err = jwtManager.Verify(resp.RefreshToken, auth.KindRefresh)
	assert.NoError(t, err)
}

func TestLogin_WrongPasswordAndUnknownUserLookTheSame(t *testing.T) {
	h, _ := newTestAuthHandler(t)

	attempt := func(email, password string) *httptest.ResponseRecorder {
		body, err := json.Marshal(dto.LoginRequest{Email: email, Password: password})
		require.NoError(t, err)
		rec := httptest.NewRecorder()
		h.Login(rec, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body)))
		return rec
	}

	wrongPassword := attempt("ana@example.com", "nope")
	unknownUser := attempt("ghost@example.com", "hunter2")

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownUser.Code)
	assert.Equal(t, wrongPassword.Body.String(), unknownUser.Body.String())
}

func TestRefresh_ExchangesRefreshToken(t *testing.T) {
	h, jwtManager := newTestAuthHandler(t)

	pair, err := jwtManager.Issue(&domain.User{ID: "user-1", Email: "ana@example.com"})
	require.NoError(t, err)

	body, err := json.Marshal(dto.RefreshRequest{RefreshToken: pair.RefreshToken})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.Refresh(rec, httptest.NewRequest(http.MethodPost, "/auth/refresh", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AccessToken)
}

func TestRefresh_AccessTokenRejected(t *testing.T) {
	h, jwtManager := newTestAuthHandler(t)

	pair, err := jwtManager.Issue(&domain.User{ID: "user-1", Email: "ana@example.com"})
	require.NoError(t, err)

	// An access token must not work where a refresh token is expected.
	body, err := json.Marshal(dto.RefreshRequest{RefreshToken: pair.AccessToken})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.Refresh(rec, httptest.NewRequest(http.MethodPost, "/auth/refresh", bytes.NewReader(body)))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
