package syncengine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bolsoapp/bolso/internal/domain"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{
		BaseURL:  srv.URL,
		DeviceID: "device-1",
		Tokens:   TokenPair{AccessToken: "access-ok", RefreshToken: "refresh-ok"},
	})
}

func TestClient_UploadCarriesDeviceAndToken(t *testing.T) {
	var got UploadRequest
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sync/upload", r.URL.Path)
		require.Equal(t, "Bearer access-ok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(UploadResponse{
			Success:     true,
			ItemsSynced: len(got.Items),
			SyncedAt:    time.Now().UTC(),
		})
	}))

	resp, err := client.Upload(context.Background(), UploadRequest{
		Items: []domain.SyncItem{{Type: domain.EntityAccount, ID: "acc-1", Operation: domain.OpCreate}},
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.ItemsSynced)
	assert.Equal(t, "device-1", got.DeviceID)
}

func TestClient_RefreshesOnceOn401(t *testing.T) {
	var uploads, refreshes int
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sync/upload":
			uploads++
			if r.Header.Get("Authorization") != "Bearer access-new" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(UploadResponse{Success: true})
		case "/auth/refresh":
			refreshes++
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "refresh-ok", body["refreshToken"])
			_ = json.NewEncoder(w).Encode(TokenPair{AccessToken: "access-new", RefreshToken: "refresh-new"})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))

	resp, err := client.Upload(context.Background(), UploadRequest{})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, 2, uploads)
	assert.Equal(t, 1, refreshes)
	assert.Equal(t, "access-new", client.Tokens().AccessToken)
}

func TestClient_RepeatedAuthFailureSurfacesAuthError(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/refresh":
			_ = json.NewEncoder(w).Encode(TokenPair{AccessToken: "still-bad", RefreshToken: "refresh-ok"})
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))

	_, err := client.Upload(context.Background(), UploadRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAuth)
}

func TestClient_FailedRefreshSurfacesAuthError(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.Upload(context.Background(), UploadRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAuth)
}

func TestClient_TransportFailureIsNetworkError(t *testing.T) {
	client := NewClient(ClientConfig{
		BaseURL: "http://127.0.0.1:1", // nothing listens here
		Timeout: 200 * time.Millisecond,
	})

	_, err := client.Download(context.Background(), time.Time{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNetwork)
}

func TestClient_ServerErrorIsNetworkError(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := client.Status(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNetwork)
}

func TestClient_DownloadSinceParameter(t *testing.T) {
	since := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sync/download", r.URL.Path)
		parsed, err := time.Parse(time.RFC3339Nano, r.URL.Query().Get("since"))
		require.NoError(t, err)
		require.True(t, parsed.Equal(since))
		_ = json.NewEncoder(w).Encode(DownloadResponse{ServerTimestamp: time.Now().UTC()})
	}))

	resp, err := client.Download(context.Background(), since)
	require.NoError(t, err)
	assert.False(t, resp.ServerTimestamp.IsZero())
}
