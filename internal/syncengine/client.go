package syncengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/bolsoapp/bolso/internal/domain"
)

// UploadRequest is the delta payload sent to the remote store.
type UploadRequest struct {
	DeviceID   string            `json:"deviceId"`
	LastSyncAt time.Time         `json:"lastSyncAt"`
	Items      []domain.SyncItem `json:"items"`
}

// ItemAck carries the server-assigned version for one accepted item.
type ItemAck struct {
	Type          domain.EntityType `json:"type"`
	ID            string            `json:"id"`
	ServerVersion int64             `json:"serverVersion"`
}

// UploadResponse reports accepted items and detected conflicts.
type UploadResponse struct {
	Success     bool                  `json:"success"`
	ItemsSynced int                   `json:"itemsSynced"`
	Acks        []ItemAck             `json:"acks"`
	Conflicts   []domain.SyncConflict `json:"conflicts,omitempty"`
	SyncedAt    time.Time             `json:"syncedAt"`
}

// DownloadResponse carries remote changes since a timestamp.
type DownloadResponse struct {
	Items           []domain.SyncItem `json:"items"`
	ServerTimestamp time.Time         `json:"serverTimestamp"`
}

// StatusResponse is the remote store's view of this device.
type StatusResponse struct {
	LastSync     *time.Time `json:"lastSync"`
	IsSyncing    bool       `json:"isSyncing"`
	PendingItems int        `json:"pendingItems"`
}

// ConflictChoice tells the server which side won a conflicted item.
type ConflictChoice struct {
	ItemID     string            `json:"itemId"`
	Type       domain.EntityType `json:"type"`
	Resolution string            `json:"resolution"`
}

// TokenPair holds the credentials used against the sync endpoints.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Client talks to the remote sync server. On a 401 it refreshes the access
// token once and replays the request; a second 401 surfaces as an auth
// error so the engine can suspend.
type Client struct {
	baseURL  string
	deviceID string
	http     *http.Client

	mu     sync.Mutex
	tokens TokenPair
}

// ClientConfig configures a sync client.
type ClientConfig struct {
	BaseURL  string
	DeviceID string
	Tokens   TokenPair
	Timeout  time.Duration
}

// NewClient creates a sync client with a bounded request timeout.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  cfg.BaseURL,
		deviceID: cfg.DeviceID,
		tokens:   cfg.Tokens,
		http:     &http.Client{Timeout: cfg.Timeout},
	}
}

// SetTokens replaces the credentials, e.g. after an interactive login.
func (c *Client) SetTokens(tokens TokenPair) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = tokens
}

// Tokens returns the current credentials.
func (c *Client) Tokens() TokenPair {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokens
}

// Upload pushes the dirty delta to the remote store.
func (c *Client) Upload(ctx context.Context, req UploadRequest) (*UploadResponse, error) {
	req.DeviceID = c.deviceID
	var resp UploadResponse
	if err := c.do(ctx, http.MethodPost, "/sync/upload", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Download fetches remote changes since the given timestamp.
func (c *Client) Download(ctx context.Context, since time.Time) (*DownloadResponse, error) {
	path := "/sync/download?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339Nano))
	var resp DownloadResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status fetches the remote store's sync status for this device.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.do(ctx, http.MethodGet, "/sync/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ResolveConflicts reports conflict outcomes back to the server.
func (c *Client) ResolveConflicts(ctx context.Context, choices []ConflictChoice) error {
	return c.do(ctx, http.MethodPost, "/sync/resolve-conflicts", choices, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	status, err := c.once(ctx, method, path, body, out)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		if err := c.refresh(ctx); err != nil {
			return err
		}
		status, err = c.once(ctx, method, path, body, out)
		if err != nil {
			return err
		}
		if status == http.StatusUnauthorized {
			return domain.ErrExpiredToken
		}
	}
	return statusError(status)
}

// once performs a single request. Transport failures (including timeouts)
// map to the network error class so the engine retries with backoff.
func (c *Client) once(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("%w: encode request: %v", domain.ErrValidation, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.deviceID != "" {
		req.Header.Set("X-Device-Id", c.deviceID)
	}
	if token := c.Tokens().AccessToken; token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 && out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return 0, fmt.Errorf("%w: decode response: %v", domain.ErrNetwork, err)
		}
	}

	return resp.StatusCode, nil
}

// refresh exchanges the refresh token for a new token pair.
func (c *Client) refresh(ctx context.Context) error {
	current := c.Tokens()
	if current.RefreshToken == "" {
		return domain.ErrInvalidToken
	}

	payload, err := json.Marshal(map[string]string{"refreshToken": current.RefreshToken})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/refresh", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return domain.ErrInvalidToken
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: refresh returned %d", domain.ErrNetwork, resp.StatusCode)
	}

	var tokens TokenPair
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return fmt.Errorf("%w: decode tokens: %v", domain.ErrNetwork, err)
	}

	c.SetTokens(tokens)
	return nil
}

func statusError(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.ErrInvalidToken
	case status == http.StatusConflict:
		return domain.ErrConflictPending
	case status >= 400 && status < 500:
		return fmt.Errorf("%w: server rejected request with %d", domain.ErrValidation, status)
	default:
		return fmt.Errorf("%w: server returned %d", domain.ErrNetwork, status)
	}
}
