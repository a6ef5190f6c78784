// Package dto defines the request and response bodies of the sync API.
package dto

import (
	"time"

	"github.com/bolsoapp/bolso/internal/domain"
)

// UploadRequest is the delta payload a device pushes.
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

// StatusResponse is the server's view of one device.
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

// LoginRequest authenticates a user and optionally registers the device.
type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	DeviceID   string `json:"deviceId,omitempty"`
	DeviceName string `json:"deviceName,omitempty"`
}

// RefreshRequest exchanges a refresh token for a fresh pair.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// TokenResponse carries an issued token pair.
type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
