package domain

import "time"

// User is a sync-server account owning a set of synced entities.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Device is one client installation syncing against the server.
type Device struct {
	ID         string
	UserID     string
	Name       string
	LastSyncAt *time.Time
	CreatedAt  time.Time
}
