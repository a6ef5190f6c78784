package domain

import "time"

// EntityType names a syncable entity kind on the wire.
type EntityType string

const (
	EntityAccount     EntityType = "account"
	EntityCategory    EntityType = "category"
	EntityTransaction EntityType = "transaction"
	EntityBudget      EntityType = "budget"
	EntityGoal        EntityType = "goal"
)

// Valid reports whether the entity type is known.
func (t EntityType) Valid() bool {
	switch t {
	case EntityAccount, EntityCategory, EntityTransaction, EntityBudget, EntityGoal:
		return true
	}
	return false
}

// SyncOperation is the change kind carried by a sync delta item.
type SyncOperation string

const (
	OpCreate SyncOperation = "create"
	OpUpdate SyncOperation = "update"
	OpDelete SyncOperation = "delete"
)

// SyncState tracks per-entity synchronization bookkeeping. An entity is
// eligible for upload only while Dirty; a successful upload clears the flag
// and records the server-assigned version.
type SyncState struct {
	EntityType    EntityType
	EntityID      string
	ServerVersion int64
	Dirty         bool
	Deleted       bool
	ModifiedAt    time.Time
	LastSyncedAt  *time.Time
}

// Operation derives the wire operation for a dirty entity.
func (s *SyncState) Operation() SyncOperation {
	switch {
	case s.Deleted:
		return OpDelete
	case s.ServerVersion == 0:
		return OpCreate
	default:
		return OpUpdate
	}
}

// ConflictResolution is the tagged policy variant used by the sync engine.
type ConflictResolution int

const (
	ServerWins ConflictResolution = iota
	ClientWins
	LastWriteWins
	Manual
)

// String returns the wire name of the policy.
func (r ConflictResolution) String() string {
	switch r {
	case ServerWins:
		return "server-wins"
	case ClientWins:
		return "client-wins"
	case LastWriteWins:
		return "last-write-wins"
	case Manual:
		return "manual"
	}
	return "unknown"
}

// ParseConflictResolution maps a wire name back to the policy variant.
func ParseConflictResolution(s string) (ConflictResolution, error) {
	switch s {
	case "server-wins":
		return ServerWins, nil
	case "client-wins":
		return ClientWins, nil
	case "last-write-wins":
		return LastWriteWins, nil
	case "manual":
		return Manual, nil
	}
	return ServerWins, ErrUnknownResolution
}

// SyncStatus is the engine's cycle state.
type SyncStatus string

const (
	SyncStatusIdle     SyncStatus = "idle"
	SyncStatusSyncing  SyncStatus = "syncing"
	SyncStatusSuccess  SyncStatus = "success"
	SyncStatusConflict SyncStatus = "conflict"
	SyncStatusFailed   SyncStatus = "failed"
)
