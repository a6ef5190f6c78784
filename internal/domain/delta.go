package domain

import (
	"encoding/json"
	"time"
)

// SyncItem is one entity change on the wire, carried by upload payloads and
// download responses alike.
type SyncItem struct {
	Type          EntityType      `json:"type"`
	ID            string          `json:"id"`
	Operation     SyncOperation   `json:"operation"`
	Fields        json.RawMessage `json:"fields,omitempty"`
	ClientVersion int64           `json:"clientVersion"`
	ServerVersion int64           `json:"serverVersion,omitempty"`
	ModifiedAt    time.Time       `json:"modifiedAt"`
}

// SyncConflict reports an item whose local and remote copies both changed
// since the last common synced version. Server carries the remote copy so
// the client can resolve without another round trip.
type SyncConflict struct {
	ItemID        string     `json:"itemId"`
	Type          EntityType `json:"type"`
	LocalVersion  int64      `json:"localVersion"`
	ServerVersion int64      `json:"serverVersion"`
	Server        *SyncItem  `json:"server,omitempty"`
}
