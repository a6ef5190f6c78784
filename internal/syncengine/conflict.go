package syncengine

import "github.com/bolsoapp/bolso/internal/domain"

// Outcome is a resolver's verdict for one conflicted item.
type Outcome int

const (
	// TakeRemote replaces the local copy with the server's.
	TakeRemote Outcome = iota
	// KeepLocal re-uploads the local copy over the server's.
	KeepLocal
	// AwaitManual parks the item on the pending-conflict list.
	AwaitManual
)

// Resolver decides conflicts under one policy. Resolution is deterministic:
// the same local/remote pair under the same policy always yields the same
// outcome.
type Resolver struct {
	policy domain.ConflictResolution
}

// NewResolver creates a resolver for the given policy.
func NewResolver(policy domain.ConflictResolution) *Resolver {
	return &Resolver{policy: policy}
}

// Policy returns the configured policy.
func (r *Resolver) Policy() domain.ConflictResolution { return r.policy }

// Resolve decides one conflict. local is the dirty local item; remote is the
// server's copy (may be nil when the server only reported versions, in which
// case LastWriteWins degrades to ServerWins).
func (r *Resolver) Resolve(local domain.SyncItem, remote *domain.SyncItem) Outcome {
	switch r.policy {
	case domain.ClientWins:
		return KeepLocal
	case domain.LastWriteWins:
		if remote == nil {
			return TakeRemote
		}
		if local.ModifiedAt.After(remote.ModifiedAt) {
			return KeepLocal
		}
		// Ties go to the server so both sides converge on the same copy.
		return TakeRemote
	case domain.Manual:
		return AwaitManual
	default: // ServerWins
		return TakeRemote
	}
}

// choiceName maps an outcome to the wire resolution name.
func choiceName(o Outcome) string {
	if o == KeepLocal {
		return "client-wins"
	}
	return "server-wins"
}
