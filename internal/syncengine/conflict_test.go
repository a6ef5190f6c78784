package syncengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bolsoapp/bolso/internal/domain"
)

func TestResolver_Deterministic(t *testing.T) {
	earlier := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	later := earlier.Add(time.Hour)

	local := domain.SyncItem{ID: "tx-1", Type: domain.EntityTransaction, ModifiedAt: later}
	remote := &domain.SyncItem{ID: "tx-1", Type: domain.EntityTransaction, ModifiedAt: earlier}

	tests := []struct {
		name   string
		policy domain.ConflictResolution
		local  domain.SyncItem
		remote *domain.SyncItem
		want   Outcome
	}{
		{"server wins", domain.ServerWins, local, remote, TakeRemote},
		{"client wins", domain.ClientWins, local, remote, KeepLocal},
		{"last write wins, local newer", domain.LastWriteWins, local, remote, KeepLocal},
		{"last write wins, remote newer", domain.LastWriteWins,
			domain.SyncItem{ID: "tx-1", ModifiedAt: earlier},
			&domain.SyncItem{ID: "tx-1", ModifiedAt: later},
			TakeRemote},
		{"last write wins, tie goes to server", domain.LastWriteWins,
			domain.SyncItem{ID: "tx-1", ModifiedAt: earlier},
			&domain.SyncItem{ID: "tx-1", ModifiedAt: earlier},
			TakeRemote},
		{"last write wins, no server copy", domain.LastWriteWins, local, nil, TakeRemote},
		{"manual", domain.Manual, local, remote, AwaitManual},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(tt.policy)
			// Same inputs, same verdict, every time.
			for i := 0; i < 3; i++ {
				assert.Equal(t, tt.want, r.Resolve(tt.local, tt.remote))
			}
		})
	}
}

func TestParseConflictResolution_WireNames(t *testing.T) {
	for _, policy := range []domain.ConflictResolution{
		domain.ServerWins, domain.ClientWins, domain.LastWriteWins, domain.Manual,
	} {
		parsed, err := domain.ParseConflictResolution(policy.String())
		assert.NoError(t, err)
		assert.Equal(t, policy, parsed)
	}

	_, err := domain.ParseConflictResolution("coin-flip")
	assert.ErrorIs(t, err, domain.ErrValidation)
}
