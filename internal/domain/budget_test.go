package domain_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/bolsoapp/bolso/internal/domain"
)

func TestBudgetAlertLevel(t *testing.T) {
	tests := []struct {
		name     string
		planned  float64
		consumed float64
		want     domain.BudgetAlertLevel
	}{
		{"empty", 500, 0, domain.BudgetAlertNone},
		{"below info", 500, 150, domain.BudgetAlertNone},
		{"at info", 500, 250, domain.BudgetAlertInfo},
		{"at warning", 500, 400, domain.BudgetAlertWarning},
		{"just under critical", 500, 499.99, domain.BudgetAlertWarning},
		{"at critical", 500, 500, domain.BudgetAlertCritical},
		{"over", 500, 620, domain.BudgetAlertCritical},
		{"zero planned", 0, 100, domain.BudgetAlertNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := domain.Budget{
				Planned:  decimal.NewFromFloat(tt.planned),
				Consumed: decimal.NewFromFloat(tt.consumed),
			}
			assert.Equal(t, tt.want, b.AlertLevel())
		})
	}
}

func TestGoalApplyContribution(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	g := domain.Goal{
		Name:          "Emergency Fund",
		TargetAmount:  decimal.NewFromInt(5000),
		CurrentAmount: decimal.NewFromInt(4800),
	}

	crossed := g.ApplyContribution(decimal.NewFromInt(300), now)

	assert.True(t, crossed)
	assert.True(t, g.Completed)
	assert.True(t, g.CurrentAmount.Equal(decimal.NewFromInt(5100)))
	if assert.NotNil(t, g.CompletedAt) {
		assert.Equal(t, now, *g.CompletedAt)
	}

	// A later contribution must not re-trigger completion.
	crossed = g.ApplyContribution(decimal.NewFromInt(100), now.Add(time.Hour))
	assert.False(t, crossed)
	assert.Equal(t, now, *g.CompletedAt)
}

func TestGoalCompletionIffThreshold(t *testing.T) {
	g := domain.Goal{
		TargetAmount:  decimal.NewFromInt(1000),
		CurrentAmount: decimal.NewFromInt(400),
	}
	now := time.Now()

	assert.False(t, g.ApplyContribution(decimal.NewFromInt(599), now))
	assert.False(t, g.Completed)

	assert.True(t, g.ApplyContribution(decimal.NewFromInt(1), now))
	assert.True(t, g.Completed)
	assert.True(t, g.CurrentAmount.GreaterThanOrEqual(g.TargetAmount))
}

func TestSyncStateOperation(t *testing.T) {
	s := domain.SyncState{Dirty: true}
	assert.Equal(t, domain.OpCreate, s.Operation())

	s.ServerVersion = 3
	assert.Equal(t, domain.OpUpdate, s.Operation())

	s.Deleted = true
	assert.Equal(t, domain.OpDelete, s.Operation())
}

func TestParseConflictResolution(t *testing.T) {
	for _, r := range []domain.ConflictResolution{
		domain.ServerWins, domain.ClientWins, domain.LastWriteWins, domain.Manual,
	} {
		got, err := domain.ParseConflictResolution(r.String())
		assert.NoError(t, err)
		assert.Equal(t, r, got)
	}

	_, err := domain.ParseConflictResolution("coin-flip")
	assert.ErrorIs(t, err, domain.ErrUnknownResolution)
}
