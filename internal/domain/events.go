package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event is implemented by everything published on the event bus.
type Event interface {
	EventName() string
}

// BudgetThresholdEvent is published when a write moves a budget across an
// alert threshold.
type BudgetThresholdEvent struct {
	BudgetID   string
	CategoryID string
	Level      BudgetAlertLevel
	Consumed   decimal.Decimal
	Planned    decimal.Decimal
	OccurredAt time.Time
}

func (BudgetThresholdEvent) EventName() string { return "budget.threshold" }

// GoalCompletedEvent is published when a contribution crosses the target.
type GoalCompletedEvent struct {
	GoalID      string
	Name        string
	Target      decimal.Decimal
	CompletedAt time.Time
}

func (GoalCompletedEvent) EventName() string { return "goal.completed" }

// SyncStatusEvent reports sync cycle transitions to subscribers.
type SyncStatusEvent struct {
	Status       SyncStatus
	PendingItems int
	Conflicts    int
	Err          string
	OccurredAt   time.Time
}

func (SyncStatusEvent) EventName() string { return "sync.status" }
