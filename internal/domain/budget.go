package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BudgetAlertLevel is a read-time classification of budget consumption.
// It is never stored, so it cannot drift from the consumed amount.
type BudgetAlertLevel string

const (
	BudgetAlertNone     BudgetAlertLevel = "none"
	BudgetAlertInfo     BudgetAlertLevel = "info"
	BudgetAlertWarning  BudgetAlertLevel = "warning"
	BudgetAlertCritical BudgetAlertLevel = "critical"
)

// Alert thresholds as consumed/planned ratios.
var (
	budgetInfoRatio     = decimal.NewFromFloat(0.5)
	budgetWarningRatio  = decimal.NewFromFloat(0.8)
	budgetCriticalRatio = decimal.NewFromInt(1)
)

// Budget is a monthly spending plan for one category. Consumed is derived
// from the effectuated expense transactions of the period by the budget
// aggregator and is never edited independently.
type Budget struct {
	ID         string
	CategoryID string
	Month      int
	Year       int
	Planned    decimal.Decimal
	Consumed   decimal.Decimal
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Validate checks budget invariants.
func (b *Budget) Validate() error {
	if b.CategoryID == "" {
		return ErrCategoryRequired
	}
	if err := ValidatePeriod(b.Month, b.Year); err != nil {
		return err
	}
	if b.Planned.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	return nil
}

// ConsumedRatio returns consumed/planned, zero when planned is zero.
func (b *Budget) ConsumedRatio() decimal.Decimal {
	if b.Planned.IsZero() {
		return decimal.Zero
	}
	return b.Consumed.Div(b.Planned)
}

// AlertLevel classifies the current consumption against the plan.
func (b *Budget) AlertLevel() BudgetAlertLevel {
	ratio := b.ConsumedRatio()
	switch {
	case ratio.GreaterThanOrEqual(budgetCriticalRatio):
		return BudgetAlertCritical
	case ratio.GreaterThanOrEqual(budgetWarningRatio):
		return BudgetAlertWarning
	case ratio.GreaterThanOrEqual(budgetInfoRatio):
		return BudgetAlertInfo
	}
	return BudgetAlertNone
}
