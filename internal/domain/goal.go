package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Goal is a savings goal. Completed flips to true exactly when a
// contribution pushes CurrentAmount over TargetAmount.
type Goal struct {
	ID            string
	Name          string
	TargetAmount  decimal.Decimal
	CurrentAmount decimal.Decimal
	StartDate     time.Time
	TargetDate    time.Time
	Completed     bool
	CompletedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Validate checks goal invariants.
func (g *Goal) Validate() error {
	if err := ValidateName(g.Name); err != nil {
		return err
	}
	if g.TargetAmount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	if g.CurrentAmount.IsNegative() {
		return ErrInvalidAmount
	}
	if !g.TargetDate.IsZero() && !g.StartDate.IsZero() && g.TargetDate.Before(g.StartDate) {
		return ErrGoalDatesInverted
	}
	return nil
}

// ApplyContribution adds amount to the current total and evaluates the
// completion invariant in the same step. It returns true when this
// contribution crossed the target.
func (g *Goal) ApplyContribution(amount decimal.Decimal, now time.Time) (crossed bool) {
	g.CurrentAmount = g.CurrentAmount.Add(amount)
	g.UpdatedAt = now
	if !g.Completed && g.CurrentAmount.GreaterThanOrEqual(g.TargetAmount) {
		g.Completed = true
		at := now
		g.CompletedAt = &at
		return true
	}
	return false
}

// Progress returns current/target as a ratio, capped at 1.
func (g *Goal) Progress() decimal.Decimal {
	if g.TargetAmount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	ratio := g.CurrentAmount.Div(g.TargetAmount)
	one := decimal.NewFromInt(1)
	if ratio.GreaterThan(one) {
		return one
	}
	return ratio
}
