package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bolsoapp/bolso/internal/domain"
)

// DashboardSummary is the read-heavy aggregate behind the home screen.
type DashboardSummary struct {
	Month        int              `json:"month"`
	Year         int              `json:"year"`
	TotalBalance decimal.Decimal  `json:"totalBalance"`
	MonthIncome  decimal.Decimal  `json:"monthIncome"`
	MonthExpense decimal.Decimal  `json:"monthExpense"`
	MonthNet     decimal.Decimal  `json:"monthNet"`
	Accounts     []AccountBalance `json:"accounts"`
	Budgets      []BudgetStatus   `json:"budgets"`
	OpenGoals    []GoalProgress   `json:"openGoals"`
}

// AccountBalance is one account line on the dashboard.
type AccountBalance struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Kind    string          `json:"kind"`
	Balance decimal.Decimal `json:"balance"`
}

// BudgetStatus pairs a budget with its read-time alert classification.
type BudgetStatus struct {
	ID         string                  `json:"id"`
	CategoryID string                  `json:"categoryId"`
	Planned    decimal.Decimal         `json:"planned"`
	Consumed   decimal.Decimal         `json:"consumed"`
	Level      domain.BudgetAlertLevel `json:"level"`
}

// GoalProgress is one open goal line on the dashboard.
type GoalProgress struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Target   decimal.Decimal `json:"target"`
	Current  decimal.Decimal `json:"current"`
	Progress decimal.Decimal `json:"progress"`
}

// CategoryTotal is one row of the monthly report.
type CategoryTotal struct {
	CategoryID string          `json:"categoryId"`
	Kind       string          `json:"kind"`
	Total      decimal.Decimal `json:"total"`
	Count      int             `json:"count"`
}

// SummaryUseCase serves cached aggregates. The cache is best effort: every
// miss recomputes from the ledger store.
type SummaryUseCase struct {
	accountRepo     AccountRepository
	transactionRepo TransactionRepository
	budgetRepo      BudgetRepository
	goalRepo        GoalRepository
	cache           Cache
	ttl             time.Duration
}

// NewSummaryUseCase creates a new SummaryUseCase.
func NewSummaryUseCase(
	accountRepo AccountRepository,
	transactionRepo TransactionRepository,
	budgetRepo BudgetRepository,
	goalRepo GoalRepository,
	cache Cache,
) *SummaryUseCase {
	return &SummaryUseCase{
		accountRepo:     accountRepo,
		transactionRepo: transactionRepo,
		budgetRepo:      budgetRepo,
		goalRepo:        goalRepo,
		cache:           cache,
		ttl:             DefaultCacheTTL,
	}
}

// Dashboard builds the dashboard summary for the given month.
func (uc *SummaryUseCase) Dashboard(ctx context.Context, month, year int) (*DashboardSummary, error) {
	if err := domain.ValidatePeriod(month, year); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s%04d-%02d", CacheNamespaceDashboard, year, month)
	if uc.cache != nil {
		if data, ok := uc.cache.Get(key); ok {
			var cached DashboardSummary
			if err := json.Unmarshal(data, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	summary, err := uc.buildDashboard(ctx, month, year)
	if err != nil {
		return nil, err
	}

	if uc.cache != nil {
		if data, err := json.Marshal(summary); err == nil {
			uc.cache.Set(key, data, uc.ttl)
		}
	}

	return summary, nil
}

func (uc *SummaryUseCase) buildDashboard(ctx context.Context, month, year int) (*DashboardSummary, error) {
	summary := &DashboardSummary{
		Month:        month,
		Year:         year,
		TotalBalance: decimal.Zero,
		MonthIncome:  decimal.Zero,
		MonthExpense: decimal.Zero,
	}

	accounts, err := uc.accountRepo.List(ctx, AccountFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	for _, a := range accounts {
		summary.Accounts = append(summary.Accounts, AccountBalance{
			ID:      a.ID,
			Name:    a.Name,
			Kind:    string(a.Kind),
			Balance: a.Balance,
		})
		if a.IncludeInTotal {
			summary.TotalBalance = summary.TotalBalance.Add(a.Balance)
		}
	}

	transactions, err := uc.monthTransactions(ctx, month, year)
	if err != nil {
		return nil, err
	}
	for _, t := range transactions {
		if !t.Effectuated {
			continue
		}
		switch t.Kind {
		case domain.KindIncome:
			summary.MonthIncome = summary.MonthIncome.Add(t.Amount)
		case domain.KindExpense:
			summary.MonthExpense = summary.MonthExpense.Add(t.Amount)
		}
	}
	summary.MonthNet = summary.MonthIncome.Sub(summary.MonthExpense)

	budgets, err := uc.budgetRepo.ListByPeriod(ctx, nil, month, year, true)
	if err != nil {
		return nil, err
	}
	for _, b := range budgets {
		summary.Budgets = append(summary.Budgets, BudgetStatus{
			ID:         b.ID,
			CategoryID: b.CategoryID,
			Planned:    b.Planned,
			Consumed:   b.Consumed,
			Level:      b.AlertLevel(),
		})
	}

	goals, err := uc.goalRepo.List(ctx, true)
	if err != nil {
		return nil, err
	}
	for _, g := range goals {
		summary.OpenGoals = append(summary.OpenGoals, GoalProgress{
			ID:       g.ID,
			Name:     g.Name,
			Target:   g.TargetAmount,
			Current:  g.CurrentAmount,
			Progress: g.Progress(),
		})
	}

	return summary, nil
}

// Report totals effectuated transactions per category for one month.
func (uc *SummaryUseCase) Report(ctx context.Context, month, year int) ([]CategoryTotal, error) {
	if err := domain.ValidatePeriod(month, year); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s%04d-%02d", CacheNamespaceReport, year, month)
	if uc.cache != nil {
		if data, ok := uc.cache.Get(key); ok {
			var cached []CategoryTotal
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
		}
	}

	transactions, err := uc.monthTransactions(ctx, month, year)
	if err != nil {
		return nil, err
	}

	totals := make(map[string]*CategoryTotal)
	var order []string
	for _, t := range transactions {
		if !t.Effectuated || t.Kind == domain.KindTransfer || t.CategoryID == nil {
			continue
		}
		row, ok := totals[*t.CategoryID]
		if !ok {
			row = &CategoryTotal{
				CategoryID: *t.CategoryID,
				Kind:       string(t.Kind),
				Total:      decimal.Zero,
			}
			totals[*t.CategoryID] = row
			order = append(order, *t.CategoryID)
		}
		row.Total = row.Total.Add(t.Amount)
		row.Count++
	}

	report := make([]CategoryTotal, 0, len(order))
	for _, id := range order {
		report = append(report, *totals[id])
	}

	if uc.cache != nil {
		if data, err := json.Marshal(report); err == nil {
			uc.cache.Set(key, data, uc.ttl)
		}
	}

	return report, nil
}

func (uc *SummaryUseCase) monthTransactions(ctx context.Context, month, year int) ([]*domain.Transaction, error) {
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return uc.transactionRepo.List(ctx, TransactionFilter{From: &from, To: &to})
}
