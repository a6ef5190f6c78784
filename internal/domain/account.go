package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountKind classifies an account.
type AccountKind string

const (
	AccountChecking   AccountKind = "checking"
	AccountSavings    AccountKind = "savings"
	AccountWallet     AccountKind = "wallet"
	AccountInvestment AccountKind = "investment"
	AccountCredit     AccountKind = "credit"
)

// Valid reports whether the kind is one of the known account kinds.
func (k AccountKind) Valid() bool {
	switch k {
	case AccountChecking, AccountSavings, AccountWallet, AccountInvestment, AccountCredit:
		return true
	}
	return false
}

// Account represents a bank account, wallet or investment pot.
// Balance is derived from the transaction log by the balance engine and is
// never written directly by user action.
type Account struct {
	ID             string
	Name           string
	Kind           AccountKind
	Bank           string
	Color          string
	InitialBalance decimal.Decimal
	Balance        decimal.Decimal
	Active         bool
	IncludeInTotal bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Validate checks account invariants that need no storage access.
func (a *Account) Validate() error {
	if err := ValidateName(a.Name); err != nil {
		return err
	}
	if !a.Kind.Valid() {
		return ErrInvalidAccountKind
	}
	if a.Color != "" {
		if err := ValidateHexColor(a.Color); err != nil {
			return err
		}
	}
	return nil
}
