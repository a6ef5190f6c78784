package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind classifies the money movement of a transaction.
type TransactionKind string

const (
	KindIncome   TransactionKind = "income"
	KindExpense  TransactionKind = "expense"
	KindTransfer TransactionKind = "transfer"
)

// Valid reports whether the kind is one of the known transaction kinds.
func (k TransactionKind) Valid() bool {
	return k == KindIncome || k == KindExpense || k == KindTransfer
}

// Transaction is a single money movement. A transfer is one record that
// debits AccountID and credits DestinationAccountID by the same amount, so
// deleting it removes the effect from both sides atomically.
type Transaction struct {
	ID                   string
	AccountID            string
	DestinationAccountID *string
	CategoryID           *string
	Description          string
	Notes                string
	Amount               decimal.Decimal
	Kind                 TransactionKind
	Date                 time.Time
	Effectuated          bool
	Recurring            bool
	InstallmentGroupID   *string
	InstallmentNumber    int
	InstallmentCount     int
	Reference            string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Validate checks the transaction invariants that need no storage access.
func (t *Transaction) Validate() error {
	if !t.Kind.Valid() {
		return ErrInvalidTransactionKind
	}
	if err := ValidateAmount(t.Amount); err != nil {
		return err
	}
	if err := ValidateDate(t.Date); err != nil {
		return err
	}
	if t.Kind == KindTransfer {
		if t.DestinationAccountID == nil {
			return ErrTransferNeedsDestination
		}
		if *t.DestinationAccountID == t.AccountID {
			return ErrSameAccount
		}
		// A transfer never carries an income/expense category.
		if t.CategoryID != nil {
			return ErrTransferHasCategory
		}
	} else if t.DestinationAccountID != nil {
		return ErrDestinationOnNonTransfer
	}
	if t.InstallmentCount > 0 && (t.InstallmentNumber < 1 || t.InstallmentNumber > t.InstallmentCount) {
		return ErrInvalidInstallment
	}
	return nil
}

// Touches reports whether the transaction affects the given account.
func (t *Transaction) Touches(accountID string) bool {
	if t.AccountID == accountID {
		return true
	}
	return t.DestinationAccountID != nil && *t.DestinationAccountID == accountID
}

// SignedAmountFor returns the balance contribution of the transaction for
// the given account: +amount for income and incoming transfers, -amount for
// expenses and outgoing transfers, zero for untouched accounts or pending
// transactions.
func (t *Transaction) SignedAmountFor(accountID string) decimal.Decimal {
	if !t.Effectuated {
		return decimal.Zero
	}
	switch t.Kind {
	case KindIncome:
		if t.AccountID == accountID {
			return t.Amount
		}
	case KindExpense:
		if t.AccountID == accountID {
			return t.Amount.Neg()
		}
	case KindTransfer:
		if t.AccountID == accountID {
			return t.Amount.Neg()
		}
		if t.DestinationAccountID != nil && *t.DestinationAccountID == accountID {
			return t.Amount
		}
	}
	return decimal.Zero
}

// AffectedAccountIDs returns the accounts whose balance depends on the
// transaction, source first.
func (t *Transaction) AffectedAccountIDs() []string {
	ids := []string{t.AccountID}
	if t.DestinationAccountID != nil {
		ids = append(ids, *t.DestinationAccountID)
	}
	return ids
}

// InPeriod reports whether the transaction date falls in the given month.
func (t *Transaction) InPeriod(month, year int) bool {
	return int(t.Date.Month()) == month && t.Date.Year() == year
}
