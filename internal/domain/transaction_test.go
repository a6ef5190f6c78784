package domain_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/bolsoapp/bolso/internal/domain"
)

func strPtr(s string) *string { return &s }

func TestTransactionValidate(t *testing.T) {
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	cat := "cat-1"

	tests := []struct {
		name    string
		tx      domain.Transaction
		wantErr error
	}{
		{
			name: "valid expense",
			tx: domain.Transaction{
				AccountID:   "acc-1",
				CategoryID:  &cat,
				Amount:      decimal.NewFromFloat(42.50),
				Kind:        domain.KindExpense,
				Date:        date,
				Effectuated: true,
			},
		},
		{
			name: "zero amount",
			tx: domain.Transaction{
				AccountID: "acc-1",
				Amount:    decimal.Zero,
				Kind:      domain.KindIncome,
				Date:      date,
			},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name: "transfer without destination",
			tx: domain.Transaction{
				AccountID: "acc-1",
				Amount:    decimal.NewFromInt(10),
				Kind:      domain.KindTransfer,
				Date:      date,
			},
			wantErr: domain.ErrTransferNeedsDestination,
		},
		{
			name: "transfer to same account",
			tx: domain.Transaction{
				AccountID:            "acc-1",
				DestinationAccountID: strPtr("acc-1"),
				Amount:               decimal.NewFromInt(10),
				Kind:                 domain.KindTransfer,
				Date:                 date,
			},
			wantErr: domain.ErrSameAccount,
		},
		{
			name: "transfer with category",
			tx: domain.Transaction{
				AccountID:            "acc-1",
				DestinationAccountID: strPtr("acc-2"),
				CategoryID:           &cat,
				Amount:               decimal.NewFromInt(10),
				Kind:                 domain.KindTransfer,
				Date:                 date,
			},
			wantErr: domain.ErrTransferHasCategory,
		},
		{
			name: "destination on expense",
			tx: domain.Transaction{
				AccountID:            "acc-1",
				DestinationAccountID: strPtr("acc-2"),
				Amount:               decimal.NewFromInt(10),
				Kind:                 domain.KindExpense,
				Date:                 date,
			},
			wantErr: domain.ErrDestinationOnNonTransfer,
		},
		{
			name: "date before epoch",
			tx: domain.Transaction{
				AccountID: "acc-1",
				Amount:    decimal.NewFromInt(10),
				Kind:      domain.KindIncome,
				Date:      time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC),
			},
			wantErr: domain.ErrDateOutOfRange,
		},
		{
			name: "installment number out of range",
			tx: domain.Transaction{
				AccountID:          "acc-1",
				Amount:             decimal.NewFromInt(10),
				Kind:               domain.KindIncome,
				Date:               date,
				InstallmentGroupID: strPtr("grp-1"),
				InstallmentNumber:  4,
				InstallmentCount:   3,
			},
			wantErr: domain.ErrInvalidInstallment,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tx.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTransactionSignedAmountFor(t *testing.T) {
	amount := decimal.NewFromFloat(200)

	transfer := domain.Transaction{
		AccountID:            "checking",
		DestinationAccountID: strPtr("savings"),
		Amount:               amount,
		Kind:                 domain.KindTransfer,
		Effectuated:          true,
	}

	assert.True(t, transfer.SignedAmountFor("checking").Equal(amount.Neg()))
	assert.True(t, transfer.SignedAmountFor("savings").Equal(amount))
	assert.True(t, transfer.SignedAmountFor("other").IsZero())

	// Net ledger effect of a transfer is zero.
	net := transfer.SignedAmountFor("checking").Add(transfer.SignedAmountFor("savings"))
	assert.True(t, net.IsZero())

	pending := domain.Transaction{
		AccountID:   "checking",
		Amount:      amount,
		Kind:        domain.KindExpense,
		Effectuated: false,
	}
	assert.True(t, pending.SignedAmountFor("checking").IsZero(), "pending transactions do not count")
}

func TestValidationErrorsAreClassified(t *testing.T) {
	assert.ErrorIs(t, domain.ErrSameAccount, domain.ErrValidation)
	assert.ErrorIs(t, domain.ErrAccountNotFound, domain.ErrNotFound)
	assert.ErrorIs(t, domain.ErrExpiredToken, domain.ErrAuth)
	assert.ErrorIs(t, domain.ErrConflictPending, domain.ErrConflict)
}
