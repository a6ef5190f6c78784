package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/bolsoapp/bolso/internal/domain"
	"github.com/bolsoapp/bolso/internal/usecase"
)

func newTxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Manage transactions",
	}
	cmd.AddCommand(
		newTxAddCmd(),
		newTxListCmd(),
		newTxShowCmd(),
		newTxUpdateCmd(),
		newTxSettleCmd(),
		newTxDeleteCmd(),
	)
	return cmd
}

func newTxAddCmd() *cobra.Command {
	var (
		account, destination, category   string
		description, notes, amount, date string
		kind, reference                  string
		pending, recurring               bool
		installments                     int
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a transaction",
		Long: `Record an income, expense or transfer. A transfer needs --to; an
amount with --installments N is split into N monthly installments.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			value, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid amount %q", amount)
			}

			when := time.Now().UTC()
			if date != "" {
				if when, err = parseDate(date); err != nil {
					return err
				}
			}

			input := usecase.CreateTransactionInput{
				AccountID:    account,
				Description:  description,
				Notes:        notes,
				Amount:       value,
				Kind:         domain.TransactionKind(kind),
				Date:         when,
				Effectuated:  !pending,
				Recurring:    recurring,
				Installments: installments,
				Reference:    reference,
			}
			if destination != "" {
				input.DestinationAccountID = &destination
			}
			if category != "" {
				input.CategoryID = &category
			}

			created, err := app.transactions.CreateTransaction(cmd.Context(), input)
			if err != nil {
				return err
			}

			if len(created) == 1 {
				fmt.Printf("Recorded %s of %s (%s)\n", created[0].Kind, created[0].Amount.StringFixed(2), created[0].ID)
				return nil
			}
			fmt.Printf("Recorded %d installments of %s:\n", len(created), created[0].Amount.StringFixed(2))
			for _, t := range created {
				fmt.Printf("  %d/%d  %s  %s\n", t.InstallmentNumber, t.InstallmentCount, t.Date.Format("2006-01-02"), t.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "Source account id")
	cmd.Flags().StringVar(&destination, "to", "", "Destination account id, transfers only")
	cmd.Flags().StringVar(&category, "category", "", "Category id")
	cmd.Flags().StringVar(&description, "desc", "", "Description")
	cmd.Flags().StringVar(&notes, "notes", "", "Free-form notes")
	cmd.Flags().StringVar(&amount, "amount", "", "Amount, e.g. 42.50")
	cmd.Flags().StringVar(&kind, "kind", "expense", "Kind: income, expense or transfer")
	cmd.Flags().StringVar(&date, "date", "", "Date (YYYY-MM-DD), default today")
	cmd.Flags().StringVar(&reference, "ref", "", "External reference")
	cmd.Flags().BoolVar(&pending, "pending", false, "Record as pending instead of effectuated")
	cmd.Flags().BoolVar(&recurring, "recurring", false, "Mark as recurring")
	cmd.Flags().IntVar(&installments, "installments", 0, "Split into N monthly installments")
	cmd.MarkFlagRequired("account")
	cmd.MarkFlagRequired("amount")
	return cmd
}

func newTxListCmd() *cobra.Command {
	var (
		account, category, kind, from, to string
		limit, offset                     int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			filter := usecase.TransactionFilter{
				AccountID:  account,
				CategoryID: category,
				Limit:      limit,
				Offset:     offset,
			}
			if kind != "" {
				k := domain.TransactionKind(kind)
				filter.Kind = &k
			}
			if from != "" {
				t, err := parseDate(from)
				if err != nil {
					return err
				}
				filter.From = &t
			}
			if to != "" {
				t, err := parseDate(to)
				if err != nil {
					return err
				}
				filter.To = &t
			}

			transactions, err := app.transactions.ListTransactions(cmd.Context(), filter)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDATE\tKIND\tAMOUNT\tDESCRIPTION\tSTATUS")
			for _, t := range transactions {
				status := "effectuated"
				if !t.Effectuated {
					status = "pending"
				}
				desc := t.Description
				if t.InstallmentCount > 1 {
					desc = fmt.Sprintf("%s (%d/%d)", desc, t.InstallmentNumber, t.InstallmentCount)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					t.ID, t.Date.Format("2006-01-02"), t.Kind, t.Amount.StringFixed(2), desc, status)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "Filter by account id, source or destination")
	cmd.Flags().StringVar(&category, "category", "", "Filter by category id")
	cmd.Flags().StringVar(&kind, "kind", "", "Filter by kind")
	cmd.Flags().StringVar(&from, "from", "", "Start date, inclusive")
	cmd.Flags().StringVar(&to, "to", "", "End date, exclusive")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum rows")
	cmd.Flags().IntVar(&offset, "offset", 0, "Rows to skip")
	return cmd
}

func newTxShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			t, err := app.transactions.GetTransaction(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Printf("ID:          %s\n", t.ID)
			fmt.Printf("Kind:        %s\n", t.Kind)
			fmt.Printf("Amount:      %s\n", t.Amount.StringFixed(2))
			fmt.Printf("Date:        %s\n", t.Date.Format("2006-01-02"))
			fmt.Printf("Account:     %s\n", t.AccountID)
			if t.DestinationAccountID != nil {
				fmt.Printf("Destination: %s\n", *t.DestinationAccountID)
			}
			if t.CategoryID != nil {
				fmt.Printf("Category:    %s\n", *t.CategoryID)
			}
			fmt.Printf("Description: %s\n", t.Description)
			if t.Notes != "" {
				fmt.Printf("Notes:       %s\n", t.Notes)
			}
			fmt.Printf("Effectuated: %t\n", t.Effectuated)
			if t.InstallmentCount > 1 {
				fmt.Printf("Installment: %d of %d\n", t.InstallmentNumber, t.InstallmentCount)
			}
			return nil
		},
	}
}

func newTxUpdateCmd() *cobra.Command {
	var (
		description, notes, amount, date string
		category, account, reference     string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			var patch usecase.UpdateTransactionInput
			if cmd.Flags().Changed("desc") {
				patch.Description = &description
			}
			if cmd.Flags().Changed("notes") {
				patch.Notes = &notes
			}
			if cmd.Flags().Changed("amount") {
				value, err := decimal.NewFromString(amount)
				if err != nil {
					return fmt.Errorf("invalid amount %q", amount)
				}
				patch.Amount = &value
			}
			if cmd.Flags().Changed("date") {
				t, err := parseDate(date)
				if err != nil {
					return err
				}
				patch.Date = &t
			}
			if cmd.Flags().Changed("category") {
				patch.CategoryID = &category
			}
			if cmd.Flags().Changed("account") {
				patch.AccountID = &account
			}
			if cmd.Flags().Changed("ref") {
				patch.Reference = &reference
			}

			t, err := app.transactions.UpdateTransaction(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}

			fmt.Printf("Updated transaction %s\n", t.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "desc", "", "Description")
	cmd.Flags().StringVar(&notes, "notes", "", "Free-form notes")
	cmd.Flags().StringVar(&amount, "amount", "", "Amount")
	cmd.Flags().StringVar(&date, "date", "", "Date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&category, "category", "", "Category id")
	cmd.Flags().StringVar(&account, "account", "", "Account id")
	cmd.Flags().StringVar(&reference, "ref", "", "External reference")
	return cmd
}

// newTxSettleCmd flips a pending transaction to effectuated, which is when
// it starts counting toward balances and budgets.
func newTxSettleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "settle <id>",
		Short: "Mark a pending transaction as effectuated",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			effectuated := true
			t, err := app.transactions.UpdateTransaction(cmd.Context(), args[0], usecase.UpdateTransactionInput{
				Effectuated: &effectuated,
			})
			if err != nil {
				return err
			}

			fmt.Printf("Settled transaction %s\n", t.ID)
			return nil
		},
	}
}

func newTxDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.transactions.DeleteTransaction(cmd.Context(), args[0]); err != nil {
				return err
			}

			fmt.Println("Transaction deleted")
			return nil
		},
	}
}
