package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/bolsoapp/bolso/internal/domain"
	"github.com/bolsoapp/bolso/internal/usecase"
)

func newAccountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage accounts",
	}
	cmd.AddCommand(
		newAccountsAddCmd(),
		newAccountsListCmd(),
		newAccountsShowCmd(),
		newAccountsUpdateCmd(),
		newAccountsDeleteCmd(),
	)
	return cmd
}

func newAccountsAddCmd() *cobra.Command {
	var (
		name, kind, bank, color, initial string
		excludeFromTotal                 bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			balance, err := decimal.NewFromString(initial)
			if err != nil {
				return fmt.Errorf("invalid initial balance %q", initial)
			}

			account, err := app.accounts.CreateAccount(cmd.Context(), usecase.CreateAccountInput{
				Name:           name,
				Kind:           domain.AccountKind(kind),
				Bank:           bank,
				Color:          color,
				InitialBalance: balance,
				IncludeInTotal: !excludeFromTotal,
			})
			if err != nil {
				return err
			}

			fmt.Printf("Created account %s (%s)\n", account.Name, account.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Account name")
	cmd.Flags().StringVar(&kind, "kind", "checking", "Account kind: checking, savings, wallet, investment, credit")
	cmd.Flags().StringVar(&bank, "bank", "", "Bank name")
	cmd.Flags().StringVar(&color, "color", "", "Display color, e.g. #1abc9c")
	cmd.Flags().StringVar(&initial, "initial", "0", "Initial balance")
	cmd.Flags().BoolVar(&excludeFromTotal, "exclude-from-total", false, "Leave this account out of the dashboard total")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newAccountsListCmd() *cobra.Command {
	var (
		all  bool
		kind string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			filter := usecase.AccountFilter{ActiveOnly: !all}
			if kind != "" {
				k := domain.AccountKind(kind)
				filter.Kind = &k
			}

			accounts, err := app.accounts.ListAccounts(cmd.Context(), filter)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tKIND\tBANK\tBALANCE\tACTIVE")
			for _, a := range accounts {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\n",
					a.ID, a.Name, a.Kind, a.Bank, a.Balance.StringFixed(2), a.Active)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include archived accounts")
	cmd.Flags().StringVar(&kind, "kind", "", "Filter by account kind")
	return cmd
}

func newAccountsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			a, err := app.accounts.GetAccount(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Printf("ID:              %s\n", a.ID)
			fmt.Printf("Name:            %s\n", a.Name)
			fmt.Printf("Kind:            %s\n", a.Kind)
			fmt.Printf("Bank:            %s\n", a.Bank)
			fmt.Printf("Initial balance: %s\n", a.InitialBalance.StringFixed(2))
			fmt.Printf("Balance:         %s\n", a.Balance.StringFixed(2))
			fmt.Printf("Active:          %t\n", a.Active)
			fmt.Printf("In total:        %t\n", a.IncludeInTotal)
			return nil
		},
	}
}

func newAccountsUpdateCmd() *cobra.Command {
	var (
		name, bank, color      string
		active, includeInTotal bool
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			var patch usecase.UpdateAccountInput
			if cmd.Flags().Changed("name") {
				patch.Name = &name
			}
			if cmd.Flags().Changed("bank") {
				patch.Bank = &bank
			}
			if cmd.Flags().Changed("color") {
				patch.Color = &color
			}
			if cmd.Flags().Changed("active") {
				patch.Active = &active
			}
			if cmd.Flags().Changed("include-in-total") {
				patch.IncludeInTotal = &includeInTotal
			}

			account, err := app.accounts.UpdateAccount(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}

			fmt.Printf("Updated account %s\n", account.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Account name")
	cmd.Flags().StringVar(&bank, "bank", "", "Bank name")
	cmd.Flags().StringVar(&color, "color", "", "Display color")
	cmd.Flags().BoolVar(&active, "active", true, "Archive (false) or restore (true)")
	cmd.Flags().BoolVar(&includeInTotal, "include-in-total", true, "Count this account in the dashboard total")
	return cmd
}

func newAccountsDeleteCmd() *cobra.Command {
	var hard bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Archive an account, or delete it permanently with --hard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.accounts.DeleteAccount(cmd.Context(), args[0], hard); err != nil {
				return err
			}

			if hard {
				fmt.Println("Account deleted")
			} else {
				fmt.Println("Account archived")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&hard, "hard", false, "Delete permanently; only allowed when no transactions reference the account")
	return cmd
}
