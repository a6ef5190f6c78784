package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/bolsoapp/bolso/internal/usecase"
)

func newBudgetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budgets",
		Short: "Manage monthly budgets",
	}
	cmd.AddCommand(
		newBudgetsSetCmd(),
		newBudgetsListCmd(),
		newBudgetsUpdateCmd(),
		newBudgetsDeleteCmd(),
		newBudgetsReconcileCmd(),
	)
	return cmd
}

func newBudgetsSetCmd() *cobra.Command {
	var (
		category, planned string
		month, year       int
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Create a budget for a category and month",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			amount, err := decimal.NewFromString(planned)
			if err != nil {
				return fmt.Errorf("invalid planned amount %q", planned)
			}

			m, y := currentPeriod(month, year)
			budget, err := app.budgets.CreateBudget(cmd.Context(), usecase.CreateBudgetInput{
				CategoryID: category,
				Month:      m,
				Year:       y,
				Planned:    amount,
			})
			if err != nil {
				return err
			}

			fmt.Printf("Budget %s: %s planned for %02d/%d, %s already consumed\n",
				budget.ID, budget.Planned.StringFixed(2), budget.Month, budget.Year, budget.Consumed.StringFixed(2))
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Category id")
	cmd.Flags().StringVar(&planned, "planned", "", "Planned amount")
	cmd.Flags().IntVar(&month, "month", 0, "Month 1-12, default current")
	cmd.Flags().IntVar(&year, "year", 0, "Year, default current")
	cmd.MarkFlagRequired("category")
	cmd.MarkFlagRequired("planned")
	return cmd
}

func newBudgetsListCmd() *cobra.Command {
	var (
		month, year int
		all         bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List budgets for a month",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			m, y := currentPeriod(month, year)
			budgets, err := app.budgets.ListBudgets(cmd.Context(), m, y, !all)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCATEGORY\tPLANNED\tCONSUMED\tLEVEL")
			for _, b := range budgets {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					b.ID, b.CategoryID, b.Planned.StringFixed(2), b.Consumed.StringFixed(2), b.AlertLevel())
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&month, "month", 0, "Month 1-12, default current")
	cmd.Flags().IntVar(&year, "year", 0, "Year, default current")
	cmd.Flags().BoolVar(&all, "all", false, "Include inactive budgets")
	return cmd
}

func newBudgetsUpdateCmd() *cobra.Command {
	var (
		planned string
		active  bool
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			var patch usecase.UpdateBudgetInput
			if cmd.Flags().Changed("planned") {
				amount, err := decimal.NewFromString(planned)
				if err != nil {
					return fmt.Errorf("invalid planned amount %q", planned)
				}
				patch.Planned = &amount
			}
			if cmd.Flags().Changed("active") {
				patch.Active = &active
			}

			budget, err := app.budgets.UpdateBudget(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}

			fmt.Printf("Updated budget %s\n", budget.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&planned, "planned", "", "Planned amount")
	cmd.Flags().BoolVar(&active, "active", true, "Deactivate (false) or reactivate (true)")
	return cmd
}

func newBudgetsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.budgets.DeleteBudget(cmd.Context(), args[0]); err != nil {
				return err
			}

			fmt.Println("Budget deleted")
			return nil
		},
	}
}

// newBudgetsReconcileCmd rebuilds consumed amounts for a whole period from
// the transactions on record, for when the incremental totals are in doubt.
func newBudgetsReconcileCmd() *cobra.Command {
	var month, year int

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute consumed amounts for a month from scratch",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			m, y := currentPeriod(month, year)
			if err := app.budgets.ReconcilePeriod(cmd.Context(), m, y); err != nil {
				return err
			}

			fmt.Printf("Reconciled budgets for %02d/%d\n", m, y)
			return nil
		},
	}

	cmd.Flags().IntVar(&month, "month", 0, "Month 1-12, default current")
	cmd.Flags().IntVar(&year, "year", 0, "Year, default current")
	return cmd
}
