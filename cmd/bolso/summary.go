package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newDashboardCmd() *cobra.Command {
	var month, year int

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show the monthly overview",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			m, y := currentPeriod(month, year)
			summary, err := app.summary.Dashboard(cmd.Context(), m, y)
			if err != nil {
				return err
			}

			fmt.Printf("Overview for %02d/%d\n\n", summary.Month, summary.Year)
			fmt.Printf("Total balance: %s\n", summary.TotalBalance.StringFixed(2))
			fmt.Printf("Income:        %s\n", summary.MonthIncome.StringFixed(2))
			fmt.Printf("Expenses:      %s\n", summary.MonthExpense.StringFixed(2))
			fmt.Printf("Net:           %s\n", summary.MonthNet.StringFixed(2))

			if len(summary.Accounts) > 0 {
				fmt.Println("\nAccounts:")
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				for _, a := range summary.Accounts {
					fmt.Fprintf(w, "  %s\t%s\t%s\n", a.Name, a.Kind, a.Balance.StringFixed(2))
				}
				w.Flush()
			}

			if len(summary.Budgets) > 0 {
				fmt.Println("\nBudgets:")
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				for _, b := range summary.Budgets {
					fmt.Fprintf(w, "  %s\t%s / %s\t%s\n",
						b.CategoryID, b.Consumed.StringFixed(2), b.Planned.StringFixed(2), b.Level)
				}
				w.Flush()
			}

			if len(summary.OpenGoals) > 0 {
				fmt.Println("\nOpen goals:")
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				for _, g := range summary.OpenGoals {
					fmt.Fprintf(w, "  %s\t%s / %s\t%s%%\n",
						g.Name, g.Current.StringFixed(2), g.Target.StringFixed(2), g.Progress.StringFixed(1))
				}
				w.Flush()
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&month, "month", 0, "Month 1-12, default current")
	cmd.Flags().IntVar(&year, "year", 0, "Year, default current")
	return cmd
}

func newReportCmd() *cobra.Command {
	var month, year int

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show monthly totals per category",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			m, y := currentPeriod(month, year)
			totals, err := app.summary.Report(cmd.Context(), m, y)
			if err != nil {
				return err
			}

			fmt.Printf("Report for %02d/%d\n\n", m, y)
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CATEGORY\tKIND\tTOTAL\tCOUNT")
			for _, row := range totals {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", row.CategoryID, row.Kind, row.Total.StringFixed(2), row.Count)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&month, "month", 0, "Month 1-12, default current")
	cmd.Flags().IntVar(&year, "year", 0, "Year, default current")
	return cmd
}
