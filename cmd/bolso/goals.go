package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/bolsoapp/bolso/internal/usecase"
)

func newGoalsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goals",
		Short: "Manage savings goals",
	}
	cmd.AddCommand(
		newGoalsAddCmd(),
		newGoalsListCmd(),
		newGoalsContributeCmd(),
		newGoalsUpdateCmd(),
		newGoalsDeleteCmd(),
	)
	return cmd
}

func newGoalsAddCmd() *cobra.Command {
	var name, target, startDate, targetDate string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a savings goal",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			amount, err := decimal.NewFromString(target)
			if err != nil {
				return fmt.Errorf("invalid target amount %q", target)
			}

			start := time.Now().UTC()
			if startDate != "" {
				if start, err = parseDate(startDate); err != nil {
					return err
				}
			}
			end, err := parseDate(targetDate)
			if err != nil {
				return err
			}

			goal, err := app.goals.CreateGoal(cmd.Context(), usecase.CreateGoalInput{
				Name:         name,
				TargetAmount: amount,
				StartDate:    start,
				TargetDate:   end,
			})
			if err != nil {
				return err
			}

			fmt.Printf("Created goal %s (%s), target %s by %s\n",
				goal.Name, goal.ID, goal.TargetAmount.StringFixed(2), goal.TargetDate.Format("2006-01-02"))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Goal name")
	cmd.Flags().StringVar(&target, "target", "", "Target amount")
	cmd.Flags().StringVar(&startDate, "start-date", "", "Start date (YYYY-MM-DD), default today")
	cmd.Flags().StringVar(&targetDate, "target-date", "", "Target date (YYYY-MM-DD)")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("target")
	cmd.MarkFlagRequired("target-date")
	return cmd
}

func newGoalsListCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List goals",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			goals, err := app.goals.ListGoals(cmd.Context(), !all)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTARGET\tCURRENT\tPROGRESS\tTARGET DATE\tDONE")
			for _, g := range goals {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s%%\t%s\t%t\n",
					g.ID, g.Name, g.TargetAmount.StringFixed(2), g.CurrentAmount.StringFixed(2),
					g.Progress().StringFixed(1), g.TargetDate.Format("2006-01-02"), g.Completed)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include completed goals")
	return cmd
}

func newGoalsContributeCmd() *cobra.Command {
	var amount string

	cmd := &cobra.Command{
		Use:   "contribute <id>",
		Short: "Add money toward a goal",
		Args:  cobra.ExactArgs(1),
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

			goal, err := app.goals.ContributeToGoal(cmd.Context(), args[0], value)
			if err != nil {
				return err
			}

			fmt.Printf("Goal %s at %s of %s (%s%%)\n",
				goal.Name, goal.CurrentAmount.StringFixed(2), goal.TargetAmount.StringFixed(2),
				goal.Progress().StringFixed(1))
			if goal.Completed {
				fmt.Println("Goal completed!")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "", "Contribution amount")
	cmd.MarkFlagRequired("amount")
	return cmd
}

func newGoalsUpdateCmd() *cobra.Command {
	var name, target, targetDate string

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			var patch usecase.UpdateGoalInput
			if cmd.Flags().Changed("name") {
				patch.Name = &name
			}
			if cmd.Flags().Changed("target") {
				amount, err := decimal.NewFromString(target)
				if err != nil {
					return fmt.Errorf("invalid target amount %q", target)
				}
				patch.TargetAmount = &amount
			}
			if cmd.Flags().Changed("target-date") {
				t, err := parseDate(targetDate)
				if err != nil {
					return err
				}
				patch.TargetDate = &t
			}

			goal, err := app.goals.UpdateGoal(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}

			fmt.Printf("Updated goal %s\n", goal.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Goal name")
	cmd.Flags().StringVar(&target, "target", "", "Target amount")
	cmd.Flags().StringVar(&targetDate, "target-date", "", "Target date (YYYY-MM-DD)")
	return cmd
}

func newGoalsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.goals.DeleteGoal(cmd.Context(), args[0]); err != nil {
				return err
			}

			fmt.Println("Goal deleted")
			return nil
		},
	}
}
