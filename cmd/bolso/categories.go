package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bolsoapp/bolso/internal/domain"
	"github.com/bolsoapp/bolso/internal/usecase"
)

func newCategoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage categories",
	}
	cmd.AddCommand(
		newCategoriesAddCmd(),
		newCategoriesListCmd(),
		newCategoriesUpdateCmd(),
		newCategoriesDeleteCmd(),
	)
	return cmd
}

func newCategoriesAddCmd() *cobra.Command {
	var name, kind, icon, color string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a category",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			category, err := app.categories.CreateCategory(cmd.Context(), usecase.CreateCategoryInput{
				Name:  name,
				Kind:  domain.CategoryKind(kind),
				Icon:  icon,
				Color: color,
			})
			if err != nil {
				return err
			}

			fmt.Printf("Created category %s (%s)\n", category.Name, category.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Category name")
	cmd.Flags().StringVar(&kind, "kind", "expense", "Category kind: income or expense")
	cmd.Flags().StringVar(&icon, "icon", "", "Icon name")
	cmd.Flags().StringVar(&color, "color", "", "Display color, e.g. #e74c3c")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newCategoriesListCmd() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			var filter *domain.CategoryKind
			if kind != "" {
				k := domain.CategoryKind(kind)
				filter = &k
			}

			categories, err := app.categories.ListCategories(cmd.Context(), filter)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tKIND\tICON")
			for _, c := range categories {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.ID, c.Name, c.Kind, c.Icon)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Filter by kind: income or expense")
	return cmd
}

func newCategoriesUpdateCmd() *cobra.Command {
	var name, icon, color string

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			var patch usecase.UpdateCategoryInput
			if cmd.Flags().Changed("name") {
				patch.Name = &name
			}
			if cmd.Flags().Changed("icon") {
				patch.Icon = &icon
			}
			if cmd.Flags().Changed("color") {
				patch.Color = &color
			}

			category, err := app.categories.UpdateCategory(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}

			fmt.Printf("Updated category %s\n", category.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Category name")
	cmd.Flags().StringVar(&icon, "icon", "", "Icon name")
	cmd.Flags().StringVar(&color, "color", "", "Display color")
	return cmd
}

func newCategoriesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.categories.DeleteCategory(cmd.Context(), args[0]); err != nil {
				return err
			}

			fmt.Println("Category deleted")
			return nil
		},
	}
}
