package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Manage ledger backups",
	}
	cmd.AddCommand(
		newBackupCreateCmd(),
		newBackupListCmd(),
		newBackupRestoreCmd(),
	)
	return cmd
}

func newBackupCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create a backup of the ledger store",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			artifact, err := app.backups.CreateBackup()
			if err != nil {
				return err
			}

			fmt.Printf("Created %s (%d bytes)\n", artifact.Path, artifact.Size)
			return nil
		},
	}
}

func newBackupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List backups, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			artifacts, err := app.backups.ListBackups()
			if err != nil {
				return err
			}

			if len(artifacts) == 0 {
				fmt.Println("No backups yet")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tCREATED\tSIZE")
			for _, a := range artifacts {
				fmt.Fprintf(w, "%s\t%s\t%d\n", a.Name, a.CreatedAt.Format("2006-01-02 15:04:05"), a.Size)
			}
			return w.Flush()
		},
	}
}

func newBackupRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <path>",
		Short: "Replace the ledger store with a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}

			// The store must be closed before the file is swapped out.
			if err := app.Close(); err != nil {
				return err
			}

			if err := app.backups.RestoreBackup(args[0]); err != nil {
				return err
			}

			fmt.Println("Ledger restored; the previous store was kept next to it as a safety copy")
			return nil
		},
	}
}
