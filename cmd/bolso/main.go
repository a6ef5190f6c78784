// Command bolso is the local ledger CLI: accounts, categories,
// transactions, budgets, goals, reports, backups and synchronization
// against a remote bolso server.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

var (
	dataDir string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "bolso",
		Short:         "Personal finance ledger",
		Long:          `bolso tracks accounts, transactions, budgets and goals in a local ledger and syncs them with a remote bolso server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", defaultDataDir(), "Data directory for the ledger store")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")

	rootCmd.AddCommand(
		newAccountsCmd(),
		newCategoriesCmd(),
		newTxCmd(),
		newBudgetsCmd(),
		newGoalsCmd(),
		newDashboardCmd(),
		newReportCmd(),
		newSyncCmd(),
		newBackupCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bolso"
	}
	return filepath.Join(home, ".bolso")
}

// parseDate accepts a calendar date or a full RFC 3339 timestamp.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return t.UTC(), nil
}

// currentPeriod fills zero month/year flags with today's period.
func currentPeriod(month, year int) (int, int) {
	now := time.Now().UTC()
	if month == 0 {
		month = int(now.Month())
	}
	if year == 0 {
		year = now.Year()
	}
	return month, year
}
