// Command billpayctl inspects and repairs bills stuck in PENDING_SETTLEMENT.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mmynk/utilipay/internal/config"
	"github.com/mmynk/utilipay/internal/storage/sqlite"
	"github.com/mmynk/utilipay/pkg/logging"
)

var Version = "dev"

var (
	dbPath  string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "billpayctl",
		Short:   "Operate on the utilipay settlement ledger",
		Version: Version,
	}

	defaultDB := config.Default().Database.Path
	if v := os.Getenv("DB_PATH"); v != "" {
		defaultDB = v
	}
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", defaultDB, "Path to the SQLite database (DB_PATH)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(pendingCmd())
	rootCmd.AddCommand(reconcileCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openStore() (*sqlite.SQLiteStore, *slog.Logger, error) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(logging.NewHandler(os.Stderr, level, os.Getenv("LOG_FORMAT")))

	store, err := sqlite.New(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", dbPath, err)
	}
	return store, logger, nil
}
