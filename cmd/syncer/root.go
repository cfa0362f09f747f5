package main

import (
	"github.com/jrsteele09/go-ledger-sync/internal/config"
	"github.com/jrsteele09/go-ledger-sync/internal/logging"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "ledgersync",
		Short: "Ledger sync service",
		Long: `Ledger sync keeps per-user OAuth2 credentials for the accounting provider and
incrementally copies each connected organisation's journals into PostgreSQL.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a config file (default ledgersync.yaml)")

	load := func() (config.Config, error) {
		c, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		logging.Setup(c.GetEnv(), c.GetLogLevel())
		return c, nil
	}

	rootCmd.AddCommand(newServeCommand(load))
	rootCmd.AddCommand(newSyncCommand(load))
	rootCmd.AddCommand(newMigrateCommand(load))
	rootCmd.AddCommand(newKeygenCommand())
	return rootCmd
}
