package main

import (
	"context"

	"github.com/jrsteele09/go-ledger-sync/internal/config"
	"github.com/jrsteele09/go-ledger-sync/internal/database"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newMigrateCommand(load func() (config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			db, err := database.Open(ctx, c.GetDatabaseURL())
			if err != nil {
				return err
			}
			defer db.Close()
			if err := database.Migrate(ctx, db); err != nil {
				return err
			}
			log.Info().Msg("migrations applied")
			return nil
		},
	}
}
