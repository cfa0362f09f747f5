package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jrsteele09/go-ledger-sync/internal/app"
	"github.com/jrsteele09/go-ledger-sync/internal/config"
	"github.com/jrsteele09/go-ledger-sync/ledger"
	"github.com/jrsteele09/go-ledger-sync/scheduler"
	"github.com/spf13/cobra"
)

func newSyncCommand(load func() (config.Config, error)) *cobra.Command {
	var tenantID string
	var full bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync journals once for one tenant or every connected tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := load()
			if err != nil {
				return err
			}
			return runSync(cmd.OutOrStdout(), c, tenantID, full)
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "Only sync this tenant id")
	cmd.Flags().BoolVar(&full, "full", false, "Page until caught up instead of fetching one page")
	return cmd
}

func runSync(out io.Writer, c config.Config, tenantID string, full bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, c)
	if err != nil {
		return err
	}
	defer a.Close()

	mode := scheduler.ModeIncremental
	if full {
		mode = scheduler.ModeBackfill
	}

	var results []ledger.Result
	if tenantID != "" {
		res, err := a.Scheduler.RunTenant(ctx, tenantID, mode)
		if err != nil {
			return err
		}
		results = append(results, res)
	} else {
		s := scheduler.New(a.Tenants, a.Clients, a.Engine,
			scheduler.WithConcurrency(c.GetSyncConcurrency()),
			scheduler.WithTimeout(c.GetSyncTimeout()),
			scheduler.WithMode(mode),
		)
		if results, err = s.RunOnce(ctx); err != nil {
			return err
		}
	}
	return printResults(out, results)
}

func printResults(out io.Writer, results []ledger.Result) error {
	failed := 0
	for _, r := range results {
		fmt.Fprintf(out, "%s [%s] done=%t\n%s\n\n", r.TenantID, r.Status, r.Done, r.Description)
		if r.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d tenants failed to sync", failed, len(results))
	}
	return nil
}
