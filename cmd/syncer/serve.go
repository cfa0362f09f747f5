package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-ledger-sync/internal/app"
	"github.com/jrsteele09/go-ledger-sync/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newServeCommand(load func() (config.Config, error)) *cobra.Command {
	var migrate, schedule bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and the sync scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := load()
			if err != nil {
				return err
			}
			return runServe(c, migrate, schedule)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "Apply database migrations on start")
	cmd.Flags().BoolVar(&schedule, "schedule", true, "Run the periodic sync scheduler")
	return cmd
}

func runServe(c config.Config, migrate, schedule bool) (returnError error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	displayAppname(c.GetAppName())

	a, err := app.New(ctx, c)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil && returnError == nil {
			returnError = err
		}
	}()

	if migrate {
		if err := a.Migrate(ctx); err != nil {
			return err
		}
	}

	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		if !schedule {
			return
		}
		if err := a.Scheduler.Start(ctx, c.GetSyncSchedule()); err != nil {
			log.Err(err).Msg("scheduler stopped")
			stop()
		}
	}()

	server := &http.Server{Addr: c.GetPort(), Handler: a.Server(), ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() { serveErr <- listenAndServe(server) }()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			stop()
			<-schedulerDone
			return err
		}
	}

	returnError = shutdown(server)
	<-schedulerDone
	log.Info().Msg("Server stopped")
	return returnError
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
