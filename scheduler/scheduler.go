// Package scheduler runs journal syncs for every connected tenant on a cron schedule
// with bounded concurrency.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/go-ledger-sync/internal/errors"
	"github.com/jrsteele09/go-ledger-sync/ledger"
	"github.com/jrsteele09/go-ledger-sync/tenants"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

type Mode string

const (
	ModeIncremental Mode = "incremental" // one page per tenant per run
	ModeBackfill    Mode = "backfill"    // page until caught up
)

type Connections interface {
	All(ctx context.Context) ([]*tenants.Connection, error)
	Get(ctx context.Context, tenantID string) (*tenants.Connection, error)
}

type SourceFactory interface {
	Source(ctx context.Context, user, tenantID string) (ledger.JournalSource, error)
}

type Syncer interface {
	SyncOnce(ctx context.Context, src ledger.JournalSource) ledger.Result
	Backfill(ctx context.Context, src ledger.JournalSource) ledger.Result
}

type Scheduler struct {
	conns          Connections
	factory        SourceFactory
	engine         Syncer
	maxConcurrency int
	timeout        time.Duration
	mode           Mode
}

type Option func(*Scheduler)

func WithConcurrency(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.maxConcurrency = n
		}
	}
}

// WithTimeout bounds each tenant attempt. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		s.timeout = d
	}
}

func WithMode(m Mode) Option {
	return func(s *Scheduler) {
		s.mode = m
	}
}

func New(conns Connections, factory SourceFactory, engine Syncer, options ...Option) *Scheduler {
	s := &Scheduler{
		conns:          conns,
		factory:        factory,
		engine:         engine,
		maxConcurrency: 5,
		timeout:        5 * time.Minute,
		mode:           ModeIncremental,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Start runs RunOnce on spec until ctx is done. A run still going when the next one is
// due is skipped.
func (s *Scheduler) Start(ctx context.Context, spec string) error {
	c := cron.New(cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{})))
	_, err := c.AddFunc(spec, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			log.Err(err).Msg("sync run failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sync schedule %q: %w", spec, err)
	}

	log.Info().Str("schedule", spec).Int("max_concurrency", s.maxConcurrency).Str("mode", string(s.mode)).
		Msg("sync scheduler started")
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	log.Info().Msg("sync scheduler stopped")
	return nil
}

// RunOnce syncs every connected tenant once in the configured mode. One tenant's failure
// is reported in its result and never stops the others.
func (s *Scheduler) RunOnce(ctx context.Context) ([]ledger.Result, error) {
	start := time.Now()
	conns, err := s.conns.All(ctx)
	if err != nil {
		return nil, apperrors.Wrapf(err, "[scheduler RunOnce] listing connections")
	}
	conns = uniqueTenants(conns)
	if len(conns) == 0 {
		log.Info().Msg("no connected tenants to sync")
		return nil, nil
	}

	results := make([]ledger.Result, len(conns))
	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for i, conn := range conns {
		wg.Add(1)
		sem <- struct{}{}

		go func(i int, conn *tenants.Connection) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = s.syncTenant(ctx, conn, s.mode)
		}(i, conn)
	}
	wg.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	log.Info().Int("tenants", len(conns)).Int("failed", failed).Dur("duration", time.Since(start)).
		Msg("sync run finished")
	return results, nil
}

// RunTenant syncs one tenant using the token of the user who connected it first.
func (s *Scheduler) RunTenant(ctx context.Context, tenantID string, mode Mode) (ledger.Result, error) {
	conn, err := s.conns.Get(ctx, tenantID)
	if err != nil {
		return ledger.Result{}, apperrors.Wrapf(err, "[scheduler RunTenant] tenant %s", tenantID)
	}
	return s.syncTenant(ctx, conn, mode), nil
}

func (s *Scheduler) syncTenant(ctx context.Context, conn *tenants.Connection, mode Mode) ledger.Result {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	src, err := s.factory.Source(ctx, conn.UserEmail, conn.TenantID)
	if err != nil {
		log.Err(err).Str("tenant_id", conn.TenantID).Str("user", conn.UserEmail).Msg("unable to build client")
		return ledger.Result{
			TenantID:    conn.TenantID,
			Status:      ledger.StatusError,
			Description: fmt.Sprintf("Unable to connect as %s: %v", conn.UserEmail, err),
			Err:         err,
		}
	}

	if mode == ModeBackfill {
		return s.engine.Backfill(ctx, src)
	}
	return s.engine.SyncOnce(ctx, src)
}

// uniqueTenants keeps the first connection per tenant. Connections arrive oldest first.
func uniqueTenants(conns []*tenants.Connection) []*tenants.Connection {
	seen := make(map[string]bool, len(conns))
	out := conns[:0:0]
	for _, c := range conns {
		if seen[c.TenantID] {
			continue
		}
		seen[c.TenantID] = true
		out = append(out, c)
	}
	return out
}

type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg(msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Err(err).Fields(keysAndValues).Msg(msg)
}
