// Package app wires the configured components together for the CLI commands.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jrsteele09/go-ledger-sync/internal/config"
	"github.com/jrsteele09/go-ledger-sync/internal/database"
	"github.com/jrsteele09/go-ledger-sync/internal/metrics"
	"github.com/jrsteele09/go-ledger-sync/ledger"
	ledgerpg "github.com/jrsteele09/go-ledger-sync/ledger/pgrepo"
	"github.com/jrsteele09/go-ledger-sync/ratelimit"
	"github.com/jrsteele09/go-ledger-sync/scheduler"
	"github.com/jrsteele09/go-ledger-sync/server"
	"github.com/jrsteele09/go-ledger-sync/server/authflowrepo"
	"github.com/jrsteele09/go-ledger-sync/sessions"
	"github.com/jrsteele09/go-ledger-sync/tenants"
	tenantpg "github.com/jrsteele09/go-ledger-sync/tenants/pgrepo"
	"github.com/jrsteele09/go-ledger-sync/token"
	tokenpg "github.com/jrsteele09/go-ledger-sync/token/pgrepo"
	"github.com/jrsteele09/go-ledger-sync/token/rediscache"
	"github.com/jrsteele09/go-ledger-sync/xero"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type App struct {
	Config     config.Config
	DB         *sql.DB
	Redis      *redis.Client // nil without REDIS_URL
	Registry   *prometheus.Registry
	Tokens     *token.Store
	Authorizer *xero.Authorizer
	Tenants    *tenants.Service
	Engine     *ledger.Engine
	Clients    *scheduler.ClientFactory
	Scheduler  *scheduler.Scheduler
	AuthState  authflowrepo.Repo
}

// New opens the database (and redis when configured) and builds every component.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	key, err := token.ParseKey(cfg.GetEncryptionKey())
	if err != nil {
		return nil, fmt.Errorf("[app New] TOKEN_ENCRYPTION_KEY: %w", err)
	}
	cipher, err := token.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("[app New] token cipher: %w", err)
	}

	db, err := database.Open(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("[app New] %w", err)
	}
	a := &App{Config: cfg, DB: db}

	if url := cfg.GetRedisURL(); url != "" {
		opts, err := redis.ParseURL(url)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("[app New] REDIS_URL: %w", err)
		}
		a.Redis = redis.NewClient(opts)
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("[app New] redis ping: %w", err)
		}
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewCollector(a.Registry)

	storeOpts := []token.StoreOption{}
	if cfg.GetTokenCacheEnabled() {
		if a.Redis != nil {
			storeOpts = append(storeOpts, token.WithCache(rediscache.New(a.Redis)))
		} else {
			storeOpts = append(storeOpts, token.WithCache(token.NewMemoryCache()))
		}
	}
	a.Tokens = token.NewStore(tokenpg.NewPostgresRepository(db), cipher, storeOpts...)

	a.Authorizer = xero.NewAuthorizer(cfg.GetClientID(), cfg.GetClientSecret(), cfg.GetRedirectURL(), cfg.GetScopes())
	a.Tenants = tenants.NewService(tenantpg.NewPostgresRepository(db))
	a.Engine = ledger.NewEngine(ledgerpg.NewPostgresRepository(db), ledger.WithMetrics(recorder))

	retrier := ratelimit.NewRetrier(ratelimit.WithMetrics(recorder))
	a.Clients = scheduler.NewClientFactory(a.Tokens, a.Authorizer,
		[]sessions.Option{sessions.WithRetrier(retrier), sessions.WithMetrics(recorder)},
		[]xero.ClientOption{xero.WithPacer(ratelimit.NewPacer(cfg.GetRequestsPerMinute()))},
	)
	a.Scheduler = scheduler.New(a.Tenants, a.Clients, a.Engine,
		scheduler.WithConcurrency(cfg.GetSyncConcurrency()),
		scheduler.WithTimeout(cfg.GetSyncTimeout()),
		scheduler.WithMode(scheduler.Mode(cfg.GetSyncMode())),
	)

	if a.Redis != nil {
		a.AuthState = authflowrepo.NewRedisRepo(a.Redis, cfg.GetAuthStateTTL())
	} else {
		a.AuthState = authflowrepo.NewInMemoryRepo()
	}
	return a, nil
}

// Migrate applies the embedded schema migrations.
func (a *App) Migrate(ctx context.Context) error {
	return database.Migrate(ctx, a.DB)
}

func (a *App) Server() *server.Server {
	return server.New(a.Config, server.Services{
		Authorizer: a.Authorizer,
		Tokens:     a.Tokens,
		Tenants:    a.Tenants,
		Providers:  a.Clients,
		Syncer:     a.Scheduler,
		Metrics:    metrics.Handler(a.Registry),
	}, a.AuthState)
}

func (a *App) Close() error {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			log.Err(err).Msg("closing redis")
		}
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
