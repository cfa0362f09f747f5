package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-ledger-sync/internal/config"
	"github.com/jrsteele09/go-ledger-sync/ledger"
	"github.com/jrsteele09/go-ledger-sync/scheduler"
	"github.com/jrsteele09/go-ledger-sync/server/authflowrepo"
	"github.com/jrsteele09/go-ledger-sync/tenants"
	"github.com/jrsteele09/go-ledger-sync/token"
	"github.com/jrsteele09/go-ledger-sync/xero"
	"github.com/rs/zerolog/log"
)

type Authorizer interface {
	AuthCodeURL(state, verifier string) string
	Exchange(ctx context.Context, authResponseURL, state, verifier string) (*xero.Authorization, error)
}

type TokenStore interface {
	Put(ctx context.Context, user string, tok *token.Token) error
}

// ProviderFactory builds a user scoped API client from the user's stored token.
type ProviderFactory interface {
	Provider(ctx context.Context, user string) (tenants.Provider, error)
}

type Syncer interface {
	RunTenant(ctx context.Context, tenantID string, mode scheduler.Mode) (ledger.Result, error)
}

// Services are the collaborators behind the HTTP routes.
type Services struct {
	Authorizer Authorizer
	Tokens     TokenStore
	Tenants    *tenants.Service
	Providers  ProviderFactory
	Syncer     Syncer
	Metrics    http.Handler
}

type Server struct {
	env       string // Environment (e.g., "DEV", "PROD")
	mux       *http.ServeMux
	routes    []string
	config    config.Config
	services  Services
	authState authflowrepo.Repo
	nowFunc   func() time.Time
}

func New(config config.Config, services Services, authStateRepo authflowrepo.Repo) *Server {
	s := &Server{
		mux:       http.NewServeMux(),
		config:    config,
		services:  services,
		authState: authStateRepo,
		nowFunc:   time.Now,
	}
	s.env = config.GetEnv()

	s.initRoutes()
	s.logRoutes()

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			log.Debug().Str("method", parts[0]).Str("path", parts[1]).Msg("route")
		} else {
			log.Debug().Str("path", parts[0]).Msg("route")
		}
	}
}
