package server

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-ledger-sync/internal/errors"
	"github.com/jrsteele09/go-ledger-sync/server/authflowrepo"
	"github.com/jrsteele09/go-ledger-sync/tenants"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

type callbackResponse struct {
	User    string                `json:"user"`
	Tenants []*tenants.Connection `json:"tenants"`
}

// ConnectHandler starts the authorization code flow with a fresh state and PKCE verifier.
func (s *Server) ConnectHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := uuid.NewString()
		verifier := oauth2.GenerateVerifier()

		flow := &authflowrepo.AuthFlowState{
			CodeVerifier: verifier,
			ReturnURL:    safeReturnURL(r.URL.Query().Get("return_url")),
			CreatedAt:    s.nowFunc(),
		}
		if err := s.authState.Upsert(r.Context(), state, flow); err != nil {
			log.Err(err).Msg("unable to store authorization state")
			writeJSONError(w, "server_error", "unable to start authorization", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, s.services.Authorizer.AuthCodeURL(state, verifier), http.StatusFound)
	}
}

func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// r.Form covers both the query string and form_post bodies
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, "invalid_request", "malformed callback", http.StatusBadRequest)
			return
		}
		state := r.Form.Get("state")
		if state == "" {
			writeJSONError(w, "invalid_request", "missing state parameter", http.StatusBadRequest)
			return
		}

		flow, err := s.authState.Get(r.Context(), state)
		if err != nil || flow == nil {
			writeJSONError(w, "invalid_state", "unknown or used state parameter", http.StatusBadRequest)
			return
		}

		// Clean up state after use
		if err := s.authState.Delete(r.Context(), state); err != nil {
			log.Err(err).Msg("unable to delete authorization state")
		}
		if flow.Expired(s.nowFunc(), s.config.GetAuthStateTTL()) {
			writeJSONError(w, "invalid_state", "authorization took too long, start again", http.StatusBadRequest)
			return
		}

		authResponseURL := s.config.GetRedirectURL() + "?" + r.Form.Encode()
		authz, err := s.services.Authorizer.Exchange(r.Context(), authResponseURL, state, flow.CodeVerifier)
		if err != nil {
			log.Err(err).Msg("authorization failed")
			code, status := exchangeFailure(err)
			writeJSONError(w, code, err.Error(), status)
			return
		}

		logger := log.With().Str("user", authz.User).Logger()
		if err := s.services.Tokens.Put(r.Context(), authz.User, authz.Token); err != nil {
			logger.Err(err).Msg("unable to store token")
			writeJSONError(w, "server_error", "unable to store credentials", http.StatusInternalServerError)
			return
		}

		provider, err := s.services.Providers.Provider(r.Context(), authz.User)
		if err != nil {
			logger.Err(err).Msg("unable to build api client")
			writeJSONError(w, "server_error", "unable to load credentials", http.StatusInternalServerError)
			return
		}
		conns, err := s.services.Tenants.Refresh(r.Context(), authz.User, provider)
		if err != nil {
			logger.Err(err).Msg("unable to refresh tenant connections")
			writeJSONError(w, "upstream_error", "unable to list connected organisations", http.StatusBadGateway)
			return
		}
		logger.Info().Int("tenants", len(conns)).Msg("user authorised")

		if flow.ReturnURL != "" {
			http.Redirect(w, r, flow.ReturnURL, http.StatusSeeOther)
			return
		}
		writeJSON(w, callbackResponse{User: authz.User, Tenants: conns}, http.StatusOK)
	}
}

func exchangeFailure(err error) (string, int) {
	switch {
	case apperrors.Is(err, apperrors.ErrStateMismatch):
		return "invalid_state", http.StatusBadRequest
	case apperrors.Is(err, apperrors.ErrAuthFailure):
		return "access_denied", http.StatusBadRequest
	case apperrors.Is(err, apperrors.ErrProtocol):
		return "invalid_request", http.StatusBadRequest
	}
	return "server_error", http.StatusBadGateway
}

// safeReturnURL only allows same-site relative paths.
func safeReturnURL(u string) string {
	if !strings.HasPrefix(u, "/") || strings.HasPrefix(u, "//") || strings.HasPrefix(u, "/\\") {
		return ""
	}
	return u
}
