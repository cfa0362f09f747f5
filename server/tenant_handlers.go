package server

import (
	"net/http"

	apperrors "github.com/jrsteele09/go-ledger-sync/internal/errors"
	"github.com/jrsteele09/go-ledger-sync/tenants"
	"github.com/rs/zerolog/log"
)

func (s *Server) ListTenantsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := r.PathValue("email")
		conns, err := s.services.Tenants.ListByUser(r.Context(), email)
		if err != nil {
			log.Err(err).Str("user", email).Msg("unable to list tenants")
			writeJSONError(w, "server_error", "unable to list tenants", http.StatusInternalServerError)
			return
		}
		if conns == nil {
			conns = []*tenants.Connection{}
		}
		writeJSON(w, conns, http.StatusOK)
	}
}

// DisconnectTenantHandler revokes the user's connection at the provider and forgets it.
func (s *Server) DisconnectTenantHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := r.PathValue("email")
		tenantID := r.PathValue("tenantID")

		provider, err := s.services.Providers.Provider(r.Context(), email)
		if err != nil {
			if apperrors.Is(err, apperrors.ErrNotAuthorised) {
				writeJSONError(w, "not_found", "user has not authorised the application", http.StatusNotFound)
				return
			}
			log.Err(err).Str("user", email).Msg("unable to build api client")
			writeJSONError(w, "server_error", "unable to load credentials", http.StatusInternalServerError)
			return
		}
		if err := s.services.Tenants.Disconnect(r.Context(), email, tenantID, provider); err != nil {
			log.Err(err).Str("user", email).Str("tenant_id", tenantID).Msg("unable to disconnect tenant")
			writeJSONError(w, "upstream_error", "unable to disconnect tenant", http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
