package server

import (
	"net/http"

	apperrors "github.com/jrsteele09/go-ledger-sync/internal/errors"
	"github.com/jrsteele09/go-ledger-sync/ledger"
	"github.com/jrsteele09/go-ledger-sync/scheduler"
	"github.com/rs/zerolog/log"
)

type syncResponse struct {
	ledger.Result
	Error string `json:"error,omitempty"`
}

// SyncTenantHandler runs one sync attempt for a tenant on demand. ?mode=full pages until
// caught up instead of fetching a single page.
func (s *Server) SyncTenantHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := r.PathValue("tenantID")
		mode := scheduler.ModeIncremental
		if r.URL.Query().Get("mode") == "full" {
			mode = scheduler.ModeBackfill
		}

		res, err := s.services.Syncer.RunTenant(r.Context(), tenantID, mode)
		if err != nil {
			if apperrors.Is(err, apperrors.ErrNotFound) {
				writeJSONError(w, "not_found", "tenant is not connected", http.StatusNotFound)
				return
			}
			log.Err(err).Str("tenant_id", tenantID).Msg("unable to start sync")
			writeJSONError(w, "server_error", "unable to start sync", http.StatusInternalServerError)
			return
		}

		resp := syncResponse{Result: res}
		status := http.StatusOK
		if res.Err != nil {
			resp.Error = res.Err.Error()
			if apperrors.Is(res.Err, apperrors.ErrSyncInProgress) {
				status = http.StatusConflict
			}
		}
		writeJSON(w, resp, status)
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	}
}
