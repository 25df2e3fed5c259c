package server

import (
	"net/http"

	"github.com/jrsteele09/go-admin-gate/login"
	"github.com/rs/zerolog/log"
)

// SessionHandler reports the tab's revalidated session (GET /auth/session). The
// dashboard front-end polls it every revalidation interval.
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, _, err := s.revalidate(r)
		if err != nil {
			writeLoginError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, adminView(rec))
	}
}

// MeHandler returns the admin behind the session (GET /api/me). Behind RequireSession.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := SessionFromContext(r.Context())
		if !ok {
			writeLoginError(w, &login.Error{Kind: login.DecryptError, Message: login.MsgNotAuthenticated})
			return
		}
		writeJSON(w, http.StatusOK, adminView(rec))
	}
}

// LogoutHandler destroys the tab's session (POST /auth/logout).
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tabID, err := s.tabs.TabID(r)
		if err != nil {
			http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
			return
		}
		if _, err := s.flow.Logout(r.Context(), tabID, s.fingerprint(r), login.ReasonUser); err != nil {
			log.Err(err).Str("tab", tabID).Msg("logout failed")
		}
		s.monitor.Untrack(tabID)
		http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
	}
}

// HealthHandler reports liveness (GET /healthz).
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
