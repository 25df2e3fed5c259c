package server

import (
	"net/http"

	"github.com/jrsteele09/go-admin-gate/login"
	"github.com/rs/zerolog/log"
)

// CallbackHandler completes the provider handshake (GET /auth/callback).
//
// Every terminal state answers with a 303 to a URL without the callback
// parameters, so reloading the resulting page cannot replay the code.
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tabID, err := s.tabs.Ensure(w, r)
		if err != nil {
			log.Err(err).Msg("Failed to issue tab cookie")
			http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
			return
		}

		params := login.FromValues(r.URL.Query())
		fp := s.fingerprint(r)

		rec, err := s.flow.HandleCallback(r.Context(), tabID, params, fp)
		outcome := login.OutcomeOf(err)
		if err != nil {
			log.Info().Err(err).Str("tab", tabID).Str("outcome", outcome.String()).Msg("login callback failed")
			redirectToLogin(w, r, err)
			return
		}

		s.monitor.Track(tabID, fp)
		log.Debug().Str("tab", tabID).Str("admin", rec.AdminID).Str("outcome", outcome.String()).Msg("login callback complete")
		http.Redirect(w, r, RouteHome, http.StatusSeeOther)
	}
}
