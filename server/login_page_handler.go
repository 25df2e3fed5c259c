package server

import (
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-admin-gate/login"
	"github.com/rs/zerolog/log"
)

// LoginPageData contains data for rendering the login page
type LoginPageData struct {
	AppName    string
	Provider   string
	LoginURL   string
	Error      string
	Configured bool
}

// FingerprintPageData contains data for the page that reports the screen size
// before a login starts
type FingerprintPageData struct {
	AppName  string
	Message  string
	RetryURL string
}

// fingerprintRetryParam marks a /auth/login request made by the fingerprint page.
const fingerprintRetryParam = "fp"

const msgFingerprintRequired = "Sign-in needs JavaScript and cookies to be enabled."

// IndexPageData contains data for rendering the signed-in landing page
type IndexPageData struct {
	AppName          string
	Admin            AdminView
	LogoutURL        string
	SessionURL       string
	LoginURL         string
	RevalidateMillis int64
}

// LoginPageHandler displays the login page (GET /login)
func (s *Server) LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.renderLogin(w, http.StatusOK, r.URL.Query().Get("error"))
	}
}

func (s *Server) renderLogin(w http.ResponseWriter, status int, errMsg string) {
	data := LoginPageData{
		AppName:    s.appName,
		Provider:   s.config.GetProvider(),
		LoginURL:   RouteAuthLogin,
		Error:      errMsg,
		Configured: s.flow.Client().ClientID != "",
	}
	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	if err := s.loginTmpl.Execute(w, data); err != nil {
		log.Err(err).Msg("Failed to render login template")
	}
}

func (s *Server) renderFingerprint(w http.ResponseWriter) {
	data := FingerprintPageData{
		AppName:  s.appName,
		Message:  msgFingerprintRequired,
		RetryURL: RouteAuthLogin + "?" + url.Values{fingerprintRetryParam: {"1"}}.Encode(),
	}
	w.Header().Set("Content-Type", contentTypeHTML)
	if err := s.fingerprintTmpl.Execute(w, data); err != nil {
		log.Err(err).Msg("Failed to render fingerprint template")
	}
}

// StartLoginHandler begins the provider handshake for the requesting tab
// (GET /auth/login). A missing client id renders the login page instead of redirecting.
// The session key covers the screen size, so a browser that has not reported it yet
// gets a page that sets the cookie and comes back.
func (s *Server) StartLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.fingerprint(r).HasScreen() {
			if r.URL.Query().Has(fingerprintRetryParam) {
				s.renderLogin(w, http.StatusBadRequest, msgFingerprintRequired)
				return
			}
			s.renderFingerprint(w)
			return
		}

		tabID, err := s.tabs.Ensure(w, r)
		if err != nil {
			log.Err(err).Msg("Failed to issue tab cookie")
			http.Error(w, "Failed to start login", http.StatusInternalServerError)
			return
		}

		authURL, err := s.flow.StartAuth(r.Context(), tabID, s.flow.Client())
		if err != nil {
			if login.KindOf(err) == login.ConfigError {
				log.Error().Err(err).Msg("login attempted without OAuth client configuration")
				s.renderLogin(w, http.StatusServiceUnavailable, login.UserMessage(err))
				return
			}
			log.Err(err).Str("tab", tabID).Msg("Failed to start login")
			redirectToLogin(w, r, err)
			return
		}
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// IndexHandler is the signed-in landing page (GET /)
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := SessionFromContext(r.Context())
		if !ok {
			redirectToLogin(w, r, nil)
			return
		}
		data := IndexPageData{
			AppName:          s.appName,
			Admin:            adminView(rec),
			LogoutURL:        RouteAuthLogout,
			SessionURL:       RouteAuthSession,
			LoginURL:         RouteLogin,
			RevalidateMillis: s.monitor.Interval().Milliseconds(),
		}
		w.Header().Set("Content-Type", contentTypeHTML)
		if err := s.indexTmpl.Execute(w, data); err != nil {
			log.Err(err).Msg("Failed to render index template")
		}
	}
}
