package server

import (
	"context"
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-admin-gate/login"
	"github.com/jrsteele09/go-admin-gate/sessions"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeySession stores the revalidated *sessions.Record
	ContextKeySession ContextKey = "admin_session"
	// ContextKeyTabID stores the tab ID from the tab cookie
	ContextKeyTabID ContextKey = "tab_id"
)

// SessionFromContext returns the session injected by RequireSession.
func SessionFromContext(ctx context.Context) (*sessions.Record, bool) {
	rec, ok := ctx.Value(ContextKeySession).(*sessions.Record)
	return rec, ok
}

// RequireSession revalidates the tab's session on every request. API routes get a
// 401 JSON body, HTML routes are redirected to the login page.
func (s *Server) RequireSession(api bool) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			rec, tabID, err := s.revalidate(r)
			if err != nil {
				if api {
					writeLoginError(w, err)
					return
				}
				redirectToLogin(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeySession, rec)
			ctx = context.WithValue(ctx, ContextKeyTabID, tabID)
			next(w, r.WithContext(ctx))
		}
	}
}

// revalidate restores the session of the requesting tab and keeps it under
// periodic revalidation while it stays valid.
func (s *Server) revalidate(r *http.Request) (*sessions.Record, string, error) {
	tabID, err := s.tabs.TabID(r)
	if err != nil {
		return nil, "", &login.Error{Kind: login.DecryptError, Message: login.MsgNotAuthenticated, Err: err}
	}
	fp := s.fingerprint(r)
	rec, err := s.flow.Revalidate(r.Context(), tabID, fp)
	if err != nil {
		s.monitor.Untrack(tabID)
		return nil, tabID, err
	}
	s.monitor.Track(tabID, fp)
	return rec, tabID, nil
}

// redirectToLogin sends the browser to the login page, carrying the error message
// unless the tab simply has no session.
func redirectToLogin(w http.ResponseWriter, r *http.Request, err error) {
	target := RouteLogin
	if msg := login.UserMessage(err); err != nil && msg != login.MsgNotAuthenticated {
		target += "?error=" + url.QueryEscape(msg)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
