package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jrsteele09/go-admin-gate/login"
	"github.com/jrsteele09/go-admin-gate/sessions"
	"github.com/rs/zerolog/log"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeJSON = "application/json"
)

// AdminView is the JSON shape of an authenticated session.
type AdminView struct {
	AdminID      string    `json:"adminId"`
	ProviderID   string    `json:"providerId"`
	Username     string    `json:"username"`
	Avatar       string    `json:"avatar,omitempty"`
	IsSuperAdmin bool      `json:"isSuperAdmin"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

func adminView(rec *sessions.Record) AdminView {
	return AdminView{
		AdminID:      rec.AdminID,
		ProviderID:   rec.ProviderID,
		Username:     rec.Username,
		Avatar:       rec.AvatarRef,
		IsSuperAdmin: rec.IsSuperAdmin,
		ExpiresAt:    rec.ExpiresAt,
	}
}

// ErrorResponse mirrors the OAuth error body.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("Failed to write JSON response")
	}
}

// writeLoginError answers with the user facing part of a login error only.
func writeLoginError(w http.ResponseWriter, err error) {
	code := http.StatusUnauthorized
	if login.KindOf(err) == login.NetworkError {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, ErrorResponse{
		Error:            login.KindOf(err).String(),
		ErrorDescription: login.UserMessage(err),
	})
}
