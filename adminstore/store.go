// Package adminstore describes the authorization store: the system of record that
// decides whether an identity is an active administrator and tracks live session
// tokens. Backends live in the sub-packages.
package adminstore

import (
	"context"
	"time"

	apperrors "github.com/jrsteele09/go-admin-gate/internal/errors"
)

// ErrAdminNotFound is returned by LookupAdmin for unknown identities.
var ErrAdminNotFound = apperrors.ErrAdminNotFound

// Login attempt actions.
const (
	ActionLogin          = "login"
	ActionLogout         = "logout"
	ActionInvalidState   = "invalid_state"
	ActionUnauthorized   = "unauthorized_access"
	ActionProviderError  = "provider_error"
	ActionSessionExpired = "session_expired"
)

// Profile is the identity provider profile pushed to the store on every login.
type Profile struct {
	ProviderID string
	Username   string
	Avatar     string
	Email      string
}

// Admin is the store's view of an administrator.
type Admin struct {
	AdminID      string
	ProviderID   string
	Username     string
	Avatar       string
	IsActive     bool
	IsSuperAdmin bool
}

// NewSession registers a locally minted session token.
type NewSession struct {
	AdminID      string
	SessionToken string
	UserAgent    string
	IPAddress    string
	Duration     time.Duration
}

// Verification is the result of VerifySession.
type Verification struct {
	IsValid      bool
	AdminID      string
	ProviderID   string
	Username     string
	IsSuperAdmin bool
	ExpiresAt    time.Time
}

// LoginAttempt is an audit record. ProviderID may be empty when the identity is unknown.
type LoginAttempt struct {
	ProviderID   string
	Action       string
	Success      bool
	ErrorMessage string
	UserAgent    string
	IPAddress    string
}

type Store interface {
	UpsertAdminProfile(ctx context.Context, p Profile) error
	LookupAdmin(ctx context.Context, providerID string) (*Admin, error)
	CreateSession(ctx context.Context, s NewSession) error
	VerifySession(ctx context.Context, sessionToken string) (Verification, error)
	// RefreshSession extends a live session and returns its new expiry.
	RefreshSession(ctx context.Context, sessionToken string, duration time.Duration) (time.Time, error)
	RevokeSession(ctx context.Context, sessionToken string) error
	LogLoginAttempt(ctx context.Context, a LoginAttempt) error
}

// DurationHours rounds a session duration up to whole hours, the unit the store
// functions take.
func DurationHours(d time.Duration) int {
	h := int(d / time.Hour)
	if d%time.Hour != 0 {
		h++
	}
	if h < 1 {
		h = 1
	}
	return h
}
