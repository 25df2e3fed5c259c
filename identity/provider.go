// Package identity wraps the OAuth2 identity providers an administrator can sign in with.
package identity

import (
	"context"

	"golang.org/x/oauth2"
)

// Profile is the caller's identity as reported by the provider's user-info endpoint.
type Profile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	Email    string `json:"email"`
}

// Provider supplies the authorization/token endpoints and resolves a token to a profile.
type Provider interface {
	Name() string
	Endpoint() oauth2.Endpoint
	UserInfo(ctx context.Context, src oauth2.TokenSource) (Profile, error)
}
