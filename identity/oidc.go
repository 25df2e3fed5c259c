package identity

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	apperrors "github.com/jrsteele09/go-admin-gate/internal/errors"
	"golang.org/x/oauth2"
)

// OIDC is any OpenID Connect provider, configured from its discovery document.
type OIDC struct {
	provider *oidc.Provider
}

var _ Provider = (*OIDC)(nil)

// NewOIDC fetches the discovery document of issuerURL.
func NewOIDC(ctx context.Context, issuerURL string) (*OIDC, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("[identity NewOIDC] failed to create OIDC provider: %w", err)
	}
	return &OIDC{provider: provider}, nil
}

func (o *OIDC) Name() string {
	return "oidc"
}

func (o *OIDC) Endpoint() oauth2.Endpoint {
	return o.provider.Endpoint()
}

func (o *OIDC) UserInfo(ctx context.Context, src oauth2.TokenSource) (Profile, error) {
	info, err := o.provider.UserInfo(ctx, src)
	if err != nil {
		return Profile{}, apperrors.Wrapf(apperrors.ErrUserInfo, "[identity oidc UserInfo] %v", err)
	}

	var claims struct {
		PreferredUsername string `json:"preferred_username"`
		Name              string `json:"name"`
		Picture           string `json:"picture"`
	}
	if err := info.Claims(&claims); err != nil {
		return Profile{}, apperrors.Wrapf(apperrors.ErrUserInfo, "[identity oidc UserInfo] claims: %v", err)
	}

	username := claims.PreferredUsername
	if username == "" {
		username = claims.Name
	}
	return Profile{
		ID:       info.Subject,
		Username: username,
		Avatar:   claims.Picture,
		Email:    info.Email,
	}, nil
}
