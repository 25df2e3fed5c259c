package config

import "time"

const (
	ProviderDiscord = "discord"
	ProviderOIDC    = "oidc"
)

type OAuthConfig interface {
	GetProvider() string
	GetClientID() string
	GetClientSecret() string
	GetRedirectURL() string
	GetScopes() []string
	GetPKCEEnabled() bool
	GetIssuerURL() string
	GetExchangeTimeout() time.Duration
	GetAuthRateLimitPerMinute() int
}

type OAuth struct {
	Provider        string        `yaml:"provider" env:"OAUTH_PROVIDER" env-default:"discord"`
	ClientID        string        `yaml:"client_id" env:"OAUTH_CLIENT_ID"`
	ClientSecret    string        `yaml:"client_secret" env:"OAUTH_CLIENT_SECRET"`
	RedirectURL     string        `yaml:"redirect_url" env:"OAUTH_REDIRECT_URL"`
	Scopes          []string      `yaml:"scopes" env:"OAUTH_SCOPES" env-separator:" " env-default:"identify email"`
	PKCE            bool          `yaml:"pkce" env:"OAUTH_PKCE" env-default:"true"`
	IssuerURL       string        `yaml:"issuer_url" env:"OIDC_ISSUER_URL"`
	ExchangeTimeout time.Duration `yaml:"exchange_timeout" env:"OAUTH_EXCHANGE_TIMEOUT" env-default:"10s"`
	AuthPerMinute   int           `yaml:"auth_rate_limit" env:"RATELIMIT_AUTH_PER_MINUTE" env-default:"10"`
}

var _ OAuthConfig = OAuth{}

func (o OAuth) GetProvider() string {
	return o.Provider
}

// GetClientID may be empty; the login flow reports that as a configuration error
// rather than failing at startup.
func (o OAuth) GetClientID() string {
	return o.ClientID
}

func (o OAuth) GetClientSecret() string {
	return o.ClientSecret
}

// GetRedirectURL returns the configured redirect URI. Empty means "derive from BASE_URL".
func (o OAuth) GetRedirectURL() string {
	return o.RedirectURL
}

func (o OAuth) GetScopes() []string {
	return o.Scopes
}

func (o OAuth) GetPKCEEnabled() bool {
	return o.PKCE
}

func (o OAuth) GetIssuerURL() string {
	return o.IssuerURL
}

func (o OAuth) GetExchangeTimeout() time.Duration {
	if o.ExchangeTimeout <= 0 {
		return 10 * time.Second
	}
	return o.ExchangeTimeout
}

func (o OAuth) GetAuthRateLimitPerMinute() int {
	return o.AuthPerMinute
}
