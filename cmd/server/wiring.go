package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jrsteele09/go-admin-gate/adminstore"
	"github.com/jrsteele09/go-admin-gate/adminstore/postgres"
	"github.com/jrsteele09/go-admin-gate/adminstore/storefake"
	"github.com/jrsteele09/go-admin-gate/adminstore/supabase"
	"github.com/jrsteele09/go-admin-gate/identity"
	"github.com/jrsteele09/go-admin-gate/internal/config"
	"github.com/jrsteele09/go-admin-gate/login"
	"github.com/jrsteele09/go-admin-gate/server"
	"github.com/jrsteele09/go-admin-gate/tabstore"
	"github.com/rs/zerolog/log"
)

type backends struct {
	admins  adminstore.Store
	tabs    tabstore.Store
	closers []func()
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func buildBackends(ctx context.Context, c config.Config) (*backends, error) {
	b := &backends{}

	switch c.GetAdminStore() {
	case config.BackendMemory:
		fake := storefake.NewFakeStore()
		for _, id := range c.GetSeedAdmins() {
			if id = strings.TrimSpace(id); id != "" {
				fake.AddAdmin(adminstore.Admin{ProviderID: id, IsActive: true})
			}
		}
		log.Warn().Int("admins", len(c.GetSeedAdmins())).Msg("using the in-memory admin store, sessions are lost on restart")
		b.admins = fake
	case config.BackendPostgres:
		pg, err := postgres.New(ctx, c.GetDatabaseURL())
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, pg.Close)
		b.admins = pg
	case config.BackendSupabase:
		sb, err := supabase.New(c.GetSupabaseURL(), c.GetSupabaseKey())
		if err != nil {
			return nil, err
		}
		b.admins = sb
	default:
		return nil, fmt.Errorf("[buildBackends] unknown ADMIN_STORE %q", c.GetAdminStore())
	}

	switch c.GetTabStore() {
	case config.BackendMemory:
		b.tabs = tabstore.NewInMemoryRepo(c.GetTabTTL())
	case config.BackendRedis:
		rdb, err := tabstore.NewRedisRepo(ctx, tabstore.RedisOptions{
			Addr:     c.GetRedisAddr(),
			Password: c.GetRedisPassword(),
			DB:       c.GetRedisDB(),
			TTL:      c.GetTabTTL(),
		})
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = rdb.Close() })
		b.tabs = rdb
	default:
		b.Close()
		return nil, fmt.Errorf("[buildBackends] unknown TAB_STORE %q", c.GetTabStore())
	}

	return b, nil
}

func buildProvider(ctx context.Context, c config.OAuthConfig) (identity.Provider, error) {
	switch c.GetProvider() {
	case config.ProviderDiscord:
		return identity.NewDiscord(""), nil
	case config.ProviderOIDC:
		p, err := identity.NewOIDC(ctx, c.GetIssuerURL())
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("[buildProvider] unknown OAUTH_PROVIDER %q", c.GetProvider())
	}
}

func flowOptions(c config.Config) login.Options {
	redirect := c.GetRedirectURL()
	if redirect == "" {
		redirect = c.GetBaseURL() + server.RouteCallback
	}
	pkce := c.GetPKCEEnabled()
	if !pkce && c.GetClientSecret() == "" {
		log.Warn().Msg("OAUTH_PKCE=false needs OAUTH_CLIENT_SECRET, keeping PKCE on")
		pkce = true
	}
	return login.Options{
		Client: login.StartParams{
			ClientID:    c.GetClientID(),
			RedirectURI: redirect,
			Scopes:      c.GetScopes(),
			PKCE:        pkce,
		},
		ClientSecret:    c.GetClientSecret(),
		Timeout:         c.GetExchangeTimeout(),
		SessionDuration: c.GetSessionDuration(),
		GraceWindow:     c.GetGraceWindow(),
		KeySalt:         c.GetSessionKeySalt(),
		KDFIterations:   c.GetKDFIterations(),
	}
}
