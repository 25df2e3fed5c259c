package login

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/go-admin-gate/adminstore"
	"github.com/jrsteele09/go-admin-gate/identity"
	apperrors "github.com/jrsteele09/go-admin-gate/internal/errors"
	"github.com/jrsteele09/go-admin-gate/sessions"
	"github.com/jrsteele09/go-admin-gate/tabstore"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// StartParams describes the OAuth client a login is started for.
type StartParams struct {
	ClientID    string
	RedirectURI string
	Scopes      []string
	PKCE        bool
}

// Options configures a Flow. Zero values take the defaults noted per field.
type Options struct {
	Client       StartParams
	ClientSecret string

	// Timeout bounds each call to the provider and the authorization store (10s).
	Timeout time.Duration
	// SessionDuration is the lifetime of a minted session (24h).
	SessionDuration time.Duration
	// GraceWindow is how close to expiry revalidation starts refreshing (5m).
	GraceWindow time.Duration

	KeySalt       string
	KDFIterations int

	Now func() time.Time
}

// LogoutReason says why a session was destroyed.
type LogoutReason string

const (
	ReasonUser          LogoutReason = "user"
	ReasonExpired       LogoutReason = "expired"
	ReasonInvalid       LogoutReason = "invalid"
	ReasonUnreadable    LogoutReason = "unreadable"
	ReasonRefreshFailed LogoutReason = "refresh_failed"
	ReasonStoreError    LogoutReason = "store_error"
	ReasonReplaced      LogoutReason = "replaced"
)

// LogoutHook observes logouts. It runs once per destroyed session.
type LogoutHook func(tabID string, reason LogoutReason)

// Flow is the admin login handshake plus the lifecycle of the sealed session that
// results from it. All per-browser state lives in the tab store; a Flow is safe for
// concurrent use.
type Flow struct {
	provider identity.Provider
	store    adminstore.Store
	tabs     tabstore.Store
	opts     Options

	hooksMu sync.RWMutex
	hooks   []LogoutHook

	audits sync.WaitGroup
}

// New builds a Flow.
func New(provider identity.Provider, store adminstore.Store, tabs tabstore.Store, opts Options) (*Flow, error) {
	if provider == nil {
		return nil, errors.New("[login New] identity provider is required")
	}
	if store == nil {
		return nil, errors.New("[login New] authorization store is required")
	}
	if tabs == nil {
		return nil, errors.New("[login New] tab store is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.SessionDuration <= 0 {
		opts.SessionDuration = sessions.DefaultDuration
	}
	if opts.GraceWindow <= 0 {
		opts.GraceWindow = 5 * time.Minute
	}
	if opts.KDFIterations <= 0 {
		opts.KDFIterations = sessions.DefaultIterations
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Flow{
		provider: provider,
		store:    store,
		tabs:     tabs,
		opts:     opts,
	}, nil
}

// Client returns the configured OAuth client parameters.
func (f *Flow) Client() StartParams {
	return f.opts.Client
}

// OnLogout registers a hook called after a session is destroyed.
func (f *Flow) OnLogout(hook LogoutHook) {
	f.hooksMu.Lock()
	defer f.hooksMu.Unlock()
	f.hooks = append(f.hooks, hook)
}

// Wait blocks until pending login-attempt writes have finished.
func (f *Flow) Wait() {
	f.audits.Wait()
}

// StartAuth prepares a login attempt for the tab and returns the provider
// authorization URL the browser must be sent to. Without a client id nothing is
// persisted and a ConfigError is returned instead of a URL.
func (f *Flow) StartAuth(ctx context.Context, tabID string, p StartParams) (string, error) {
	if strings.TrimSpace(p.ClientID) == "" {
		return "", newError(ConfigError, MsgNotConfigured, apperrors.ErrMissingClientID)
	}

	req, err := NewAuthRequest(p.PKCE)
	if err != nil {
		return "", newError(NetworkError, MsgStoreUnavailable, err)
	}

	if err := f.tabs.Set(ctx, tabID, tabstore.KeyOAuthState, req.State); err != nil {
		return "", newError(NetworkError, MsgStoreUnavailable, err)
	}
	if p.PKCE {
		err = f.tabs.Set(ctx, tabID, tabstore.KeyPKCEVerifier, req.CodeVerifier)
	} else {
		err = f.tabs.Delete(ctx, tabID, tabstore.KeyPKCEVerifier)
	}
	if err != nil {
		return "", newError(NetworkError, MsgStoreUnavailable, err)
	}

	var opts []oauth2.AuthCodeOption
	if p.PKCE {
		opts = append(opts,
			oauth2.SetAuthURLParam("code_challenge", req.CodeChallenge),
			oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		)
	}
	authURL := f.oauthConfig(p).AuthCodeURL(req.State, opts...)

	log.Debug().Str("tab", tabID).Str("provider", f.provider.Name()).Bool("pkce", p.PKCE).Msg("login started")
	return authURL, nil
}

func (f *Flow) oauthConfig(p StartParams) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.ClientID,
		ClientSecret: f.opts.ClientSecret,
		Endpoint:     f.provider.Endpoint(),
		RedirectURL:  p.RedirectURI,
		Scopes:       p.Scopes,
	}
}

func (f *Flow) key(fp sessions.Fingerprint) sessions.Key {
	return sessions.DeriveKey(fp, f.opts.KeySalt, f.opts.KDFIterations)
}

func (f *Flow) now() time.Time {
	return f.opts.Now().UTC()
}

func (f *Flow) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, f.opts.Timeout)
}

// storeSealed seals rec for fp and writes it to the tab.
func (f *Flow) storeSealed(ctx context.Context, tabID string, rec sessions.Record, fp sessions.Fingerprint) error {
	sealed, err := sessions.Seal(rec, f.key(fp))
	if err != nil {
		return fmt.Errorf("[login] seal session: %w", err)
	}
	if err := f.tabs.Set(ctx, tabID, tabstore.KeyAdminSession, sealed.Encode()); err != nil {
		return fmt.Errorf("[login] store session: %w", err)
	}
	return nil
}

// audit records a login attempt without blocking the caller. Failures are logged
// and dropped.
func (f *Flow) audit(a adminstore.LoginAttempt) {
	f.audits.Add(1)
	go func() {
		defer f.audits.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("action", a.Action).Msg("login attempt logging panicked")
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), f.opts.Timeout)
		defer cancel()
		if err := f.store.LogLoginAttempt(ctx, a); err != nil {
			log.Warn().Err(err).Str("action", a.Action).Msg("login attempt not recorded")
		}
	}()
}

func securityEvent(tabID, reason, detail string) {
	log.Warn().Str("event", "security").Str("reason", reason).Str("tab", tabID).Msg(detail)
}
