package login

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/jrsteele09/go-admin-gate/adminstore"
	apperrors "github.com/jrsteele09/go-admin-gate/internal/errors"
	"github.com/jrsteele09/go-admin-gate/sessions"
	"github.com/jrsteele09/go-admin-gate/tabstore"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// HandleCallback completes a login attempt from the provider's redirect parameters.
//
// Steps run strictly in order: provider error, state check, code exchange, profile
// fetch, admin lookup, session registration, sealing. The persisted state and
// verifier are consumed before anything else, so every terminal state clears them
// and a replayed callback fails the state check. Use OutcomeOf on the returned error
// to get the terminal state.
func (f *Flow) HandleCallback(ctx context.Context, tabID string, p CallbackParams, fp sessions.Fingerprint) (*sessions.Record, error) {
	savedState := f.take(ctx, tabID, tabstore.KeyOAuthState)
	verifier := f.take(ctx, tabID, tabstore.KeyPKCEVerifier)

	if p.Error != "" {
		msg := p.ErrorDescription
		if msg == "" {
			msg = p.Error
		}
		f.audit(adminstore.LoginAttempt{Action: adminstore.ActionProviderError, ErrorMessage: msg, UserAgent: fp.UserAgent, IPAddress: fp.IPAddress})
		return nil, newError(ProtocolError, msg, apperrors.Wrapf(apperrors.ErrProviderDenied, "%s", p.Error))
	}

	if p.State == "" || savedState == "" || subtle.ConstantTimeCompare([]byte(p.State), []byte(savedState)) != 1 {
		securityEvent(tabID, adminstore.ActionInvalidState, "login callback state mismatch, possible cross-site request forgery")
		f.audit(adminstore.LoginAttempt{Action: adminstore.ActionInvalidState, ErrorMessage: "state invalid", UserAgent: fp.UserAgent, IPAddress: fp.IPAddress})
		return nil, newError(ProtocolError, MsgStateInvalid, apperrors.ErrStateInvalid)
	}

	if p.Code == "" {
		f.audit(adminstore.LoginAttempt{Action: adminstore.ActionProviderError, ErrorMessage: "missing code", UserAgent: fp.UserAgent, IPAddress: fp.IPAddress})
		return nil, newError(ProtocolError, MsgMissingCode, apperrors.ErrMissingCode)
	}

	tok, err := f.exchange(ctx, p.Code, verifier)
	if err != nil {
		f.audit(adminstore.LoginAttempt{Action: adminstore.ActionProviderError, ErrorMessage: err.Error(), UserAgent: fp.UserAgent, IPAddress: fp.IPAddress})
		return nil, newError(NetworkError, MsgProviderFailed, err)
	}

	profile, err := f.fetchProfile(ctx, tok)
	if err != nil {
		f.audit(adminstore.LoginAttempt{Action: adminstore.ActionProviderError, ErrorMessage: err.Error(), UserAgent: fp.UserAgent, IPAddress: fp.IPAddress})
		return nil, newError(NetworkError, MsgProviderFailed, err)
	}

	admin, err := f.authorize(ctx, profile)
	if err != nil {
		var le *Error
		if errors.As(err, &le) && le.Kind == AuthorizationError {
			securityEvent(tabID, adminstore.ActionUnauthorized, "non-administrator attempted to sign in")
			f.audit(adminstore.LoginAttempt{ProviderID: profile.ProviderID, Action: adminstore.ActionUnauthorized, ErrorMessage: err.Error(), UserAgent: fp.UserAgent, IPAddress: fp.IPAddress})
		} else {
			f.audit(adminstore.LoginAttempt{ProviderID: profile.ProviderID, Action: adminstore.ActionLogin, ErrorMessage: err.Error(), UserAgent: fp.UserAgent, IPAddress: fp.IPAddress})
		}
		return nil, err
	}

	rec, err := f.mint(ctx, admin, fp)
	if err != nil {
		f.audit(adminstore.LoginAttempt{ProviderID: profile.ProviderID, Action: adminstore.ActionLogin, ErrorMessage: err.Error(), UserAgent: fp.UserAgent, IPAddress: fp.IPAddress})
		return nil, err
	}

	f.replace(ctx, tabID, fp)

	if err := f.storeSealed(ctx, tabID, *rec, fp); err != nil {
		f.revoke(rec.SessionToken)
		return nil, newError(NetworkError, MsgStoreUnavailable, err)
	}

	f.audit(adminstore.LoginAttempt{ProviderID: rec.ProviderID, Action: adminstore.ActionLogin, Success: true, UserAgent: fp.UserAgent, IPAddress: fp.IPAddress})
	log.Info().Str("tab", tabID).Str("admin", rec.AdminID).Bool("super_admin", rec.IsSuperAdmin).Msg("admin signed in")
	return rec, nil
}

// replace logs out a session the tab already holds, so signing in again never
// leaves the previous token live in the store.
func (f *Flow) replace(ctx context.Context, tabID string, fp sessions.Fingerprint) {
	blob, err := f.tabs.Get(ctx, tabID, tabstore.KeyAdminSession)
	if err != nil {
		if !errors.Is(err, tabstore.ErrNotFound) {
			log.Err(err).Str("tab", tabID).Msg("could not read previous session")
		}
		return
	}
	old, err := f.unseal(blob, fp)
	if err != nil {
		old = nil
	}
	f.destroy(ctx, tabID, old, fp, ReasonReplaced)
}

// take consumes a tab value. Storage failures count as a missing value.
func (f *Flow) take(ctx context.Context, tabID, key string) string {
	v, err := f.tabs.Take(ctx, tabID, key)
	if err != nil && !errors.Is(err, tabstore.ErrNotFound) {
		log.Err(err).Str("tab", tabID).Str("key", key).Msg("tab store read failed")
	}
	return v
}

func (f *Flow) exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()

	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}
	tok, err := f.oauthConfig(f.opts.Client).Exchange(ctx, code, opts...)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrTokenExchange, "[login exchange] %v", err)
	}
	return tok, nil
}

func (f *Flow) fetchProfile(ctx context.Context, tok *oauth2.Token) (adminstore.Profile, error) {
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()

	p, err := f.provider.UserInfo(ctx, oauth2.StaticTokenSource(tok))
	if err != nil {
		return adminstore.Profile{}, err
	}
	return adminstore.Profile{
		ProviderID: p.ID,
		Username:   p.Username,
		Avatar:     p.Avatar,
		Email:      p.Email,
	}, nil
}

// authorize pushes the profile to the store and checks the admin list.
func (f *Flow) authorize(ctx context.Context, p adminstore.Profile) (*adminstore.Admin, error) {
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()

	if err := f.store.UpsertAdminProfile(ctx, p); err != nil {
		return nil, newError(NetworkError, MsgStoreUnavailable, err)
	}
	admin, err := f.store.LookupAdmin(ctx, p.ProviderID)
	if errors.Is(err, adminstore.ErrAdminNotFound) {
		return nil, newError(AuthorizationError, MsgNotAdmin, apperrors.ErrNotAdmin)
	}
	if err != nil {
		return nil, newError(NetworkError, MsgStoreUnavailable, err)
	}
	if !admin.IsActive {
		return nil, newError(AuthorizationError, MsgNotAdmin, apperrors.Wrapf(apperrors.ErrNotAdmin, "account disabled"))
	}
	return admin, nil
}

// mint creates the session record and registers it. Nothing is trusted locally
// until the store has acknowledged the token.
func (f *Flow) mint(ctx context.Context, admin *adminstore.Admin, fp sessions.Fingerprint) (*sessions.Record, error) {
	token, err := NewSessionToken()
	if err != nil {
		return nil, newError(NetworkError, MsgStoreUnavailable, err)
	}
	rec := &sessions.Record{
		AdminID:      admin.AdminID,
		ProviderID:   admin.ProviderID,
		Username:     admin.Username,
		AvatarRef:    admin.Avatar,
		IsSuperAdmin: admin.IsSuperAdmin,
		SessionToken: token,
		ExpiresAt:    f.now().Add(f.opts.SessionDuration),
	}

	ctx, cancel := f.withTimeout(ctx)
	defer cancel()
	err = f.store.CreateSession(ctx, adminstore.NewSession{
		AdminID:      rec.AdminID,
		SessionToken: rec.SessionToken,
		UserAgent:    fp.UserAgent,
		IPAddress:    fp.IPAddress,
		Duration:     f.opts.SessionDuration,
	})
	if err != nil {
		return nil, newError(NetworkError, MsgStoreUnavailable, err)
	}
	return rec, nil
}
