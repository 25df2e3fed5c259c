package login

import (
	"context"
	"errors"

	"github.com/jrsteele09/go-admin-gate/adminstore"
	apperrors "github.com/jrsteele09/go-admin-gate/internal/errors"
	"github.com/jrsteele09/go-admin-gate/sessions"
	"github.com/jrsteele09/go-admin-gate/tabstore"
	"github.com/rs/zerolog/log"
)

// Restore unseals the tab's session and revalidates it against the authorization
// store. A session that cannot be used for any reason is destroyed before the error
// is returned.
func (f *Flow) Restore(ctx context.Context, tabID string, fp sessions.Fingerprint) (*sessions.Record, error) {
	rec, _, err := f.restore(ctx, tabID, fp)
	return rec, err
}

// restore is Restore that also returns the blob currently stored for the session.
func (f *Flow) restore(ctx context.Context, tabID string, fp sessions.Fingerprint) (*sessions.Record, string, error) {
	blob, err := f.tabs.Get(ctx, tabID, tabstore.KeyAdminSession)
	if errors.Is(err, tabstore.ErrNotFound) {
		return nil, "", newError(DecryptError, MsgNotAuthenticated, apperrors.ErrNotAuthenticated)
	}
	if err != nil {
		return nil, "", newError(NetworkError, MsgStoreUnavailable, err)
	}

	rec, err := f.unseal(blob, fp)
	if err != nil {
		securityEvent(tabID, string(ReasonUnreadable), "stored session could not be decrypted")
		f.destroy(ctx, tabID, nil, fp, ReasonUnreadable)
		return nil, "", newError(DecryptError, MsgNotAuthenticated, err)
	}

	if rec.Expired(f.now()) {
		f.destroy(ctx, tabID, rec, fp, ReasonExpired)
		return nil, "", newError(DecryptError, MsgSessionExpired, apperrors.ErrSessionExpired)
	}

	vctx, cancel := f.withTimeout(ctx)
	v, err := f.store.VerifySession(vctx, rec.SessionToken)
	cancel()
	if err != nil {
		log.Err(err).Str("tab", tabID).Msg("session verification failed")
		f.destroy(ctx, tabID, rec, fp, ReasonStoreError)
		return nil, "", newError(NetworkError, MsgStoreUnavailable, err)
	}
	if !v.IsValid {
		f.destroy(ctx, tabID, rec, fp, ReasonInvalid)
		return nil, "", newError(DecryptError, MsgSessionExpired, apperrors.ErrSessionInvalid)
	}
	if v.IsSuperAdmin != rec.IsSuperAdmin {
		rec.IsSuperAdmin = v.IsSuperAdmin
		blob, err = f.reseal(ctx, tabID, blob, *rec, fp)
		if err != nil {
			return nil, "", err
		}
	}
	return rec, blob, nil
}

// Revalidate is Restore plus a refresh once the session enters the grace window
// before expiry. A failed refresh logs the tab out.
func (f *Flow) Revalidate(ctx context.Context, tabID string, fp sessions.Fingerprint) (*sessions.Record, error) {
	rec, blob, err := f.restore(ctx, tabID, fp)
	if err != nil {
		return nil, err
	}
	if !rec.InGraceWindow(f.now(), f.opts.GraceWindow) {
		return rec, nil
	}

	rctx, cancel := f.withTimeout(ctx)
	expiresAt, err := f.store.RefreshSession(rctx, rec.SessionToken, f.opts.SessionDuration)
	cancel()
	if err != nil {
		log.Err(err).Str("tab", tabID).Msg("session refresh failed")
		f.destroy(ctx, tabID, rec, fp, ReasonRefreshFailed)
		return nil, newError(NetworkError, MsgSessionExpired, err)
	}

	rec.ExpiresAt = expiresAt.UTC()
	if _, err := f.reseal(ctx, tabID, blob, *rec, fp); err != nil {
		return nil, err
	}
	log.Debug().Str("tab", tabID).Time("expires_at", rec.ExpiresAt).Msg("session refreshed")
	return rec, nil
}

// Logout destroys the tab's session. It reports false when there was no session to
// destroy, which is also the result for every caller but the first when several race.
func (f *Flow) Logout(ctx context.Context, tabID string, fp sessions.Fingerprint, reason LogoutReason) (bool, error) {
	blob, err := f.tabs.Get(ctx, tabID, tabstore.KeyAdminSession)
	if errors.Is(err, tabstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, newError(NetworkError, MsgStoreUnavailable, err)
	}
	rec, err := f.unseal(blob, fp)
	if err != nil {
		rec = nil
	}
	return f.destroy(ctx, tabID, rec, fp, reason), nil
}

// destroy takes the sealed blob out of the tab. Only the caller that gets it runs the
// side effects: token revocation, the audit record and the logout hooks.
func (f *Flow) destroy(ctx context.Context, tabID string, rec *sessions.Record, fp sessions.Fingerprint, reason LogoutReason) bool {
	if _, err := f.tabs.Take(ctx, tabID, tabstore.KeyAdminSession); err != nil {
		if !errors.Is(err, tabstore.ErrNotFound) {
			log.Err(err).Str("tab", tabID).Msg("could not clear session")
		}
		return false
	}
	if err := f.tabs.Delete(ctx, tabID, tabstore.KeyOAuthState, tabstore.KeyPKCEVerifier); err != nil {
		log.Warn().Err(err).Str("tab", tabID).Msg("could not clear pending login")
	}

	attempt := adminstore.LoginAttempt{
		Action:       adminstore.ActionLogout,
		Success:      true,
		ErrorMessage: string(reason),
		UserAgent:    fp.UserAgent,
		IPAddress:    fp.IPAddress,
	}
	if reason == ReasonExpired || reason == ReasonInvalid {
		attempt.Action = adminstore.ActionSessionExpired
	}
	if rec != nil {
		attempt.ProviderID = rec.ProviderID
		f.revoke(rec.SessionToken)
	}
	f.audit(attempt)

	log.Info().Str("tab", tabID).Str("reason", string(reason)).Msg("admin signed out")

	f.hooksMu.RLock()
	hooks := append([]LogoutHook(nil), f.hooks...)
	f.hooksMu.RUnlock()
	for _, h := range hooks {
		h(tabID, reason)
	}
	return true
}

// reseal replaces the stored blob old with rec. A session destroyed in the meantime
// stays destroyed.
func (f *Flow) reseal(ctx context.Context, tabID, old string, rec sessions.Record, fp sessions.Fingerprint) (string, error) {
	sealed, err := sessions.Seal(rec, f.key(fp))
	if err != nil {
		return "", newError(NetworkError, MsgStoreUnavailable, err)
	}
	blob := sealed.Encode()
	ok, err := f.tabs.Swap(ctx, tabID, tabstore.KeyAdminSession, old, blob)
	if err != nil {
		return "", newError(NetworkError, MsgStoreUnavailable, err)
	}
	if !ok {
		return "", newError(DecryptError, MsgNotAuthenticated, apperrors.ErrNotAuthenticated)
	}
	return blob, nil
}

// revoke invalidates a token in the store without blocking the caller.
func (f *Flow) revoke(token string) {
	f.audits.Add(1)
	go func() {
		defer f.audits.Done()
		ctx, cancel := context.WithTimeout(context.Background(), f.opts.Timeout)
		defer cancel()
		if err := f.store.RevokeSession(ctx, token); err != nil {
			log.Warn().Err(err).Msg("session not revoked")
		}
	}()
}

func (f *Flow) unseal(blob string, fp sessions.Fingerprint) (*sessions.Record, error) {
	sealed, err := sessions.DecodeSealed(blob)
	if err != nil {
		return nil, err
	}
	rec, err := sessions.Unseal(sealed, f.key(fp))
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
