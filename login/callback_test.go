package login_test

import (
	"errors"
	"testing"
	"time"

	"github.com/jrsteele09/go-admin-gate/adminstore"
	apperrors "github.com/jrsteele09/go-admin-gate/internal/errors"
	"github.com/jrsteele09/go-admin-gate/login"
	"github.com/jrsteele09/go-admin-gate/tabstore"
	"github.com/stretchr/testify/require"
)

func TestCallbackAuthenticated(t *testing.T) {
	h := newHarness(t)
	h.addAdmin(true, false)

	state := h.start(t)
	verifier, err := h.tabs.Get(t.Context(), testTab, tabstore.KeyPKCEVerifier)
	require.NoError(t, err)

	rec, err := h.flow.HandleCallback(t.Context(), testTab, login.CallbackParams{Code: "auth-code", State: state}, deviceA)
	require.NoError(t, err)
	require.Equal(t, login.Authenticated, login.OutcomeOf(err))

	require.Equal(t, "42", rec.AdminID)
	require.Equal(t, testProviderID, rec.ProviderID)
	require.False(t, rec.IsSuperAdmin)
	require.Len(t, rec.SessionToken, 64)
	require.WithinDuration(t, h.clock.Now().Add(24*time.Hour), rec.ExpiresAt, 5*time.Second)

	require.Equal(t, verifier, h.discord.verifier())
	require.EqualValues(t, 1, h.discord.exchanges.Load())
	require.Equal(t, 1, h.store.SessionCount())
	require.True(t, h.hasSession(t))

	for _, key := range []string{tabstore.KeyOAuthState, tabstore.KeyPKCEVerifier} {
		_, err := h.tabs.Get(t.Context(), testTab, key)
		require.ErrorIs(t, err, tabstore.ErrNotFound, key)
	}

	restored, err := h.flow.Restore(t.Context(), testTab, deviceA)
	require.NoError(t, err)
	require.Equal(t, rec.SessionToken, restored.SessionToken)
	require.True(t, rec.ExpiresAt.Equal(restored.ExpiresAt))

	h.flow.Wait()
	logins := h.store.AttemptsWithAction(adminstore.ActionLogin)
	require.Len(t, logins, 1)
	require.True(t, logins[0].Success)
	require.Equal(t, deviceA.UserAgent, logins[0].UserAgent)
}

func TestCallbackProviderDenied(t *testing.T) {
	h := newHarness(t)
	h.addAdmin(true, false)
	state := h.start(t)

	_, err := h.flow.HandleCallback(t.Context(), testTab, login.CallbackParams{
		Error:            "access_denied",
		ErrorDescription: "The resource owner or authorization server denied the request",
		State:            state,
	}, deviceA)
	require.Equal(t, login.Failed, login.OutcomeOf(err))
	require.Equal(t, login.ProtocolError, login.KindOf(err))
	require.Equal(t, "The resource owner or authorization server denied the request", login.UserMessage(err))
	require.ErrorIs(t, err, apperrors.ErrProviderDenied)

	require.False(t, h.hasSession(t))
	require.Zero(t, h.discord.exchanges.Load())
	_, err = h.tabs.Get(t.Context(), testTab, tabstore.KeyOAuthState)
	require.ErrorIs(t, err, tabstore.ErrNotFound)

	h.flow.Wait()
	require.Len(t, h.store.AttemptsWithAction(adminstore.ActionProviderError), 1)
}

func TestCallbackProviderErrorWithoutDescription(t *testing.T) {
	h := newHarness(t)
	state := h.start(t)

	_, err := h.flow.HandleCallback(t.Context(), testTab, login.CallbackParams{Error: "server_error", State: state}, deviceA)
	require.Equal(t, "server_error", login.UserMessage(err))
}

func TestCallbackStateInvalid(t *testing.T) {
	tests := []struct {
		name  string
		start bool
		state string
	}{
		{"mismatch", true, "forged-state"},
		{"missing", true, ""},
		{"no login started", false, "some-state"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.addAdmin(true, false)
			if tt.start {
				h.start(t)
			}

			_, err := h.flow.HandleCallback(t.Context(), testTab, login.CallbackParams{Code: "auth-code", State: tt.state}, deviceA)
			require.Equal(t, login.ProtocolError, login.KindOf(err))
			require.Equal(t, login.MsgStateInvalid, login.UserMessage(err))
			require.ErrorIs(t, err, apperrors.ErrStateInvalid)

			require.Zero(t, h.discord.exchanges.Load())
			require.False(t, h.hasSession(t))
			require.Zero(t, h.store.SessionCount())

			h.flow.Wait()
			require.Len(t, h.store.AttemptsWithAction(adminstore.ActionInvalidState), 1)
		})
	}
}

func TestCallbackReplayRejected(t *testing.T) {
	h := newHarness(t)
	h.addAdmin(true, false)
	state := h.start(t)
	params := login.CallbackParams{Code: "auth-code", State: state}

	_, err := h.flow.HandleCallback(t.Context(), testTab, params, deviceA)
	require.NoError(t, err)

	_, err = h.flow.HandleCallback(t.Context(), testTab, params, deviceA)
	require.Equal(t, login.ProtocolError, login.KindOf(err))
	require.EqualValues(t, 1, h.discord.exchanges.Load())
	require.Equal(t, 1, h.store.SessionCount())
}

func TestCallbackImplicitTokenRejected(t *testing.T) {
	h := newHarness(t)
	h.addAdmin(true, false)
	state := h.start(t)

	_, err := h.flow.HandleCallback(t.Context(), testTab, login.CallbackParams{AccessToken: accessToken, State: state}, deviceA)
	require.Equal(t, login.ProtocolError, login.KindOf(err))
	require.ErrorIs(t, err, apperrors.ErrMissingCode)
	require.False(t, h.hasSession(t))
}

func TestCallbackRejected(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *harness)
	}{
		{"not an admin", func(h *harness) {}},
		{"inactive admin", func(h *harness) { h.addAdmin(false, true) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			tt.setup(h)
			state := h.start(t)

			rec, err := h.flow.HandleCallback(t.Context(), testTab, login.CallbackParams{Code: "auth-code", State: state}, deviceA)
			require.Nil(t, rec)
			require.Equal(t, login.Rejected, login.OutcomeOf(err))
			require.Equal(t, login.MsgNotAdmin, login.UserMessage(err))
			require.ErrorIs(t, err, apperrors.ErrNotAdmin)

			require.False(t, h.hasSession(t))
			require.Zero(t, h.store.SessionCount())

			h.flow.Wait()
			attempts := h.store.AttemptsWithAction(adminstore.ActionUnauthorized)
			require.Len(t, attempts, 1)
			require.Equal(t, testProviderID, attempts[0].ProviderID)
			require.False(t, attempts[0].Success)
		})
	}
}

func TestCallbackStoreFailures(t *testing.T) {
	storeDown := errors.New("connection refused")
	tests := []struct {
		name  string
		setup func(h *harness)
	}{
		{"upsert", func(h *harness) { h.store.ErrUpsert = storeDown }},
		{"lookup", func(h *harness) { h.store.ErrLookup = storeDown }},
		{"create session", func(h *harness) { h.store.ErrCreateSession = storeDown }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.addAdmin(true, false)
			tt.setup(h)
			state := h.start(t)

			_, err := h.flow.HandleCallback(t.Context(), testTab, login.CallbackParams{Code: "auth-code", State: state}, deviceA)
			require.Equal(t, login.Failed, login.OutcomeOf(err))
			require.Equal(t, login.NetworkError, login.KindOf(err))
			require.Equal(t, login.MsgStoreUnavailable, login.UserMessage(err))
			require.ErrorIs(t, err, storeDown)
			require.False(t, h.hasSession(t))
		})
	}
}

func TestCallbackProfileFailure(t *testing.T) {
	h := newHarness(t)
	h.addAdmin(true, false)
	h.discord.userID.Store("")
	state := h.start(t)

	_, err := h.flow.HandleCallback(t.Context(), testTab, login.CallbackParams{Code: "auth-code", State: state}, deviceA)
	require.Equal(t, login.NetworkError, login.KindOf(err))
	require.ErrorIs(t, err, apperrors.ErrUserInfo)
	require.False(t, h.hasSession(t))
}

func TestCallbackExchangeTimeout(t *testing.T) {
	h := newHarness(t, func(o *login.Options) { o.Timeout = 100 * time.Millisecond })
	h.addAdmin(true, false)
	h.discord.tokenDelay.Store(int64(2 * time.Second))
	state := h.start(t)

	started := time.Now()
	_, err := h.flow.HandleCallback(t.Context(), testTab, login.CallbackParams{Code: "auth-code", State: state}, deviceA)
	require.Less(t, time.Since(started), time.Second)
	require.Equal(t, login.Failed, login.OutcomeOf(err))
	require.Equal(t, login.NetworkError, login.KindOf(err))
	require.ErrorIs(t, err, apperrors.ErrTokenExchange)
	require.False(t, h.hasSession(t))
}

func TestCallbackSuperAdmin(t *testing.T) {
	h := newHarness(t)
	h.addAdmin(true, true)

	rec := h.signIn(t)
	require.True(t, rec.IsSuperAdmin)
}

func TestCallbackRecordsClientAddress(t *testing.T) {
	h := newHarness(t)
	h.addAdmin(true, false)

	rec := h.signIn(t)
	require.Equal(t, deviceA.IPAddress, h.store.SessionIPAddress(rec.SessionToken))

	h.flow.Wait()
	logins := h.store.AttemptsWithAction(adminstore.ActionLogin)
	require.Len(t, logins, 1)
	require.Equal(t, deviceA.IPAddress, logins[0].IPAddress)
}

func TestSecondLoginReplacesSession(t *testing.T) {
	h := newHarness(t)
	h.addAdmin(true, false)
	hooks := &hookRecorder{}
	h.flow.OnLogout(hooks.hook)

	first := h.signIn(t)
	second := h.signIn(t)
	require.NotEqual(t, first.SessionToken, second.SessionToken)

	h.flow.Wait()
	require.Equal(t, 2, h.store.SessionCount())
	require.True(t, h.store.SessionRevoked(first.SessionToken))
	require.False(t, h.store.SessionRevoked(second.SessionToken))
	require.Equal(t, []login.LogoutReason{login.ReasonReplaced}, hooks.got())

	restored, err := h.flow.Restore(t.Context(), testTab, deviceA)
	require.NoError(t, err)
	require.Equal(t, second.SessionToken, restored.SessionToken)
}
