package login_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-admin-gate/adminstore"
	apperrors "github.com/jrsteele09/go-admin-gate/internal/errors"
	"github.com/jrsteele09/go-admin-gate/login"
	"github.com/stretchr/testify/require"
)

type hookRecorder struct {
	mu      sync.Mutex
	reasons []login.LogoutReason
}

func (r *hookRecorder) hook(_ string, reason login.LogoutReason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasons = append(r.reasons, reason)
}

func (r *hookRecorder) got() []login.LogoutReason {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]login.LogoutReason(nil), r.reasons...)
}

func TestRestoreWithoutSession(t *testing.T) {
	h := newHarness(t)

	_, err := h.flow.Restore(t.Context(), testTab, deviceA)
	require.Equal(t, login.DecryptError, login.KindOf(err))
	require.Equal(t, login.MsgNotAuthenticated, login.UserMessage(err))
	require.ErrorIs(t, err, apperrors.ErrNotAuthenticated)
}

func TestRestoreFromOtherDevice(t *testing.T) {
	h := newHarness(t)
	h.addAdmin(true, false)
	rec := h.signIn(t)
	hooks := &hookRecorder{}
	h.flow.OnLogout(hooks.hook)

	_, err := h.flow.Restore(t.Context(), testTab, deviceB)
	require.Equal(t, login.DecryptError, login.KindOf(err))
	require.ErrorIs(t, err, apperrors.ErrDecrypt)
	require.False(t, h.hasSession(t))
	require.Equal(t, []login.LogoutReason{login.ReasonUnreadable}, hooks.got())

	// The token cannot be read back, so it is left to expire in the store.
	h.flow.Wait()
	require.False(t, h.store.SessionRevoked(rec.SessionToken))

	_, err = h.flow.Restore(t.Context(), testTab, deviceA)
	require.ErrorIs(t, err, apperrors.ErrNotAuthenticated)
}

func TestRestoreExpiredSkipsStore(t *testing.T) {
	h := newHarness(t)
	h.addAdmin(true, false)
	h.signIn(t)
	hooks := &hookRecorder{}
	h.flow.OnLogout(hooks.hook)

	h.clock.Advance(24 * time.Hour)
	h.store.ErrVerify = errors.New("verify must not be called")

	_, err := h.flow.Restore(t.Context(), testTab, deviceA)
	require.Equal(t, login.DecryptError, login.KindOf(err))
	require.Equal(t, login.MsgSessionExpired, login.UserMessage(err))
	require.ErrorIs(t, err, apperrors.ErrSessionExpired)
	require.False(t, h.hasSession(t))
	require.Equal(t, []login.LogoutReason{login.ReasonExpired}, hooks.got())

	h.flow.Wait()
	require.Len(t, h.store.AttemptsWithAction(adminstore.ActionSessionExpired), 1)
}

func TestRestoreInvalidatedSession(t *testing.T) {
	h := newHarness(t)
	h.addAdmin(true, false)
	rec := h.signIn(t)
	hooks := &hookRecorder{}
	h.flow.OnLogout(hooks.hook)

	h.store.InvalidateSession(rec.SessionToken)

	_, err := h.flow.Restore(t.Context(), testTab, deviceA)
	require.Equal(t, login.DecryptError, login.KindOf(err))
	require.ErrorIs(t, err, apperrors.ErrSessionInvalid)
	require.False(t, h.hasSession(t))
	require.Equal(t, []login.LogoutReason{login.ReasonInvalid}, hooks.got())
}

func TestRestoreStoreUnavailable(t *testing.T) {
	h := newHarness(t)
	h.addAdmin(true, false)
	h.signIn(t)
	hooks := &hookRecorder{}
	h.flow.OnLogout(hooks.hook)

	h.store.ErrVerify = errors.New("connection reset")

	_, err := h.flow.Restore(t.Context(), testTab, deviceA)
	require.Equal(t, login.NetworkError, login.KindOf(err))
	require.False(t, h.hasSession(t))
	require.Equal(t, []login.LogoutReason{login.ReasonStoreError}, hooks.got())
}

func TestRestorePicksUpRoleChange(t *testing.T) {
	h := newHarness(t)
	h.addAdmin(true, false)
	h.signIn(t)

	h.addAdmin(true, true)

	rec, err := h.flow.Restore(t.Context(), testTab, deviceA)
	require.NoError(t, err)
	require.True(t, rec.IsSuperAdmin)

	again, err := h.flow.Restore(t.Context(), testTab, deviceA)
	require.NoError(t, err)
	require.True(t, again.IsSuperAdmin)
}

func TestRevalidateOutsideGraceWindow(t *testing.T) {
	h := newHarness(t)
	h.addAdmin(true, false)
	rec := h.signIn(t)

	h.clock.Advance(time.Hour)

	got, err := h.flow.Revalidate(t.Context(), testTab, deviceA)
	require.NoError(t, err)
	require.True(t, rec.ExpiresAt.Equal(got.ExpiresAt))
}

func TestRevalidateRefreshesInGraceWindow(t *testing.T) {
	h := newHarness(t)
	h.addAdmin(true, false)
	rec := h.signIn(t)

	h.clock.Advance(24*time.Hour - 2*time.Minute)

	got, err := h.flow.Revalidate(t.Context(), testTab, deviceA)
	require.NoError(t, err)
	require.True(t, got.ExpiresAt.After(rec.ExpiresAt))
	require.WithinDuration(t, h.clock.Now().Add(24*time.Hour), got.ExpiresAt, time.Second)

	restored, err := h.flow.Restore(t.Context(), testTab, deviceA)
	require.NoError(t, err)
	require.True(t, got.ExpiresAt.Equal(restored.ExpiresAt))

	storeExpiry, ok := h.store.SessionExpiry(rec.SessionToken)
	require.True(t, ok)
	require.True(t, storeExpiry.Equal(got.ExpiresAt))
}

func TestRevalidateRefreshFailureLogsOut(t *testing.T) {
	h := newHarness(t)
	h.addAdmin(true, false)
	h.signIn(t)
	hooks := &hookRecorder{}
	h.flow.OnLogout(hooks.hook)

	h.clock.Advance(24*time.Hour - time.Minute)
	h.store.ErrRefresh = errors.New("refresh rejected")

	_, err := h.flow.Revalidate(t.Context(), testTab, deviceA)
	require.Equal(t, login.NetworkError, login.KindOf(err))
	require.False(t, h.hasSession(t))
	require.Equal(t, []login.LogoutReason{login.ReasonRefreshFailed}, hooks.got())
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	h.addAdmin(true, false)
	rec := h.signIn(t)
	hooks := &hookRecorder{}
	h.flow.OnLogout(hooks.hook)

	done, err := h.flow.Logout(t.Context(), testTab, deviceA, login.ReasonUser)
	require.NoError(t, err)
	require.True(t, done)

	done, err = h.flow.Logout(t.Context(), testTab, deviceA, login.ReasonUser)
	require.NoError(t, err)
	require.False(t, done)

	h.flow.Wait()
	require.True(t, h.store.SessionRevoked(rec.SessionToken))
	require.Equal(t, []login.LogoutReason{login.ReasonUser}, hooks.got())
	require.Len(t, h.store.AttemptsWithAction(adminstore.ActionLogout), 1)

	_, err = h.flow.Restore(t.Context(), testTab, deviceA)
	require.ErrorIs(t, err, apperrors.ErrNotAuthenticated)
}

func TestLogoutRunsOnceUnderRace(t *testing.T) {
	h := newHarness(t)
	h.addAdmin(true, false)
	rec := h.signIn(t)

	var fired atomic.Int32
	h.flow.OnLogout(func(string, login.LogoutReason) { fired.Add(1) })

	// A periodic check and a page load both find the session revoked at once.
	h.store.InvalidateSession(rec.SessionToken)

	var wg sync.WaitGroup
	var wins atomic.Int32
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = h.flow.Revalidate(t.Context(), testTab, deviceA)
				return
			}
			if ok, _ := h.flow.Logout(t.Context(), testTab, deviceA, login.ReasonUser); ok {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()
	h.flow.Wait()

	require.EqualValues(t, 1, fired.Load())
	require.LessOrEqual(t, wins.Load(), int32(1))
	require.False(t, h.hasSession(t))
	require.Equal(t, 1, len(h.store.AttemptsWithAction(adminstore.ActionLogout))+
		len(h.store.AttemptsWithAction(adminstore.ActionSessionExpired)))
}
