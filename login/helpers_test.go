package login_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-admin-gate/adminstore"
	"github.com/jrsteele09/go-admin-gate/adminstore/storefake"
	"github.com/jrsteele09/go-admin-gate/identity"
	"github.com/jrsteele09/go-admin-gate/login"
	"github.com/jrsteele09/go-admin-gate/sessions"
	"github.com/jrsteele09/go-admin-gate/tabstore"
	"github.com/stretchr/testify/require"
)

const (
	testClientID   = "1234567890"
	testRedirect   = "http://localhost:8080/auth/callback"
	testProviderID = "80351110224678912"
	testTab        = "tab-1"
	accessToken    = "discord-access-token"
)

var (
	deviceA = sessions.Fingerprint{UserAgent: "Mozilla/5.0 (X11; Linux x86_64) Firefox/128.0", Locale: "en-GB", ScreenWidth: 1920, ScreenHeight: 1080, IPAddress: "203.0.113.10"}
	deviceB = sessions.Fingerprint{UserAgent: "Mozilla/5.0 (Macintosh) Safari/605.1.15", Locale: "fr-FR", ScreenWidth: 1440, ScreenHeight: 900}
)

// clock is a settable time source shared by the flow and the fake store.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeDiscord serves the token and user endpoints of the Discord API.
type fakeDiscord struct {
	*httptest.Server

	exchanges    atomic.Int32
	lastVerifier atomic.Value
	tokenDelay   atomic.Int64
	userID       atomic.Value
}

func newFakeDiscord(t *testing.T) *fakeDiscord {
	fd := &fakeDiscord{}
	fd.userID.Store(testProviderID)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		fd.exchanges.Add(1)
		if d := time.Duration(fd.tokenDelay.Load()); d > 0 {
			select {
			case <-time.After(d):
			case <-r.Context().Done():
				return
			}
		}
		if err := r.ParseForm(); err != nil || r.PostForm.Get("code") == "" {
			http.Error(w, `{"error":"invalid_request"}`, http.StatusBadRequest)
			return
		}
		fd.lastVerifier.Store(r.PostForm.Get("code_verifier"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": accessToken,
			"token_type":   "Bearer",
			"expires_in":   604800,
			"scope":        "identify email",
		})
	})
	mux.HandleFunc("/api/v10/users/@me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+accessToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(identity.Profile{ID: fd.userID.Load().(string), Username: "nelly", Avatar: "8342729096ea3675442027381ff50dfe"})
	})
	fd.Server = httptest.NewServer(mux)
	t.Cleanup(fd.Close)
	return fd
}

func (fd *fakeDiscord) verifier() string {
	v, _ := fd.lastVerifier.Load().(string)
	return v
}

type harness struct {
	flow    *login.Flow
	store   *storefake.FakeStore
	tabs    *tabstore.InMemoryRepo
	discord *fakeDiscord
	clock   *clock
}

func newHarness(t *testing.T, mutate ...func(*login.Options)) *harness {
	h := &harness{
		store:   storefake.NewFakeStore(),
		tabs:    tabstore.NewInMemoryRepo(0),
		discord: newFakeDiscord(t),
		clock:   newClock(),
	}
	h.store.SetClock(h.clock.Now)

	opts := login.Options{
		Client: login.StartParams{
			ClientID:    testClientID,
			RedirectURI: testRedirect,
			Scopes:      []string{"identify", "email"},
			PKCE:        true,
		},
		Timeout:       2 * time.Second,
		KeySalt:       "test-salt",
		KDFIterations: 1000,
		Now:           h.clock.Now,
	}
	for _, m := range mutate {
		m(&opts)
	}

	flow, err := login.New(identity.NewDiscord(h.discord.URL), h.store, h.tabs, opts)
	require.NoError(t, err)
	h.flow = flow
	t.Cleanup(flow.Wait)
	return h
}

func (h *harness) addAdmin(active, super bool) adminstore.Admin {
	return h.store.AddAdmin(adminstore.Admin{
		AdminID:      "42",
		ProviderID:   testProviderID,
		Username:     "nelly",
		IsActive:     active,
		IsSuperAdmin: super,
	})
}

// start runs StartAuth for testTab and returns the state it persisted.
func (h *harness) start(t *testing.T) string {
	_, err := h.flow.StartAuth(t.Context(), testTab, h.flow.Client())
	require.NoError(t, err)
	state, err := h.tabs.Get(t.Context(), testTab, tabstore.KeyOAuthState)
	require.NoError(t, err)
	return state
}

// signIn performs a complete successful login from deviceA.
func (h *harness) signIn(t *testing.T) *sessions.Record {
	state := h.start(t)
	rec, err := h.flow.HandleCallback(t.Context(), testTab, login.CallbackParams{Code: "auth-code", State: state}, deviceA)
	require.NoError(t, err)
	return rec
}

func (h *harness) hasSession(t *testing.T) bool {
	_, err := h.tabs.Get(t.Context(), testTab, tabstore.KeyAdminSession)
	if err == nil {
		return true
	}
	require.ErrorIs(t, err, tabstore.ErrNotFound)
	return false
}
