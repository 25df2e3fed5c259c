package storefake

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-admin-gate/adminstore"
)

var _ adminstore.Store = (*FakeStore)(nil)

type fakeSession struct {
	adminID   string
	userAgent string
	ipAddress string
	expiresAt time.Time
	revoked   bool
}

// FakeStore is an in-memory authorization store. The Err* fields inject failures
// into the matching operation.
type FakeStore struct {
	lock     sync.RWMutex
	admins   map[string]*adminstore.Admin // providerID -> admin
	profiles map[string]adminstore.Profile
	sessions map[string]*fakeSession // token -> session
	attempts []adminstore.LoginAttempt
	now      func() time.Time

	ErrUpsert        error
	ErrLookup        error
	ErrCreateSession error
	ErrVerify        error
	ErrRefresh       error
	ErrRevoke        error
	ErrLog           error
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		admins:   make(map[string]*adminstore.Admin),
		profiles: make(map[string]adminstore.Profile),
		sessions: make(map[string]*fakeSession),
		now:      time.Now,
	}
}

// SetClock overrides the store's notion of now.
func (s *FakeStore) SetClock(now func() time.Time) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.now = now
}

// AddAdmin registers an administrator. An empty AdminID is filled with a UUID.
func (s *FakeStore) AddAdmin(a adminstore.Admin) adminstore.Admin {
	s.lock.Lock()
	defer s.lock.Unlock()

	if a.AdminID == "" {
		a.AdminID = uuid.New().String()
	}
	s.admins[a.ProviderID] = &a
	return a
}

func (s *FakeStore) UpsertAdminProfile(_ context.Context, p adminstore.Profile) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.ErrUpsert != nil {
		return s.ErrUpsert
	}
	if p.ProviderID == "" {
		return errors.New("provider id is required")
	}
	s.profiles[p.ProviderID] = p
	if a, ok := s.admins[p.ProviderID]; ok {
		a.Username = p.Username
		a.Avatar = p.Avatar
	}
	return nil
}

func (s *FakeStore) LookupAdmin(_ context.Context, providerID string) (*adminstore.Admin, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.ErrLookup != nil {
		return nil, s.ErrLookup
	}
	a, ok := s.admins[providerID]
	if !ok {
		return nil, adminstore.ErrAdminNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *FakeStore) CreateSession(_ context.Context, ns adminstore.NewSession) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.ErrCreateSession != nil {
		return s.ErrCreateSession
	}
	if ns.SessionToken == "" {
		return errors.New("session token is required")
	}
	s.sessions[ns.SessionToken] = &fakeSession{
		adminID:   ns.AdminID,
		userAgent: ns.UserAgent,
		ipAddress: ns.IPAddress,
		expiresAt: s.now().Add(time.Duration(adminstore.DurationHours(ns.Duration)) * time.Hour),
	}
	return nil
}

func (s *FakeStore) VerifySession(_ context.Context, token string) (adminstore.Verification, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.ErrVerify != nil {
		return adminstore.Verification{}, s.ErrVerify
	}
	sess, ok := s.sessions[token]
	if !ok || sess.revoked || !s.now().Before(sess.expiresAt) {
		return adminstore.Verification{IsValid: false}, nil
	}
	v := adminstore.Verification{IsValid: true, AdminID: sess.adminID, ExpiresAt: sess.expiresAt}
	for _, a := range s.admins {
		if a.AdminID == sess.adminID {
			if !a.IsActive {
				return adminstore.Verification{IsValid: false}, nil
			}
			v.ProviderID = a.ProviderID
			v.Username = a.Username
			v.IsSuperAdmin = a.IsSuperAdmin
		}
	}
	return v, nil
}

func (s *FakeStore) RefreshSession(_ context.Context, token string, d time.Duration) (time.Time, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.ErrRefresh != nil {
		return time.Time{}, s.ErrRefresh
	}
	sess, ok := s.sessions[token]
	if !ok || sess.revoked || !s.now().Before(sess.expiresAt) {
		return time.Time{}, errors.New("session is not live")
	}
	sess.expiresAt = s.now().Add(time.Duration(adminstore.DurationHours(d)) * time.Hour)
	return sess.expiresAt, nil
}

func (s *FakeStore) RevokeSession(_ context.Context, token string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.ErrRevoke != nil {
		return s.ErrRevoke
	}
	if sess, ok := s.sessions[token]; ok {
		sess.revoked = true
	}
	return nil
}

func (s *FakeStore) LogLoginAttempt(_ context.Context, a adminstore.LoginAttempt) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.ErrLog != nil {
		return s.ErrLog
	}
	s.attempts = append(s.attempts, a)
	return nil
}

// Attempts returns a copy of the logged login attempts.
func (s *FakeStore) Attempts() []adminstore.LoginAttempt {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return append([]adminstore.LoginAttempt(nil), s.attempts...)
}

// AttemptsWithAction filters Attempts by action.
func (s *FakeStore) AttemptsWithAction(action string) []adminstore.LoginAttempt {
	var out []adminstore.LoginAttempt
	for _, a := range s.Attempts() {
		if a.Action == action {
			out = append(out, a)
		}
	}
	return out
}

// SessionCount returns the number of registered sessions, revoked or not.
func (s *FakeStore) SessionCount() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.sessions)
}

// SessionRevoked reports whether a registered token was revoked.
func (s *FakeStore) SessionRevoked(token string) bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	sess, ok := s.sessions[token]
	return ok && sess.revoked
}

// SessionExpiry returns the store-side expiry of a token.
func (s *FakeStore) SessionExpiry(token string) (time.Time, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	sess, ok := s.sessions[token]
	if !ok {
		return time.Time{}, false
	}
	return sess.expiresAt, true
}

// SessionIPAddress returns the client address a token was registered from.
func (s *FakeStore) SessionIPAddress(token string) string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if sess, ok := s.sessions[token]; ok {
		return sess.ipAddress
	}
	return ""
}

// InvalidateSession makes VerifySession report the token as no longer valid.
func (s *FakeStore) InvalidateSession(token string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if sess, ok := s.sessions[token]; ok {
		sess.revoked = true
	}
}

// SetSessionExpiry moves the store-side expiry of a token.
func (s *FakeStore) SetSessionExpiry(token string, at time.Time) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if sess, ok := s.sessions[token]; ok {
		sess.expiresAt = at
	}
}
