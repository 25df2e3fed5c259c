package sessions

import "time"

// DefaultDuration is how long a freshly minted admin session lives.
const DefaultDuration = 24 * time.Hour

// Record is the authenticated admin session kept, sealed, in tab storage.
// A Record is only trusted while it is unexpired AND the authorization store
// still reports its token as live.
type Record struct {
	AdminID      string    `json:"adminId"`
	ProviderID   string    `json:"providerId"`
	Username     string    `json:"username"`
	AvatarRef    string    `json:"avatarRef,omitempty"`
	IsSuperAdmin bool      `json:"isSuperAdmin"`
	SessionToken string    `json:"sessionToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Expired is the local short-circuit check; an expired record is invalid
// whatever the authorization store says.
func (r Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// InGraceWindow reports whether the record expires within window of now.
func (r Record) InGraceWindow(now time.Time, window time.Duration) bool {
	return !r.Expired(now) && r.ExpiresAt.Sub(now) < window
}
