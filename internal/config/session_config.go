package config

import "time"

type SessionConfig interface {
	GetSessionDuration() time.Duration
	GetSessionKeySalt() string
	GetKDFIterations() int
	GetRevalidateInterval() time.Duration
	GetGraceWindow() time.Duration
	GetTabCookieSecret() string
	GetTabTTL() time.Duration
}

type Session struct {
	Duration           time.Duration `yaml:"duration" env:"SESSION_DURATION" env-default:"24h"`
	KeySalt            string        `yaml:"key_salt" env:"SESSION_KEY_SALT" env-default:"admin-gate-salt"`
	KDFIterations      int           `yaml:"kdf_iterations" env:"SESSION_KDF_ITERATIONS" env-default:"100000"`
	RevalidateInterval time.Duration `yaml:"revalidate_interval" env:"SESSION_REVALIDATE_INTERVAL" env-default:"60s"`
	GraceWindow        time.Duration `yaml:"grace_window" env:"SESSION_GRACE_WINDOW" env-default:"5m"`
	TabCookieSecret    string        `yaml:"tab_cookie_secret" env:"TAB_COOKIE_SECRET"`
	TabTTL             time.Duration `yaml:"tab_ttl" env:"TAB_TTL" env-default:"25h"`
}

var _ SessionConfig = Session{}

func (s Session) GetSessionDuration() time.Duration {
	return s.Duration
}

func (s Session) GetSessionKeySalt() string {
	return s.KeySalt
}

func (s Session) GetKDFIterations() int {
	return s.KDFIterations
}

func (s Session) GetRevalidateInterval() time.Duration {
	return s.RevalidateInterval
}

func (s Session) GetGraceWindow() time.Duration {
	return s.GraceWindow
}

// GetTabCookieSecret may be empty, in which case the server generates a random
// secret at startup and tab cookies do not survive a restart.
func (s Session) GetTabCookieSecret() string {
	return s.TabCookieSecret
}

func (s Session) GetTabTTL() time.Duration {
	return s.TabTTL
}
