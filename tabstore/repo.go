package tabstore

import (
	"context"

	apperrors "github.com/jrsteele09/go-admin-gate/internal/errors"
)

// Keys held per tab.
const (
	KeyOAuthState   = "oauth_state"
	KeyPKCEVerifier = "pkce_verifier"
	KeyAdminSession = "admin_session"
)

// ErrNotFound is returned when a tab has no value for a key.
var ErrNotFound = apperrors.ErrNotFound

// Store is tab-scoped storage. Values live no longer than the browser tab session
// that owns tabID, and backends expire idle tabs on their own.
type Store interface {
	Get(ctx context.Context, tabID, key string) (string, error)
	Set(ctx context.Context, tabID, key, value string) error
	// Take atomically reads and deletes a value, so at most one caller observes it.
	Take(ctx context.Context, tabID, key string) (string, error)
	// Swap replaces a value only while it still equals old. It reports whether the
	// write happened.
	Swap(ctx context.Context, tabID, key, old, value string) (bool, error)
	Delete(ctx context.Context, tabID string, keys ...string) error
	// Clear drops everything held for the tab.
	Clear(ctx context.Context, tabID string) error
}
