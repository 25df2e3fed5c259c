package errors

import (
	"errors"
	"fmt"
)

// Common error types for the admin login gateway
var (
	// Handshake errors
	ErrMissingClientID = errors.New("missing oauth client id")
	ErrStateInvalid    = errors.New("state invalid")
	ErrProviderDenied  = errors.New("provider returned an error")
	ErrMissingCode     = errors.New("missing authorization code")

	// Identity provider errors
	ErrTokenExchange = errors.New("token exchange failed")
	ErrUserInfo      = errors.New("user info request failed")

	// Authorization errors
	ErrNotAdmin      = errors.New("account is not an active administrator")
	ErrAdminNotFound = errors.New("admin not found")

	// Session errors
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrSessionExpired   = errors.New("session expired")
	ErrSessionInvalid   = errors.New("session rejected by authorization store")
	ErrDecrypt          = errors.New("sealed session unreadable")

	// General errors
	ErrNotFound = errors.New("not found")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
