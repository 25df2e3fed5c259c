package login

import (
	"errors"
	"fmt"
)

// Kind classifies every error that leaves the login flow.
type Kind int

const (
	// ConfigError means the operator has not configured the OAuth client. Not retryable.
	ConfigError Kind = iota + 1
	// ProtocolError covers provider errors and state mismatches. The user must restart login.
	ProtocolError
	// NetworkError covers failed calls to the provider or the authorization store.
	NetworkError
	// AuthorizationError is a valid identity that is not an active administrator.
	AuthorizationError
	// DecryptError is an unusable stored session; it is reported as "not authenticated".
	DecryptError
)

func (k Kind) String() string {
	switch k {
	case ConfigError:
		return "config_error"
	case ProtocolError:
		return "protocol_error"
	case NetworkError:
		return "network_error"
	case AuthorizationError:
		return "authorization_error"
	case DecryptError:
		return "decrypt_error"
	default:
		return "unknown_error"
	}
}

// Messages shown to users. Underlying causes are logged, never displayed.
const (
	MsgNotConfigured    = "Login is not configured: missing OAuth client id"
	MsgStateInvalid     = "Security error: state invalid"
	MsgMissingCode      = "Authorization response is incomplete"
	MsgProviderFailed   = "Could not complete sign-in with the identity provider"
	MsgStoreUnavailable = "Authorization service is unavailable, please try again"
	MsgNotAdmin         = "Access denied: you are not an administrator"
	MsgNotAuthenticated = "Not authenticated"
	MsgSessionExpired   = "Session expired, please sign in again"
)

// Error is the only error type returned by Flow operations.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of a login error, or 0 when err is not one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// UserMessage returns the text safe to show for err.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return MsgNotAuthenticated
}

// Outcome is the terminal state of a callback.
type Outcome int

const (
	Authenticated Outcome = iota + 1
	Rejected
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Authenticated:
		return "AUTHENTICATED"
	case Rejected:
		return "REJECTED"
	default:
		return "ERROR"
	}
}

// OutcomeOf maps a HandleCallback result to its terminal state.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return Authenticated
	case KindOf(err) == AuthorizationError:
		return Rejected
	default:
		return Failed
	}
}
