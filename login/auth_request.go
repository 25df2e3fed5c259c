package login

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/oauth2"
)

const (
	stateBytes        = 32
	sessionTokenBytes = 32
)

// AuthRequest is the per-attempt handshake material. It lives in tab storage only
// for the redirect round trip and is consumed by the callback.
type AuthRequest struct {
	State         string
	CodeVerifier  string
	CodeChallenge string
}

// NewState returns a hex encoded anti-forgery token.
func NewState() (string, error) {
	return randomHex(stateBytes)
}

// NewSessionToken returns a hex encoded session token.
func NewSessionToken() (string, error) {
	return randomHex(sessionTokenBytes)
}

// NewAuthRequest generates a fresh state and, with pkce, a verifier/challenge pair.
func NewAuthRequest(pkce bool) (AuthRequest, error) {
	state, err := NewState()
	if err != nil {
		return AuthRequest{}, err
	}
	req := AuthRequest{State: state}
	if pkce {
		req.CodeVerifier = oauth2.GenerateVerifier()
		req.CodeChallenge = oauth2.S256ChallengeFromVerifier(req.CodeVerifier)
	}
	return req, nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("[login] random source: %w", err)
	}
	return hex.EncodeToString(b), nil
}
