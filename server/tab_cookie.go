package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TabCookieName identifies the browser tab session. It has no Max-Age, so it is
// dropped when the browser session ends.
const TabCookieName = "admin_tab"

// TabCookies issues and verifies the signed tab cookie. The cookie is an HS256
// JWT whose subject is the tab ID used as the tab store key.
type TabCookies struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTabCookies(secret []byte, issuer string, ttl time.Duration) *TabCookies {
	return &TabCookies{secret: secret, issuer: issuer, ttl: ttl, now: time.Now}
}

// TabID returns the tab ID carried by a valid cookie on r.
func (t *TabCookies) TabID(r *http.Request) (string, error) {
	c, err := r.Cookie(TabCookieName)
	if err != nil {
		return "", err
	}
	return t.parse(c.Value)
}

// Ensure returns the request's tab ID, issuing a new tab cookie when there is no
// valid one.
func (t *TabCookies) Ensure(w http.ResponseWriter, r *http.Request) (string, error) {
	if id, err := t.TabID(r); err == nil {
		return id, nil
	}
	id := uuid.NewString()
	value, err := t.sign(id)
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     TabCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
	})
	return id, nil
}

func (t *TabCookies) sign(tabID string) (string, error) {
	now := t.now()
	claims := jwt.RegisteredClaims{
		Subject:  tabID,
		Issuer:   t.issuer,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if t.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(t.ttl))
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("[TabCookies sign] %w", err)
	}
	return signed, nil
}

func (t *TabCookies) parse(value string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(value, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return "", fmt.Errorf("[TabCookies parse] %w", err)
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", errors.New("[TabCookies parse] subject is not a tab id")
	}
	return claims.Subject, nil
}
