package sessions

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/text/language"
)

// ScreenCookieName is written by the dashboard front-end as "<width>x<height>".
const ScreenCookieName = "screen"

// Fingerprint is the set of semi-stable browser characteristics the sealing key
// is derived from. It is reproducible only from the same browser and device.
type Fingerprint struct {
	UserAgent    string
	Locale       string
	ScreenWidth  int
	ScreenHeight int

	// IPAddress is recorded with sessions and login attempts. It is not part of
	// the key, so a roaming client keeps its session.
	IPAddress string
}

// FingerprintFromRequest reads the fingerprint observable on an incoming request.
func FingerprintFromRequest(r *http.Request) Fingerprint {
	fp := Fingerprint{
		UserAgent: r.UserAgent(),
		Locale:    primaryLocale(r.Header.Get("Accept-Language")),
	}
	if c, err := r.Cookie(ScreenCookieName); err == nil {
		fp.ScreenWidth, fp.ScreenHeight = parseScreen(c.Value)
	}
	return fp
}

// HasScreen reports whether the front-end has reported the screen size yet.
func (f Fingerprint) HasScreen() bool {
	return f.ScreenWidth > 0 && f.ScreenHeight > 0
}

// String is the key derivation input.
func (f Fingerprint) String() string {
	return fmt.Sprintf("%s|%s|%d|%d", f.UserAgent, f.Locale, f.ScreenWidth, f.ScreenHeight)
}

func primaryLocale(acceptLanguage string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return ""
	}
	return tags[0].String()
}

func parseScreen(v string) (int, int) {
	w, h, ok := strings.Cut(strings.ToLower(v), "x")
	if !ok {
		return 0, 0
	}
	width, errW := strconv.Atoi(w)
	height, errH := strconv.Atoi(h)
	if errW != nil || errH != nil || width < 0 || height < 0 {
		return 0, 0
	}
	return width, height
}
