package login

import (
	"net/url"
	"strings"
)

// CallbackParams is what the identity provider sends back on the redirect.
type CallbackParams struct {
	Code             string
	AccessToken      string
	State            string
	Error            string
	ErrorDescription string
}

// ParseCallback reads callback parameters from a raw query string or URL fragment,
// with or without the leading '?' or '#'.
func ParseCallback(raw string) CallbackParams {
	raw = strings.TrimLeft(raw, "?#")
	values, err := url.ParseQuery(raw)
	if err != nil && len(values) == 0 {
		return CallbackParams{}
	}
	return FromValues(values)
}

// FromValues reads callback parameters from already parsed values.
func FromValues(v url.Values) CallbackParams {
	return CallbackParams{
		Code:             v.Get("code"),
		AccessToken:      v.Get("access_token"),
		State:            v.Get("state"),
		Error:            v.Get("error"),
		ErrorDescription: v.Get("error_description"),
	}
}
