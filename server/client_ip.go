package server

import (
	"fmt"
	"net"
	"net/http"

	"github.com/jrsteele09/go-admin-gate/sessions"
	"github.com/labstack/echo/v4"
)

// ClientIP resolves the address of the client behind a request. Forwarding
// headers are only believed when the direct peer is a trusted proxy.
type ClientIP struct {
	fromXFF    echo.IPExtractor
	fromRealIP echo.IPExtractor
}

// NewClientIP accepts proxy entries as single addresses or CIDR ranges. Nothing
// is trusted by default, loopback and private ranges included.
func NewClientIP(proxies []string) (*ClientIP, error) {
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, p := range proxies {
		ipNet, err := parseProxy(p)
		if err != nil {
			return nil, err
		}
		opts = append(opts, echo.TrustIPRange(ipNet))
	}
	return &ClientIP{
		fromXFF:    echo.ExtractIPFromXFFHeader(opts...),
		fromRealIP: echo.ExtractIPFromRealIPHeader(opts...),
	}, nil
}

// Extract returns the client address of r. X-Forwarded-For is read right to left,
// skipping trusted hops, so a client cannot pick its own address by prepending to it.
func (c *ClientIP) Extract(r *http.Request) string {
	if c == nil {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			return r.RemoteAddr
		}
		return host
	}
	if r.Header.Get(echo.HeaderXForwardedFor) != "" {
		return c.fromXFF(r)
	}
	return c.fromRealIP(r)
}

func parseProxy(p string) (*net.IPNet, error) {
	if _, ipNet, err := net.ParseCIDR(p); err == nil {
		return ipNet, nil
	}
	ip := net.ParseIP(p)
	if ip == nil {
		return nil, fmt.Errorf("[ClientIP] invalid trusted proxy %q", p)
	}
	if v4 := ip.To4(); v4 != nil {
		return &net.IPNet{IP: v4, Mask: net.CIDRMask(32, 32)}, nil
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(128, 128)}, nil
}

// fingerprint is the request's fingerprint plus the resolved client address.
func (s *Server) fingerprint(r *http.Request) sessions.Fingerprint {
	fp := sessions.FingerprintFromRequest(r)
	fp.IPAddress = s.clientIP.Extract(r)
	return fp
}
