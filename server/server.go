package server

import (
	"crypto/rand"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-admin-gate/internal/config"
	"github.com/jrsteele09/go-admin-gate/login"
	"github.com/jrsteele09/go-admin-gate/revalidation"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env     string // Environment (e.g., "DEV", "PROD")
	appName string
	mux     *http.ServeMux
	routes  []string
	config  config.Config

	flow     *login.Flow
	monitor  *revalidation.Monitor
	tabs     *TabCookies
	limiter  *rateLimiter
	clientIP *ClientIP

	loginTmpl       *template.Template
	indexTmpl       *template.Template
	fingerprintTmpl *template.Template
}

// New wires the HTTP surface around a login flow. Sessions restored or created
// through the server are handed to monitor for periodic revalidation.
func New(cfg config.Config, flow *login.Flow, monitor *revalidation.Monitor) (*Server, error) {
	if flow == nil || monitor == nil {
		return nil, errors.New("[Server New] login flow and revalidation monitor are required")
	}

	secret := []byte(cfg.GetTabCookieSecret())
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("[Server New] generate tab cookie secret: %w", err)
		}
		log.Warn().Msg("TAB_COOKIE_SECRET not set, tab cookies will not survive a restart")
	}

	clientIP, err := NewClientIP(cfg.GetTrustedProxies())
	if err != nil {
		return nil, fmt.Errorf("[Server New] %w", err)
	}

	loginTmpl, err := ParseTemplate("login.html")
	if err != nil {
		return nil, fmt.Errorf("[Server New] parse login template: %w", err)
	}
	indexTmpl, err := ParseTemplate("index.html")
	if err != nil {
		return nil, fmt.Errorf("[Server New] parse index template: %w", err)
	}
	fingerprintTmpl, err := ParseTemplate("fingerprint.html")
	if err != nil {
		return nil, fmt.Errorf("[Server New] parse fingerprint template: %w", err)
	}

	s := &Server{
		env:       cfg.GetEnv(),
		appName:   cfg.GetAppName(),
		mux:       http.NewServeMux(),
		config:    cfg,
		flow:      flow,
		monitor:   monitor,
		tabs:      NewTabCookies(secret, cfg.GetAppName(), cfg.GetTabTTL()),
		limiter:   newRateLimiter(cfg.GetAuthRateLimitPerMinute()),
		clientIP:  clientIP,
		loginTmpl: loginTmpl,
		indexTmpl: indexTmpl,

		fingerprintTmpl: fingerprintTmpl,
	}
	flow.OnLogout(monitor.LogoutHook)

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		method, path, ok := strings.Cut(route, " ")
		if !ok {
			method, path = "", route
		}
		log.Debug().Msgf("[%-19s] %s", colourMethod(method), path)
	}
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
