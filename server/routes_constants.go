package server

// Route path constants
const (
	RouteIndex = "/{$}"
	RouteHome  = "/"
	RouteLogin = "/login"

	// Auth routes
	RouteAuthLogin   = "/auth/login"
	RouteAuthLogout  = "/auth/logout"
	RouteCallback    = "/auth/callback"
	RouteAuthSession = "/auth/session"

	// API routes
	RouteAPIMe  = "/api/me"
	RouteHealth = "/healthz"
)
