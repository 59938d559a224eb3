package common

// RequestIDHeaderName is the HTTP header carrying a per-request correlation id.
const RequestIDHeaderName = "X-Request-ID"

// AuthorizationHeaderName carries the bearer credential in token-based mode.
const AuthorizationHeaderName = "Authorization"

// Surfaces the client navigates to on session transitions.
const (
	LandingPath = "/"
	LoginPath   = "/connexion"

	// RedirectQueryParam holds the originally requested path on the login surface.
	RedirectQueryParam = "redirect"
)
