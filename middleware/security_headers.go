// middleware/security_headers.go
package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// SecurityHeadersWithConfig sets the hardening headers on every response.
// The API only serves JSON, so the CSP is locked down unless config opens it.
func SecurityHeadersWithConfig(config SecurityConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()

			// Security headers
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-XSS-Protection", "1; mode=block")
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
			h.Set("Content-Security-Policy", buildCSP(config))
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

			// Remove potentially sensitive headers
			h.Del("Server")
			h.Del("X-Powered-By")

			return next(c)
		}
	}
}

type SecurityConfig struct {
	AllowedDomains []string
	AllowInlineJS  bool
	AllowEval      bool
}

func buildCSP(config SecurityConfig) string {
	csp := []string{
		"default-src 'none'",
		"img-src 'self' data:",
		"frame-ancestors 'none'",
	}

	switch {
	case config.AllowInlineJS && config.AllowEval:
		csp = append(csp, "script-src 'self' 'unsafe-inline' 'unsafe-eval'")
	case config.AllowInlineJS:
		csp = append(csp, "script-src 'self' 'unsafe-inline'")
	case config.AllowEval:
		csp = append(csp, "script-src 'self' 'unsafe-eval'")
	}

	if len(config.AllowedDomains) > 0 {
		csp = append(csp, "connect-src 'self' "+strings.Join(config.AllowedDomains, " "))
	}

	return strings.Join(csp, "; ")
}
