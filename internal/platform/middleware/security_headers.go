package middleware

import (
	"github.com/labstack/echo/v4"
)

// FormCSP allows the upload page to post back to its own origin and nothing
// else: no scripts, styles, images or framing.
const FormCSP = "default-src 'none'; form-action 'self'; frame-ancestors 'none'"

var securityHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"X-XSS-Protection", "0"},
	{"Content-Security-Policy", FormCSP},
	{"Referrer-Policy", "no-referrer"},
	{"Permissions-Policy", "camera=(), microphone=(), geolocation=()"},
	// Uploads and extracted records are patient data.
	{"Cache-Control", "no-store"},
}

// SecurityHeaders sets the response headers for the JSON API and the upload
// form. Strict-Transport-Security is only sent when the server terminates TLS.
func SecurityHeaders(hsts bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for _, kv := range securityHeaders {
				h.Set(kv[0], kv[1])
			}
			if hsts {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			return next(c)
		}
	}
}
