package middlewares

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	apiCSP = "default-src 'none'; frame-ancestors 'none'"
	// locally hosted course images are fetched cross-origin by the storefront
	imagesCSP = "default-src 'none'; img-src 'self'; frame-ancestors 'none'"
	hstsValue = "max-age=31536000; includeSubDomains"
)

// SecurityHeaders sets the response hardening headers. imagesPrefix gets a
// CSP that still allows image rendering; hsts is enabled in production where
// the API sits behind TLS.
func SecurityHeaders(imagesPrefix string, hsts bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "no-referrer")

		if imagesPrefix != "" && strings.HasPrefix(c.Request.URL.Path, imagesPrefix+"/") {
			h.Set("Content-Security-Policy", imagesCSP)
			h.Set("Cross-Origin-Resource-Policy", "cross-origin")
		} else {
			h.Set("Content-Security-Policy", apiCSP)
			h.Set("X-Frame-Options", "DENY")
			h.Set("Cache-Control", "no-store")
		}

		if hsts {
			h.Set("Strict-Transport-Security", hstsValue)
		}

		c.Next()
	}
}
