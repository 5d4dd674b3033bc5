package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireJSON guards the JSON-only auth routes; course writes are multipart
// and are not wrapped with it.
func RequireJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodDelete {
			c.Next()
			return
		}

		// gin strips parameters, so "application/json; charset=utf-8" passes
		if c.ContentType() != gin.MIMEJSON {
			abort(c, http.StatusUnsupportedMediaType, "unsupported_media_type", "Content-Type must be application/json")
			return
		}

		c.Next()
	}
}
