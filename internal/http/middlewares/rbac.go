package middlewares

import (
	"net/http"

	"github.com/geocoder89/coursehub/internal/domain/principal"
	"github.com/gin-gonic/gin"
)

// RequireKind runs after RequireAuth and rejects any actor of another kind.
func RequireKind(required principal.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		kind, ok := ActorKindFromContext(c)

		if !ok || kind == "" {
			abort(c, http.StatusUnauthorized, "unauthorized", "Missing identity context")
			return
		}
		if kind != required {
			abort(c, http.StatusUnauthorized, "unauthorized", required.Label()+" session required")
			return
		}
		c.Next()
	}
}
