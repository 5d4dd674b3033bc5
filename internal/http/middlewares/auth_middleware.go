package middlewares

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/geocoder89/coursehub/internal/actorctx"
	"github.com/geocoder89/coursehub/internal/auth"
	"github.com/geocoder89/coursehub/internal/domain/principal"
	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	Kind() principal.Kind
	Verify(token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	jwt      TokenVerifier
	denylist auth.Denylist
}

// NewAuthMiddleware guards routes of the verifier's principal kind. denylist
// may be nil, in which case logged-out tokens stay valid until expiry.
func NewAuthMiddleware(jwt TokenVerifier, denylist auth.Denylist) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt, denylist: denylist}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := TokenFromRequest(c)
		if raw == "" {
			abort(c, http.StatusUnauthorized, "unauthorized", "Missing or invalid access token")
			return
		}

		claims, err := m.jwt.Verify(raw)
		if err != nil {
			abort(c, http.StatusUnauthorized, "unauthorized", "Invalid or expired access token")
			return
		}

		if m.denylist != nil {
			revoked, err := m.denylist.IsRevoked(c.Request.Context(), claims.JTI)
			if err != nil {
				slog.Default().ErrorContext(c.Request.Context(), "denylist lookup failed", "err", err)
				abort(c, http.StatusInternalServerError, "internal_error", "Could not verify session")
				return
			}
			if revoked {
				abort(c, http.StatusUnauthorized, "unauthorized", "Session has been logged out")
				return
			}
		}

		// Stash useful bits of identity on the context
		c.Set(CtxActorID, claims.PrincipalID)
		c.Set(CtxActorKind, claims.Kind)

		ctx := actorctx.WithActor(c.Request.Context(), actorctx.Actor{
			ID:   claims.PrincipalID,
			Kind: claims.Kind,
		})
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// TokenFromRequest prefers the Authorization header and falls back to the
// session cookie.
func TokenFromRequest(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		if raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer ")); raw != "" {
			return raw
		}
	}

	cookie, err := c.Cookie(CookieName)
	if err == nil {
		return strings.TrimSpace(cookie)
	}

	return ""
}

// Optional helpers so handlers don’t need to know the magic keys.

func ActorIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(CtxActorID)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

func ActorKindFromContext(c *gin.Context) (principal.Kind, bool) {
	v, ok := c.Get(CtxActorKind)
	if !ok {
		return "", false
	}
	kind, ok := v.(principal.Kind)
	return kind, ok
}

