package middlewares

// gin context keys shared by middlewares and handlers.
const (
	CtxRequestID = "request_id"
	CtxActorID   = "auth.actorID"
	CtxActorKind = "auth.actorKind"
)

// CookieName is the session cookie set on login and cleared on logout.
const CookieName = "jwt"
