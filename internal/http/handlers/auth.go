package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/coursehub/internal/auth"
	"github.com/geocoder89/coursehub/internal/config"
	"github.com/geocoder89/coursehub/internal/domain/principal"
	"github.com/geocoder89/coursehub/internal/http/middlewares"
	"github.com/geocoder89/coursehub/internal/observability"
	"github.com/gin-gonic/gin"
)

type PrincipalStore interface {
	Create(ctx context.Context, p principal.Principal) (principal.Principal, error)
	GetByEmail(ctx context.Context, email string) (principal.Principal, error)
	GetByID(ctx context.Context, id string) (principal.Principal, error)
	UpdateProfile(ctx context.Context, p principal.Principal) (principal.Principal, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}

type TokenManager interface {
	Kind() principal.Kind
	Issue(principalID string) (string, time.Time, error)
	Verify(token string) (*auth.Claims, error)
	Remaining(c *auth.Claims) time.Duration
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Check(hash, plain string) error
}

// AuthHandler serves signup, login, logout and profile routes for one
// principal kind. Users and admins each get their own instance, store and
// token manager.
type AuthHandler struct {
	kind      principal.Kind
	store     PrincipalStore
	tokens    TokenManager
	hasher    PasswordHasher
	denylist  auth.Denylist
	prom      *observability.Prom
	log       *slog.Logger
	secure    bool
	sameSite  http.SameSite
	dummyHash string
}

func NewAuthHandler(
	store PrincipalStore,
	tokens TokenManager,
	hasher PasswordHasher,
	denylist auth.Denylist,
	prom *observability.Prom,
	log *slog.Logger,
	cfg config.Config,
) *AuthHandler {
	h := &AuthHandler{
		kind:     tokens.Kind(),
		store:    store,
		tokens:   tokens,
		hasher:   hasher,
		denylist: denylist,
		prom:     prom,
		log:      log,
		secure:   cfg.IsProd(),
		sameSite: http.SameSiteStrictMode,
	}

	// the admin console may be served from another site in production
	if h.kind == principal.KindAdmin {
		h.sameSite = http.SameSiteLaxMode
		if cfg.IsProd() {
			h.sameSite = http.SameSiteNoneMode
		}
	}

	// compared against when the email is unknown so both login failures cost
	// one bcrypt comparison
	if hash, err := hasher.Hash("coursehub-login-timing"); err != nil {
		log.Error("login timing hash unavailable, unknown emails will hash per request", "kind", h.kind, "err", err)
	} else {
		h.dummyHash = hash
	}

	return h
}

func (h *AuthHandler) SignUp(ctx *gin.Context) {
	var req principal.SignUpRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx, 5*time.Second)
	defer cancel()

	hash, err := h.hasher.Hash(req.Password)

	if err != nil {
		RespondInternal(ctx, "Error while signing up", err)
		return
	}

	p, err := h.store.Create(cctx, principal.New(h.kind, req, hash))

	if err != nil {
		if errors.Is(err, principal.ErrEmailTaken) {
			RespondConflict(ctx, "already_exists", h.kind.Label()+" already exists")
			return
		}

		RespondInternal(ctx, "Error while signing up", err)
		return
	}

	h.log.InfoContext(cctx, "principal signed up", "kind", h.kind, "principal_id", p.ID)

	RespondOK(ctx, http.StatusCreated, h.kind.Label()+" signed up successfully", gin.H{
		"user": p.Summary(),
	})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req principal.LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx, 5*time.Second)
	defer cancel()

	found, err := h.store.GetByEmail(cctx, req.Email)

	if err != nil {
		if !errors.Is(err, principal.ErrNotFound) {
			h.prom.ObserveLogin(string(h.kind), "error")
			RespondInternal(ctx, "Error while logging in", err)
			return
		}

		h.burnHashCost(req.Password)
		h.prom.ObserveLogin(string(h.kind), "invalid")
		RespondInvalidCredentials(ctx)
		return
	}

	if err := h.hasher.Check(found.PasswordHash, req.Password); err != nil {
		h.prom.ObserveLogin(string(h.kind), "invalid")
		RespondInvalidCredentials(ctx)
		return
	}

	token, expiresAt, err := h.tokens.Issue(found.ID)

	if err != nil {
		h.prom.ObserveLogin(string(h.kind), "error")
		RespondInternal(ctx, "Error while logging in", err)
		return
	}

	h.prom.ObserveLogin(string(h.kind), "ok")
	h.setSessionCookie(ctx, token, expiresAt)

	RespondOK(ctx, http.StatusAccepted, "Login successful", gin.H{
		"user":  found.Summary(),
		"token": token,
	})
}

// burnHashCost spends one bcrypt operation on plain when there is no stored
// hash to compare against.
func (h *AuthHandler) burnHashCost(plain string) {
	if h.dummyHash != "" {
		_ = h.hasher.Check(h.dummyHash, plain)
		return
	}
	_, _ = h.hasher.Hash(plain)
}

// Logout always succeeds and clears the cookie. With a denylist configured
// the presented token is also revoked for the rest of its lifetime.
func (h *AuthHandler) Logout(ctx *gin.Context) {
	if raw := middlewares.TokenFromRequest(ctx); raw != "" && h.denylist != nil {
		claims, err := h.tokens.Verify(raw)

		if err == nil {
			cctx, cancel := requestContext(ctx, 2*time.Second)
			defer cancel()

			if err := h.denylist.Revoke(cctx, claims.JTI, h.tokens.Remaining(claims)); err != nil {
				h.log.WarnContext(cctx, "token revoke failed", "kind", h.kind, "err", err)
			}
		}
	}

	h.clearSessionCookie(ctx)

	RespondOK(ctx, http.StatusOK, "Logged out successfully", nil)
}

func (h *AuthHandler) UpdateProfile(ctx *gin.Context) {
	id, ok := middlewares.ActorIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "Missing identity context")
		return
	}

	var req principal.ProfileUpdate

	if !BindJSON(ctx, &req) {
		return
	}

	if req.IsEmpty() {
		RespondBadRequest(ctx, "Nothing to update", gin.H{"fields": []FieldError{
			{Field: "firstName", Rule: "required_without_all", Message: "provide at least one of firstName, lastName, email"},
		}})
		return
	}

	cctx, cancel := requestContext(ctx, 5*time.Second)
	defer cancel()

	current, err := h.store.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, principal.ErrNotFound) {
			RespondNotFound(ctx, h.kind.Label()+" not found")
			return
		}
		RespondInternal(ctx, "Internal Server Error", err)
		return
	}

	updated, err := h.store.UpdateProfile(cctx, req.Apply(current))

	if err != nil {
		switch {
		case errors.Is(err, principal.ErrEmailTaken):
			RespondConflict(ctx, "already_exists", "Email is already in use")
		case errors.Is(err, principal.ErrNotFound):
			RespondNotFound(ctx, h.kind.Label()+" not found")
		default:
			RespondInternal(ctx, "Internal Server Error", err)
		}
		return
	}

	RespondOK(ctx, http.StatusOK, "Profile updated successfully", gin.H{
		"user": updated.Summary(),
	})
}

func (h *AuthHandler) UpdatePassword(ctx *gin.Context) {
	id, ok := middlewares.ActorIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "Missing identity context")
		return
	}

	var req principal.PasswordUpdateRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx, 5*time.Second)
	defer cancel()

	current, err := h.store.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, principal.ErrNotFound) {
			RespondNotFound(ctx, h.kind.Label()+" not found")
			return
		}
		RespondInternal(ctx, "Something went wrong", err)
		return
	}

	if err := h.hasher.Check(current.PasswordHash, req.CurrentPassword); err != nil {
		RespondError(ctx, http.StatusBadRequest, "incorrect_password", "Incorrect current password", nil)
		return
	}

	hash, err := h.hasher.Hash(req.NewPassword)

	if err != nil {
		RespondInternal(ctx, "Something went wrong", err)
		return
	}

	if err := h.store.UpdatePasswordHash(cctx, id, hash); err != nil {
		if errors.Is(err, principal.ErrNotFound) {
			RespondNotFound(ctx, h.kind.Label()+" not found")
			return
		}
		RespondInternal(ctx, "Something went wrong", err)
		return
	}

	RespondOK(ctx, http.StatusOK, "Password updated successfully", nil)
}

func (h *AuthHandler) setSessionCookie(ctx *gin.Context, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())

	ctx.SetSameSite(h.sameSite)
	ctx.SetCookie(
		middlewares.CookieName,
		token,
		maxAge,
		"/",
		"",
		h.secure,
		true, // HttpOnly.
	)
}

func (h *AuthHandler) clearSessionCookie(ctx *gin.Context) {
	ctx.SetSameSite(h.sameSite)
	ctx.SetCookie(
		middlewares.CookieName,
		"",
		-1,
		"/",
		"",
		h.secure,
		true,
	)
}
