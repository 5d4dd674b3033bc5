package auth

import (
	"errors"
	"time"

	"github.com/geocoder89/coursehub/internal/domain/principal"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionTTL is fixed; there is no refresh, an expired session means a new login.
const SessionTTL = 24 * time.Hour

const issuer = "coursehub"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrWrongKind    = errors.New("token issued for another principal kind")
)

type Claims struct {
	PrincipalID string         `json:"sub"`
	Kind        principal.Kind `json:"kind"`
	JTI         string         `json:"jti"`
	jwt.RegisteredClaims
}

// Manager issues and verifies session tokens for exactly one principal kind.
// User and admin managers are built with independent secrets.
type Manager struct {
	kind   principal.Kind
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewManager(kind principal.Kind, secret string) *Manager {
	return &Manager{
		kind:   kind,
		secret: []byte(secret),
		ttl:    SessionTTL,
		now:    time.Now,
	}
}

// WithClock replaces the time source, for tests that need expired tokens.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	c := *m
	c.now = now
	return &c
}

func (m *Manager) Kind() principal.Kind {
	return m.kind
}

// Issue signs a token for principalID valid for SessionTTL.
func (m *Manager) Issue(principalID string) (token string, expiresAt time.Time, err error) {
	now := m.now().UTC()
	expiresAt = now.Add(m.ttl)
	jti := uuid.NewString()

	claims := Claims{
		PrincipalID: principalID,
		Kind:        m.kind,
		JTI:         jti,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{string(m.kind)},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	token, err = t.SignedString(m.secret)

	return
}

// Verify validates signature, algorithm, expiry, issuer, audience and the
// explicit kind claim. Every failure is reported as ErrInvalidToken or
// ErrWrongKind so callers fail closed without leaking detail.
func (m *Manager) Verify(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		// Enforce HS256

		_, ok := t.Method.(*jwt.SigningMethodHMAC)

		if !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(string(m.kind)),
		jwt.WithTimeFunc(m.now),
	)

	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)

	if !ok || !token.Valid || claims.PrincipalID == "" {
		return nil, ErrInvalidToken
	}

	if !claims.Kind.IsValid() {
		return nil, ErrInvalidToken
	}

	if claims.Kind != m.kind {
		return nil, ErrWrongKind
	}

	return claims, nil
}

// Remaining reports how long the token is still valid, for denylist TTLs.
func (m *Manager) Remaining(c *Claims) time.Duration {
	if c == nil || c.ExpiresAt == nil {
		return 0
	}

	d := c.ExpiresAt.Time.Sub(m.now())
	if d < 0 {
		return 0
	}
	return d
}
