package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/coursehub/internal/domain/principal"
	"github.com/golang-jwt/jwt/v5"
)

func TestManager_IssueAndVerify(t *testing.T) {
	m := NewManager(principal.KindUser, "user-secret")

	token, exp, err := m.Issue("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if d := time.Until(exp); d < 23*time.Hour || d > 25*time.Hour {
		t.Fatalf("expected ~24h validity, got %s", d)
	}

	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.PrincipalID != "user-1" || claims.Kind != principal.KindUser {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.JTI == "" {
		t.Fatalf("expected a jti")
	}
}

func TestManager_RejectsOtherKindEvenWithSharedSecret(t *testing.T) {
	// same secret on purpose: kind and audience checks must still separate the domains
	userM := NewManager(principal.KindUser, "shared")
	adminM := NewManager(principal.KindAdmin, "shared")

	adminToken, _, err := adminM.Issue("admin-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := userM.Verify(adminToken); err == nil {
		t.Fatalf("user verifier accepted an admin token")
	}

	userToken, _, _ := userM.Issue("user-1")
	if _, err := adminM.Verify(userToken); err == nil {
		t.Fatalf("admin verifier accepted a user token")
	}
}

func TestManager_RejectsOtherKindWithSeparateSecrets(t *testing.T) {
	userM := NewManager(principal.KindUser, "user-secret")
	adminM := NewManager(principal.KindAdmin, "admin-secret")

	adminToken, _, _ := adminM.Issue("admin-1")

	if _, err := userM.Verify(adminToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestManager_RejectsForgedKindClaim(t *testing.T) {
	// a token with the right secret and audience but the wrong kind claim
	m := NewManager(principal.KindUser, "user-secret")

	claims := Claims{
		PrincipalID: "x",
		Kind:        principal.KindAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{string(principal.KindUser)},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("user-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := m.Verify(token); !errors.Is(err, ErrWrongKind) {
		t.Fatalf("expected ErrWrongKind, got %v", err)
	}
}

func TestManager_RejectsUnknownKindClaim(t *testing.T) {
	m := NewManager(principal.KindUser, "user-secret")

	claims := Claims{
		PrincipalID: "x",
		Kind:        principal.Kind("root"),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{string(principal.KindUser)},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("user-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := m.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestManager_RejectsExpired(t *testing.T) {
	past := time.Now().Add(-48 * time.Hour)
	old := NewManager(principal.KindUser, "user-secret").WithClock(func() time.Time { return past })

	token, _, err := old.Issue("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := NewManager(principal.KindUser, "user-secret").Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}

func TestManager_RejectsTamperedAndMalformed(t *testing.T) {
	m := NewManager(principal.KindUser, "user-secret")
	token, _, _ := m.Issue("user-1")

	parts := strings.Split(token, ".")
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	cases := map[string]string{
		"empty":     "",
		"garbage":   "not.a.token",
		"tampered":  tampered,
		"wrongsign": mustSign(t, "other-secret"),
	}

	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := m.Verify(tok); err == nil {
				t.Fatalf("expected rejection")
			}
		})
	}
}

func TestManager_RejectsNoneAlgorithm(t *testing.T) {
	m := NewManager(principal.KindUser, "user-secret")

	claims := Claims{
		PrincipalID: "user-1",
		Kind:        principal.KindUser,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{"user"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := m.Verify(token); err == nil {
		t.Fatalf("alg=none token was accepted")
	}
}

func TestManager_Remaining(t *testing.T) {
	now := time.Now()
	m := NewManager(principal.KindAdmin, "s").WithClock(func() time.Time { return now })

	token, _, _ := m.Issue("a")
	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	if got := m.Remaining(claims); got < SessionTTL-time.Second || got > SessionTTL {
		t.Fatalf("remaining: got %s", got)
	}
	if got := m.Remaining(nil); got != 0 {
		t.Fatalf("remaining(nil): got %s", got)
	}
}

func mustSign(t *testing.T, secret string) string {
	t.Helper()
	tok, _, err := NewManager(principal.KindUser, secret).Issue("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return tok
}
