package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, secret, issuer, audience string, expiresAt time.Time) string {
	t.Helper()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestVerifyAcceptsValidToken(t *testing.T) {
	v := NewVerifier("top-secret", "briefly", "briefly-query-api")
	token := signToken(t, "top-secret", "briefly", "briefly-query-api", time.Now().Add(time.Hour))

	if _, err := v.Verify(token); err != nil {
		t.Fatalf("expected valid token to verify, got %v", err)
	}
}

func TestVerifyRejectsMissingToken(t *testing.T) {
	v := NewVerifier("top-secret", "", "")
	if _, err := v.Verify(""); err != ErrMissingToken {
		t.Errorf("err = %v, want ErrMissingToken", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	v := NewVerifier("top-secret", "", "")
	token := signToken(t, "wrong-secret", "", "", time.Now().Add(time.Hour))
	if _, err := v.Verify(token); err == nil {
		t.Error("expected verification to fail with the wrong secret")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	v := NewVerifier("top-secret", "", "")
	token := signToken(t, "top-secret", "", "", time.Now().Add(-time.Hour))
	if _, err := v.Verify(token); err == nil {
		t.Error("expected verification to fail for an expired token")
	}
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	v := NewVerifier("top-secret", "briefly", "")
	token := signToken(t, "top-secret", "someone-else", "", time.Now().Add(time.Hour))
	if _, err := v.Verify(token); err == nil {
		t.Error("expected verification to fail for a mismatched issuer")
	}
}

func TestVerifyRejectsWrongAudience(t *testing.T) {
	v := NewVerifier("top-secret", "", "briefly-query-api")
	token := signToken(t, "top-secret", "", "someone-else", time.Now().Add(time.Hour))
	if _, err := v.Verify(token); err == nil {
		t.Error("expected verification to fail for a mismatched audience")
	}
}
