// Package auth verifies bearer JWTs on the query API surface. The system
// has no user/session model (spec.md Non-goals): a verified token only
// gates access to the query endpoint, it carries no per-user state.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the minimal claim set this verifier cares about.
type Claims struct {
	jwt.RegisteredClaims
}

// Verifier checks a bearer token's signature, issuer, and audience against
// an HMAC secret, per the Auth config section.
type Verifier struct {
	secret   []byte
	issuer   string
	audience string
}

// NewVerifier builds a Verifier. An empty issuer or audience skips that
// check, matching a permissive local-dev deployment.
func NewVerifier(hmacSecret, issuer, audience string) *Verifier {
	return &Verifier{secret: []byte(hmacSecret), issuer: issuer, audience: audience}
}

var (
	// ErrMissingToken is returned when the caller presents no bearer token.
	ErrMissingToken = errors.New("auth: missing bearer token")
	// ErrInvalidToken wraps any signature, issuer, audience, or expiry failure.
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Verify parses and validates tokenString, returning its claims on success.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if v.issuer != "" {
		issuer, err := claims.GetIssuer()
		if err != nil || issuer != v.issuer {
			return nil, fmt.Errorf("%w: unexpected issuer", ErrInvalidToken)
		}
	}
	if v.audience != "" {
		audiences, err := claims.GetAudience()
		if err != nil || !containsAudience(audiences, v.audience) {
			return nil, fmt.Errorf("%w: unexpected audience", ErrInvalidToken)
		}
	}

	return claims, nil
}

func containsAudience(audiences []string, want string) bool {
	for _, a := range audiences {
		if a == want {
			return true
		}
	}
	return false
}
