package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims are the claims usradm reads from an access token. The client
// never holds the signing key, so nothing here is verified; the server stays
// the final arbiter.
type TokenClaims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// InspectToken decodes a JWT without verifying its signature. Opaque tokens
// (Sanctum personal access tokens, for instance) return an error.
func InspectToken(tokenString string) (*TokenClaims, error) {
	if strings.Count(tokenString, ".") != 2 {
		return nil, fmt.Errorf("token is not a JWT")
	}

	claims := &TokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	return claims, nil
}

// TokenExpiry returns the exp claim of a JWT, if it has one
func TokenExpiry(tokenString string) (time.Time, bool) {
	claims, err := InspectToken(tokenString)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time.UTC(), true
}
