package gateway

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/carelinkhq/carelink/internal/common"
)

// tokenExpiry extracts the exp claim from an access token without verifying
// the signature. The token was just issued to us over TLS; we only need the
// expiry to schedule refresh, the provider remains the authority on validity.
func tokenExpiry(raw string) (time.Time, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, common.ErrInvalidToken
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, common.ErrInvalidToken
	}
	return claims.ExpiresAt.Time, nil
}

// tokenSubject extracts the sub claim (the user id) the same way. Used for
// diagnostics snapshots.
func tokenSubject(raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return "", common.ErrInvalidToken
	}
	return claims.Subject, nil
}
