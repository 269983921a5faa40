package authclient

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenInfo is what the client can learn from a bearer token without the
// signing key. Signature verification is the backend's job.
type TokenInfo struct {
	Subject   string
	ExpiresAt *time.Time
	IssuedAt  *time.Time
	Version   int
}

// Expired reports whether the token carries an expiry before now.
func (t TokenInfo) Expired(now time.Time) bool {
	if t.ExpiresAt == nil {
		return false
	}
	return !now.Before(*t.ExpiresAt)
}

type tokenClaims struct {
	jwt.RegisteredClaims
	TokenVersion int `json:"token_version,omitempty"`
}

// InspectToken decodes the claims of a JWT bearer without verifying it.
// Opaque (non JWT) tokens return ok == false.
func InspectToken(raw string) (TokenInfo, bool) {
	if raw == "" {
		return TokenInfo{}, false
	}

	claims := &tokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return TokenInfo{}, false
	}

	info := TokenInfo{
		Subject: claims.Subject,
		Version: claims.TokenVersion,
	}
	if claims.ExpiresAt != nil {
		exp := claims.ExpiresAt.Time
		info.ExpiresAt = &exp
	}
	if claims.IssuedAt != nil {
		iat := claims.IssuedAt.Time
		info.IssuedAt = &iat
	}

	return info, true
}

// TokenExpired reports whether raw is a JWT whose exp claim is in the past.
// Opaque tokens are never considered expired.
func TokenExpired(raw string, now time.Time) bool {
	info, ok := InspectToken(raw)
	if !ok {
		return false
	}
	return info.Expired(now)
}
