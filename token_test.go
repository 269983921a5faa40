package authclient_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	authclient "github.com/goliatone/go-auth-client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, subject string, expiresAt time.Time, version int) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":           subject,
		"iat":           expiresAt.Add(-time.Hour).Unix(),
		"token_version": version,
	}
	if !expiresAt.IsZero() {
		claims["exp"] = expiresAt.Unix()
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return raw
}

func TestInspectToken(t *testing.T) {
	exp := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	raw := signedToken(t, "user-7", exp, 3)

	info, ok := authclient.InspectToken(raw)
	require.True(t, ok)
	assert.Equal(t, "user-7", info.Subject)
	assert.Equal(t, 3, info.Version)
	require.NotNil(t, info.ExpiresAt)
	assert.True(t, exp.Equal(*info.ExpiresAt))
	require.NotNil(t, info.IssuedAt)
	assert.True(t, exp.Add(-time.Hour).Equal(*info.IssuedAt))
}

func TestInspectTokenRejectsOpaqueTokens(t *testing.T) {
	for _, raw := range []string{"", "opaque-token", "a.b.c"} {
		_, ok := authclient.InspectToken(raw)
		assert.False(t, ok, raw)
	}
}

func TestTokenExpired(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		raw      string
		expected bool
	}{
		{name: "past expiry", raw: signedToken(t, "u", now.Add(-time.Second), 1), expected: true},
		{name: "expiry is now", raw: signedToken(t, "u", now, 1), expected: true},
		{name: "future expiry", raw: signedToken(t, "u", now.Add(time.Minute), 1), expected: false},
		{name: "no expiry", raw: signedToken(t, "u", time.Time{}, 1), expected: false},
		{name: "opaque", raw: "opaque", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, authclient.TokenExpired(tt.raw, now))
		})
	}
}
