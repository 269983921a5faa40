package authclient

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Storage is the persistent key-value port backing the credential and device
// stores. Implementations must be safe for concurrent use.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Navigator performs navigation outside of the guarded router flow.
type Navigator interface {
	// Current returns the path of the current location.
	Current() string
	// HardRedirect replaces the current location, discarding in-memory state.
	HardRedirect(location string)
}

// User is the profile returned by the backend for the current bearer.
type User struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      UserRole   `json:"role"`
	IsActive  *bool      `json:"is_active,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// Config holds client options
type Config interface {
	GetVariant() Variant
	GetBaseURL() string
	GetLoginEndpoint() string
	GetProfileEndpoint() string
	GetLogoutEndpoint() string
	GetTokenKey() string
	GetDeviceKey() string
	GetUserAgent() string
	GetLoginFailureMessage() string
	GetProfilePolicy() ProfilePolicy
	GetProfileCheck() bool
	GetDiscardExpiredTokens() bool
	GetLoginRouteName() string
	GetLoginPath() string
	GetLandingRouteName() string
	GetLandingPath() string
	GetRedirectParam() string
	GetRequestTimeout() time.Duration
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH-CLIENT "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH-CLIENT "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH-CLIENT "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH-CLIENT "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
