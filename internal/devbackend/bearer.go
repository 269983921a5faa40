package devbackend

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	authclient "github.com/goliatone/go-auth-client"
)

var (
	ErrBearerMissingOrMalformed = errors.New("missing or malformed bearer token")
	ErrForbidden                = errors.New("access denied")
)

const accountLocalsKey = "account"

// BearerConfig configures the bearer middleware.
type BearerConfig struct {
	Filter       func(*fiber.Ctx) bool
	ErrorHandler func(*fiber.Ctx, error) error
	ContextKey   string
	AuthScheme   string
	// Validate resolves the raw token to an account.
	Validate func(raw string) (*Account, error)
	// MinimumRole rejects accounts below this role with ErrForbidden.
	MinimumRole authclient.UserRole
}

func (cfg BearerConfig) withDefaults() BearerConfig {
	if cfg.Validate == nil {
		panic("DEV-BACKEND: bearer middleware configuration: Validate is required.")
	}
	if cfg.ContextKey == "" {
		cfg.ContextKey = accountLocalsKey
	}
	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c *fiber.Ctx, err error) error {
			if errors.Is(err, ErrForbidden) {
				return detail(c, fiber.StatusForbidden, "Not enough permissions")
			}
			return detail(c, fiber.StatusUnauthorized, detailNotAuthenticated)
		}
	}
	return cfg
}

// NewBearer returns a handler that authenticates the request bearer and
// stores the account under ContextKey.
func NewBearer(config BearerConfig) fiber.Handler {
	cfg := config.withDefaults()

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		raw, err := bearerFromHeader(c.Get(fiber.HeaderAuthorization), cfg.AuthScheme)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		account, err := cfg.Validate(raw)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		if cfg.MinimumRole != "" {
			role, _ := authclient.ParseRole(string(account.User.Role))
			if !role.IsAtLeast(cfg.MinimumRole) {
				return cfg.ErrorHandler(c, fmt.Errorf("%w: minimum role '%s' required", ErrForbidden, cfg.MinimumRole))
			}
		}

		c.Locals(cfg.ContextKey, account)
		return c.Next()
	}
}

func bearerFromHeader(value, scheme string) (string, error) {
	l := len(scheme)
	if len(value) > l+1 && strings.EqualFold(value[:l], scheme) && value[l] == ' ' {
		if token := strings.TrimSpace(value[l:]); token != "" {
			return token, nil
		}
	}
	return "", ErrBearerMissingOrMalformed
}

// accountFrom returns the account stored by the bearer middleware.
func accountFrom(c *fiber.Ctx) (*Account, bool) {
	account, ok := c.Locals(accountLocalsKey).(*Account)
	return account, ok && account != nil
}

// validateToken checks signature, expiry and token version of raw. Tokens
// minted before the account's latest login or logout are rejected.
func (s *Server) validateToken(raw string) (*Account, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.byID[claims.Subject]
	if !ok {
		return nil, errors.New("unknown subject")
	}
	if claims.TokenVersion != account.TokenVersion {
		return nil, errors.New("token revoked")
	}
	if !isActive(account) {
		return nil, errors.New("account disabled")
	}
	return account, nil
}
