package devbackend

import (
	"errors"
	"fmt"
	"sort"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	authclient "github.com/goliatone/go-auth-client"
	"golang.org/x/crypto/bcrypt"
)

const (
	detailInvalidCredentials = "Invalid credentials"
	detailNotAuthenticated   = "Could not validate credentials"
	detailAccountDisabled    = "Account disabled"
	detailLoggedOut          = "Logged out"
)

type loginPayload struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	DeviceID   string `json:"device_id"`
	DeviceInfo string `json:"device_info"`
}

func (p loginPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.Email),
		validation.Field(&p.Password, validation.Required),
		validation.Field(&p.DeviceID, validation.Required),
	)
}

type loginResult struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Claims are the JWT claims minted by the backend.
type Claims struct {
	jwt.RegisteredClaims
	TokenVersion int `json:"token_version"`
}

func (s *Server) login(c *fiber.Ctx) error {
	payload := new(loginPayload)
	if err := c.BodyParser(payload); err != nil {
		return detail(c, fiber.StatusBadRequest, "Malformed request body")
	}

	if err := payload.Validate(); err != nil {
		return detail(c, fiber.StatusUnprocessableEntity, err.Error())
	}

	email := normalizeEmail(payload.Email)

	s.mu.Lock()
	account, ok := s.accounts[email]
	var hash, userID string
	active := false
	if ok {
		hash, userID, active = account.PasswordHash, account.User.ID, isActive(account)
	}
	s.mu.Unlock()

	if !ok || bcrypt.CompareHashAndPassword([]byte(hash), []byte(payload.Password)) != nil {
		s.recordLogin(payload, "", false)
		s.logger.Info("login rejected for %s", email)
		return detail(c, fiber.StatusUnauthorized, detailInvalidCredentials)
	}

	if !active {
		s.recordLogin(payload, userID, false)
		return detail(c, fiber.StatusForbidden, detailAccountDisabled)
	}

	now := s.now()

	s.mu.Lock()
	account.TokenVersion++
	version := account.TokenVersion
	s.mu.Unlock()

	expiresAt := now.Add(s.tokenTTL).UTC().Truncate(time.Second)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		TokenVersion: version,
	})

	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}

	s.recordLogin(payload, userID, true)
	s.logger.Debug("login %s from device %s", email, payload.DeviceID)

	return c.JSON(loginResult{
		AccessToken: signed,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt,
	})
}

func (s *Server) me(c *fiber.Ctx) error {
	account, ok := accountFrom(c)
	if !ok {
		return detail(c, fiber.StatusUnauthorized, detailNotAuthenticated)
	}

	s.mu.Lock()
	user := account.User
	s.mu.Unlock()

	return c.JSON(user)
}

func (s *Server) logout(c *fiber.Ctx) error {
	account, ok := accountFrom(c)
	if !ok {
		return detail(c, fiber.StatusUnauthorized, detailNotAuthenticated)
	}

	s.mu.Lock()
	account.TokenVersion++
	s.mu.Unlock()

	return detail(c, fiber.StatusOK, detailLoggedOut)
}

// members lists every account. Admin only.
func (s *Server) members(c *fiber.Ctx) error {
	s.mu.Lock()
	users := make([]authclient.User, 0, len(s.byID))
	for _, account := range s.byID {
		users = append(users, account.User)
	}
	s.mu.Unlock()

	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	return c.JSON(fiber.Map{"items": users, "total": len(users)})
}

func (s *Server) recordLogin(p *loginPayload, userID string, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, AuditEntry{
		Email:      normalizeEmail(p.Email),
		UserID:     userID,
		DeviceID:   p.DeviceID,
		DeviceInfo: p.DeviceInfo,
		Success:    success,
		At:         s.now(),
	})
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request %s %s failed: %v", c.Method(), c.Path(), err)
	}
	return detail(c, code, err.Error())
}

func detail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"detail": message})
}

func isActive(a *Account) bool {
	return a.User.IsActive == nil || *a.User.IsActive
}
