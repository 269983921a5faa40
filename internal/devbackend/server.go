// Package devbackend is an in-process identity backend that speaks the wire
// contract the session expects: POST login, GET me and POST logout under
// /api/auth. It backs the integration tests and the serve-dev command.
package devbackend

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	authclient "github.com/goliatone/go-auth-client"
	"github.com/goliatone/hashid/pkg/hashid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserExists    = errors.New("user already registered")
	ErrEmptyPassword = errors.New("password can not be empty")
)

// Account is a backend user record.
type Account struct {
	User         authclient.User
	PasswordHash string
	TokenVersion int
}

// AuditEntry records one login attempt.
type AuditEntry struct {
	Email      string
	UserID     string
	DeviceID   string
	DeviceInfo string
	Success    bool
	At         time.Time
}

// Server holds accounts and serves the auth endpoints.
type Server struct {
	app *fiber.App

	mu       sync.Mutex
	accounts map[string]*Account
	byID     map[string]*Account
	audit    []AuditEntry

	prefix      string
	membersPath string
	signingKey  []byte
	tokenTTL    time.Duration
	bcryptCost  int
	now         func() time.Time
	logger      authclient.Logger
}

// Option customizes Server construction.
type Option func(*Server)

func WithSigningKey(key string) Option {
	return func(s *Server) {
		if key != "" {
			s.signingKey = []byte(key)
		}
	}
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// WithBcryptCost sets the password hashing cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Server) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.bcryptCost = cost
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(logger authclient.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPrefix mounts the endpoints under prefix instead of /api/auth.
func WithPrefix(prefix string) Option {
	return func(s *Server) {
		if strings.HasPrefix(prefix, "/") {
			s.prefix = strings.TrimRight(prefix, "/")
		}
	}
}

// New returns a server with no accounts.
func New(opts ...Option) *Server {
	s := &Server{
		accounts:    map[string]*Account{},
		byID:        map[string]*Account{},
		prefix:      "/api/auth",
		membersPath: "/api/members",
		signingKey:  []byte("dev-backend-secret"),
		tokenTTL:    time.Hour,
		bcryptCost:  bcrypt.DefaultCost,
		now:         time.Now,
		logger:      defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})

	bearer := NewBearer(BearerConfig{Validate: s.validateToken})
	adminOnly := NewBearer(BearerConfig{
		Validate:    s.validateToken,
		MinimumRole: authclient.RoleAdmin,
	})

	auth := s.app.Group(s.prefix)
	auth.Post("/login", s.login)
	auth.Get("/me", bearer, s.me)
	auth.Post("/logout", bearer, s.logout)

	s.app.Get(s.membersPath, adminOnly, s.members)

	return s
}

// AddUser registers an account. The user id is derived from the email.
func (s *Server) AddUser(name, email, password string, role authclient.UserRole) (authclient.User, error) {
	if password == "" {
		return authclient.User{}, ErrEmptyPassword
	}

	email = normalizeEmail(email)
	id, err := hashid.NewUUID(email)
	if err != nil {
		return authclient.User{}, fmt.Errorf("derive user id: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return authclient.User{}, fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[email]; exists {
		return authclient.User{}, ErrUserExists
	}

	active := true
	created := s.now().UTC()
	account := &Account{
		User: authclient.User{
			ID:        id.String(),
			Name:      name,
			Email:     email,
			Role:      role,
			IsActive:  &active,
			CreatedAt: &created,
		},
		PasswordHash: string(hash),
	}
	s.accounts[email] = account
	s.byID[account.User.ID] = account

	return account.User, nil
}

// SetActive enables or disables an account. Disabled accounts can not log in
// and their tokens stop validating.
func (s *Server) SetActive(email string, active bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[normalizeEmail(email)]
	if !ok {
		return false
	}
	account.User.IsActive = &active
	return true
}

// Revoke invalidates every token issued to email.
func (s *Server) Revoke(email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[normalizeEmail(email)]
	if !ok {
		return false
	}
	account.TokenVersion++
	return true
}

// Audit returns a copy of the login audit trail.
func (s *Server) Audit() []AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AuditEntry, len(s.audit))
	copy(out, s.audit)
	return out
}

// App exposes the fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Transport returns a round tripper that serves requests in process, without
// opening a socket.
func (s *Server) Transport() http.RoundTripper {
	return roundTripper{app: s.app}
}

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	return s.app.Listener(ln)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

type roundTripper struct {
	app *fiber.App
}

func (rt roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return rt.app.Test(req, -1)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type defLogger struct{}

func (defLogger) Debug(format string, args ...any) { fmt.Printf("[DBG] DEV-BACKEND "+format+"\n", args...) }
func (defLogger) Info(format string, args ...any)  { fmt.Printf("[INF] DEV-BACKEND "+format+"\n", args...) }
func (defLogger) Warn(format string, args ...any)  { fmt.Printf("[WRN] DEV-BACKEND "+format+"\n", args...) }
func (defLogger) Error(format string, args ...any) { fmt.Printf("[ERR] DEV-BACKEND "+format+"\n", args...) }
