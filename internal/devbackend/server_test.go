package devbackend_test

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	authclient "github.com/goliatone/go-auth-client"
	"github.com/goliatone/go-auth-client/internal/devbackend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type quietLogger struct{}

func (quietLogger) Debug(string, ...any) {}
func (quietLogger) Info(string, ...any)  {}
func (quietLogger) Warn(string, ...any)  {}
func (quietLogger) Error(string, ...any) {}

func newServer(t *testing.T, opts ...devbackend.Option) *devbackend.Server {
	t.Helper()
	srv := devbackend.New(append([]devbackend.Option{
		devbackend.WithBcryptCost(bcrypt.MinCost),
		devbackend.WithLogger(quietLogger{}),
	}, opts...)...)

	_, err := srv.AddUser("Ada", "ada@example.com", "s3cret", authclient.RoleAdmin)
	require.NoError(t, err)
	_, err = srv.AddUser("Bob", "bob@example.com", "hunter2", authclient.RoleMember)
	require.NoError(t, err)
	return srv
}

func do(t *testing.T, srv *devbackend.Server, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, "http://backend.test"+path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := srv.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func login(t *testing.T, srv *devbackend.Server, email, password string) string {
	t.Helper()
	status, body := do(t, srv, http.MethodPost, "/api/auth/login", "",
		`{"email":"`+email+`","password":"`+password+`","device_id":"dev-1","device_info":"test-agent"}`)
	require.Equal(t, http.StatusOK, status, body)
	token, _ := body["access_token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestAddUserDerivesStableID(t *testing.T) {
	srv := devbackend.New(devbackend.WithBcryptCost(bcrypt.MinCost), devbackend.WithLogger(quietLogger{}))
	user, err := srv.AddUser("Ada", " ADA@example.com ", "pw", authclient.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.NotEmpty(t, user.ID)

	other := devbackend.New(devbackend.WithBcryptCost(bcrypt.MinCost), devbackend.WithLogger(quietLogger{}))
	again, err := other.AddUser("Ada", "ada@example.com", "pw", authclient.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)

	_, err = srv.AddUser("Ada", "ada@example.com", "pw", authclient.RoleAdmin)
	assert.ErrorIs(t, err, devbackend.ErrUserExists)

	_, err = srv.AddUser("Eve", "eve@example.com", "", authclient.RoleMember)
	assert.ErrorIs(t, err, devbackend.ErrEmptyPassword)
}

func TestLoginAndProfile(t *testing.T) {
	srv := newServer(t)
	token := login(t, srv, "ada@example.com", "s3cret")

	info, ok := authclient.InspectToken(token)
	require.True(t, ok)
	assert.Equal(t, 1, info.Version)

	status, body := do(t, srv, http.MethodGet, "/api/auth/me", token, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ada@example.com", body["email"])
	assert.Equal(t, "admin", body["role"])
	assert.Equal(t, info.Subject, body["id"])

	audit := srv.Audit()
	require.Len(t, audit, 1)
	assert.True(t, audit[0].Success)
	assert.Equal(t, "dev-1", audit[0].DeviceID)
	assert.Equal(t, "test-agent", audit[0].DeviceInfo)
}

func TestLoginRejections(t *testing.T) {
	srv := newServer(t)

	tests := []struct {
		name   string
		body   string
		status int
		detail string
	}{
		{
			name:   "wrong password",
			body:   `{"email":"ada@example.com","password":"nope","device_id":"d"}`,
			status: http.StatusUnauthorized,
			detail: "Invalid credentials",
		},
		{
			name:   "unknown user",
			body:   `{"email":"who@example.com","password":"nope","device_id":"d"}`,
			status: http.StatusUnauthorized,
			detail: "Invalid credentials",
		},
		{
			name:   "missing device",
			body:   `{"email":"ada@example.com","password":"s3cret"}`,
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "malformed",
			body:   `{"email":`,
			status: http.StatusBadRequest,
			detail: "Malformed request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, srv, http.MethodPost, "/api/auth/login", "", tt.body)
			assert.Equal(t, tt.status, status)
			if tt.detail != "" {
				assert.Equal(t, tt.detail, body["detail"])
			} else {
				assert.NotEmpty(t, body["detail"])
			}
		})
	}
}

func TestDisabledAccount(t *testing.T) {
	srv := newServer(t)
	token := login(t, srv, "bob@example.com", "hunter2")

	require.True(t, srv.SetActive("bob@example.com", false))

	status, body := do(t, srv, http.MethodPost, "/api/auth/login", "",
		`{"email":"bob@example.com","password":"hunter2","device_id":"d"}`)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Account disabled", body["detail"])

	status, _ = do(t, srv, http.MethodGet, "/api/auth/me", token, "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestNewLoginRevokesPreviousToken(t *testing.T) {
	srv := newServer(t)
	first := login(t, srv, "ada@example.com", "s3cret")
	second := login(t, srv, "ada@example.com", "s3cret")

	status, _ := do(t, srv, http.MethodGet, "/api/auth/me", first, "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = do(t, srv, http.MethodGet, "/api/auth/me", second, "")
	assert.Equal(t, http.StatusOK, status)
}

func TestLogoutRevokesToken(t *testing.T) {
	srv := newServer(t)
	token := login(t, srv, "ada@example.com", "s3cret")

	status, body := do(t, srv, http.MethodPost, "/api/auth/logout", token, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Logged out", body["detail"])

	status, body = do(t, srv, http.MethodGet, "/api/auth/me", token, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Could not validate credentials", body["detail"])

	status, _ = do(t, srv, http.MethodPost, "/api/auth/logout", token, "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestExpiredToken(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	srv := newServer(t, devbackend.WithClock(clock), devbackend.WithTokenTTL(time.Minute))

	token := login(t, srv, "ada@example.com", "s3cret")
	assert.False(t, authclient.TokenExpired(token, now))

	now = now.Add(2 * time.Minute)
	assert.True(t, authclient.TokenExpired(token, now))

	status, _ := do(t, srv, http.MethodGet, "/api/auth/me", token, "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestMissingBearer(t *testing.T) {
	srv := newServer(t)
	status, _ := do(t, srv, http.MethodGet, "/api/auth/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = do(t, srv, http.MethodGet, "/api/auth/me", "not-a-jwt", "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestMembersRequiresAdmin(t *testing.T) {
	srv := newServer(t)

	status, _ := do(t, srv, http.MethodGet, "/api/members", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	member := login(t, srv, "bob@example.com", "hunter2")
	status, body := do(t, srv, http.MethodGet, "/api/members", member, "")
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Not enough permissions", body["detail"])

	admin := login(t, srv, "ada@example.com", "s3cret")
	status, body = do(t, srv, http.MethodGet, "/api/members", admin, "")
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, body["total"])
}

func TestBearerScheme(t *testing.T) {
	srv := newServer(t)
	token := login(t, srv, "ada@example.com", "s3cret")

	req, err := http.NewRequest(http.MethodGet, "http://backend.test/api/auth/me", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "bearer "+token)
	resp, err := srv.App().Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req.Header.Set("Authorization", "Token "+token)
	resp, err = srv.App().Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
