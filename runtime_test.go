package authclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	authclient "github.com/goliatone/go-auth-client"
	"github.com/goliatone/go-auth-client/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend accepts any password for ada and rejects profile calls once
// revoked is set.
func fakeBackend(t *testing.T, revoked *atomic.Bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body authclient.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Email != "ada@example.com" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Invalid credentials"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "tok-ada"})
	})
	mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if revoked.Load() || r.Header.Get("Authorization") != "Bearer tok-ada" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Could not validate credentials"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": "u-ada", "email": "ada@example.com", "role": "admin"})
	})
	mux.HandleFunc("/api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"detail": "Logged out"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRuntimeUnauthorizedExpiresSessionAndRedirects(t *testing.T) {
	ctx := context.Background()
	revoked := &atomic.Bool{}
	srv := fakeBackend(t, revoked)

	opts := authclient.AdminConsoleOptions()
	opts.BaseURL = srv.URL
	navigator := &fakeNavigator{current: "/login"}
	store := storage.NewMemory(nil)

	rt := authclient.NewRuntime(opts, store,
		authclient.WithLogger(quietLogger{}),
		authclient.WithNavigator(navigator),
	)
	defer rt.Close()

	require.NoError(t, rt.Session.Login(ctx, "ada@example.com", "pw"))
	assert.Equal(t, authclient.PhaseAuthenticated, rt.Session.Phase())
	assert.Equal(t, "tok-ada", rt.Binder.Token())

	navigator.current = "/audit"
	revoked.Store(true)

	_, err := rt.API.Profile(ctx)
	assert.Error(t, err)

	assert.Equal(t, authclient.PhaseAnonymous, rt.Session.Phase())
	assert.Empty(t, rt.Binder.Token())
	assert.Equal(t, []string{"/login?redirect=/audit"}, navigator.Redirects())

	decision := rt.Navigate(ctx, "/audit")
	assert.Equal(t, authclient.DecisionRedirectLogin, decision.Kind)
}

func TestRuntimeFailedLoginOnLoginPageDoesNotRedirect(t *testing.T) {
	srv := fakeBackend(t, &atomic.Bool{})

	opts := authclient.PublicPortalOptions()
	opts.BaseURL = srv.URL
	navigator := &fakeNavigator{current: "/login?redirect=/article/1"}

	rt := authclient.NewRuntime(opts, storage.NewMemory(nil),
		authclient.WithLogger(quietLogger{}),
		authclient.WithNavigator(navigator),
	)
	defer rt.Close()

	err := rt.Session.Login(context.Background(), "eve@example.com", "pw")
	assert.True(t, authclient.IsInvalidCredentials(err))
	assert.Equal(t, "Invalid credentials", rt.Session.Error())
	assert.Empty(t, navigator.Redirects())
}

func TestRuntimeFailedReloginKeepsBackendDetail(t *testing.T) {
	ctx := context.Background()
	profileDown := &atomic.Bool{}
	profileDown.Store(true)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body authclient.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Password != "pw" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Invalid credentials"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "tok-ada"})
	})
	mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if profileDown.Load() {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"detail": "db down"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": "u-ada", "email": "ada@example.com", "role": "admin"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	opts := authclient.AdminConsoleOptions()
	opts.BaseURL = srv.URL
	navigator := &fakeNavigator{current: "/login"}

	rt := authclient.NewRuntime(opts, storage.NewMemory(nil),
		authclient.WithLogger(quietLogger{}),
		authclient.WithNavigator(navigator),
	)
	defer rt.Close()

	err := rt.Session.Login(ctx, "ada@example.com", "pw")
	assert.True(t, authclient.IsProfileFetchFailure(err))
	assert.Equal(t, authclient.PhaseAuthenticatedNoProfile, rt.Session.Phase())
	assert.Equal(t, "db down", rt.Session.Error())

	err = rt.Session.Login(ctx, "ada@example.com", "wrong")
	assert.True(t, authclient.IsInvalidCredentials(err))

	state := rt.Session.Snapshot()
	assert.Equal(t, authclient.PhaseAnonymous, state.Phase())
	assert.Equal(t, "Invalid credentials", state.Error)
	assert.False(t, state.Loading)
	assert.Empty(t, navigator.Redirects())
}

func TestRuntimeCloseDetachesSession(t *testing.T) {
	ctx := context.Background()
	revoked := &atomic.Bool{}
	srv := fakeBackend(t, revoked)

	opts := authclient.AdminConsoleOptions()
	opts.BaseURL = srv.URL
	store := storage.NewMemory(map[string]string{"mcs_token": "tok-ada"})

	rt := authclient.NewRuntime(opts, store, authclient.WithLogger(quietLogger{}))
	assert.Equal(t, authclient.VariantAdminConsole, rt.Config.GetVariant())
	_, ok := rt.Routes.Lookup("dashboard")
	assert.True(t, ok)

	rt.Close()
	rt.Close()

	revoked.Store(true)
	_, err := rt.API.Profile(ctx)
	assert.Error(t, err)
	assert.True(t, rt.Session.IsAuthenticated())
}

func TestRuntimeCustomRoutes(t *testing.T) {
	opts := authclient.PublicPortalOptions()
	routes := authclient.NewRouteTable(
		authclient.Route{Name: "login", Pattern: "/login"},
		authclient.Route{Name: "vault", Pattern: "/vault", RequiresAuth: true},
	)

	rt := authclient.NewRuntime(opts, storage.NewMemory(nil),
		authclient.WithLogger(quietLogger{}),
		authclient.WithRoutes(routes),
	)
	defer rt.Close()

	decision := rt.Navigate(context.Background(), "/vault")
	assert.Equal(t, "/login?redirect=/vault", decision.Location)
}
