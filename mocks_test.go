package authclient_test

import (
	"context"
	"errors"
	"sync"

	authclient "github.com/goliatone/go-auth-client"
	"github.com/goliatone/go-auth-client/storage"
	"github.com/stretchr/testify/mock"
)

// MockAuthAPI implements authclient.AuthAPI
type MockAuthAPI struct {
	mock.Mock
}

func (m *MockAuthAPI) Login(ctx context.Context, payload authclient.LoginRequest) (*authclient.LoginResponse, error) {
	args := m.Called(ctx, payload)
	resp, _ := args.Get(0).(*authclient.LoginResponse)
	return resp, args.Error(1)
}

func (m *MockAuthAPI) Profile(ctx context.Context) (*authclient.User, error) {
	args := m.Called(ctx)
	user, _ := args.Get(0).(*authclient.User)
	return user, args.Error(1)
}

func (m *MockAuthAPI) Logout(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockSessionState implements authclient.SessionState
type MockSessionState struct {
	mock.Mock
}

func (m *MockSessionState) IsAuthenticated() bool {
	return m.Called().Bool(0)
}

func (m *MockSessionState) User() *authclient.User {
	user, _ := m.Called().Get(0).(*authclient.User)
	return user
}

func (m *MockSessionState) FetchProfile(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// recordingBinder implements authclient.TokenBinder
type recordingBinder struct {
	mu     sync.Mutex
	tokens []string
}

func (b *recordingBinder) Bind(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = append(b.tokens, token)
}

func (b *recordingBinder) Current() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.tokens) == 0 {
		return ""
	}
	return b.tokens[len(b.tokens)-1]
}

type fakeNavigator struct {
	mu        sync.Mutex
	current   string
	redirects []string
}

func (n *fakeNavigator) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

func (n *fakeNavigator) HardRedirect(location string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = location
	n.redirects = append(n.redirects, location)
}

func (n *fakeNavigator) Redirects() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.redirects...)
}

var errStorageDown = errors.New("storage down")

// brokenStorage fails every operation.
type brokenStorage struct{}

func (brokenStorage) Get(context.Context, string) (string, bool, error) {
	return "", false, errStorageDown
}

func (brokenStorage) Set(context.Context, string, string) error {
	return errStorageDown
}

func (brokenStorage) Delete(context.Context, string) error {
	return errStorageDown
}

type eventRecorder struct {
	mu     sync.Mutex
	events []authclient.ActivityEvent
}

func (r *eventRecorder) Record(_ context.Context, event authclient.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) Types() []authclient.ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]authclient.ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

type quietLogger struct{}

func (quietLogger) Debug(string, ...any) {}
func (quietLogger) Info(string, ...any)  {}
func (quietLogger) Warn(string, ...any)  {}
func (quietLogger) Error(string, ...any) {}

type sessionFixture struct {
	api     *MockAuthAPI
	binder  *recordingBinder
	store   *storage.Memory
	events  *eventRecorder
	session *authclient.Session
	key     string
}

func newSessionFixture(opts authclient.Options, seed map[string]string, sessionOpts ...authclient.SessionOption) *sessionFixture {
	f := &sessionFixture{
		api:    &MockAuthAPI{},
		binder: &recordingBinder{},
		store:  storage.NewMemory(seed),
		events: &eventRecorder{},
		key:    opts.GetTokenKey(),
	}

	device := authclient.NewDeviceIdentity(f.store, opts.GetDeviceKey(),
		authclient.WithDeviceIDGenerator(func() string { return "device-1" }),
		authclient.WithDeviceLogger(quietLogger{}),
	)
	credentials := authclient.NewCredentialStore(f.store, opts.GetTokenKey(), quietLogger{})

	f.session = authclient.NewSession(opts, credentials, device, f.binder, f.api,
		append([]authclient.SessionOption{
			authclient.WithSessionLogger(quietLogger{}),
			authclient.WithSessionActivitySink(f.events),
		}, sessionOpts...)...)

	return f
}

func (f *sessionFixture) storedToken() (string, bool) {
	v, ok, _ := f.store.Get(context.Background(), f.key)
	return v, ok
}
