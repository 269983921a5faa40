package authclient

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// UnauthorizedEvent describes a 401 response observed by the transport.
type UnauthorizedEvent struct {
	Method     string
	Path       string
	Status     int
	HadToken   bool
	OccurredAt time.Time
}

// UnauthorizedListener reacts to an UnauthorizedEvent. Listeners run
// synchronously before the response is handed back to the caller.
type UnauthorizedListener func(ctx context.Context, event UnauthorizedEvent)

type signalCtxKey struct{}

// WithoutUnauthorizedSignal marks ctx so a 401 response to requests made with
// it does not emit an UnauthorizedEvent.
func WithoutUnauthorizedSignal(ctx context.Context) context.Context {
	return context.WithValue(ctx, signalCtxKey{}, true)
}

func unauthorizedSignalDisabled(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	skip, _ := ctx.Value(signalCtxKey{}).(bool)
	return skip
}

type listenerEntry struct {
	id uint64
	fn UnauthorizedListener
}

// TransportBinder owns the shared HTTP client. It attaches the bound bearer
// token to every outgoing request and publishes 401 responses to subscribers.
type TransportBinder struct {
	mu            sync.RWMutex
	token         string
	base          http.RoundTripper
	client        *http.Client
	listeners     []listenerEntry
	nextID        uint64
	loginPath     string
	redirectParam string
	now           func() time.Time
	logger        Logger
}

// BinderOption customizes TransportBinder construction.
type BinderOption func(*TransportBinder)

// WithBaseTransport sets the round tripper performing the actual requests.
func WithBaseTransport(rt http.RoundTripper) BinderOption {
	return func(b *TransportBinder) {
		if rt != nil {
			b.base = rt
		}
	}
}

// WithRequestTimeout sets the timeout of the shared client.
func WithRequestTimeout(timeout time.Duration) BinderOption {
	return func(b *TransportBinder) {
		if timeout > 0 {
			b.client.Timeout = timeout
		}
	}
}

// WithLoginEntryPoint sets where hard redirects land and the query parameter
// carrying the return path.
func WithLoginEntryPoint(path, param string) BinderOption {
	return func(b *TransportBinder) {
		if path != "" {
			b.loginPath = path
		}
		if param != "" {
			b.redirectParam = param
		}
	}
}

// WithBinderLogger sets the binder logger.
func WithBinderLogger(logger Logger) BinderOption {
	return func(b *TransportBinder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithBinderClock injects a custom clock (useful for tests).
func WithBinderClock(clock func() time.Time) BinderOption {
	return func(b *TransportBinder) {
		if clock != nil {
			b.now = clock
		}
	}
}

// NewTransportBinder returns a binder with no token attached.
func NewTransportBinder(opts ...BinderOption) *TransportBinder {
	b := &TransportBinder{
		base:          http.DefaultTransport,
		client:        &http.Client{},
		loginPath:     "/login",
		redirectParam: "redirect",
		now:           time.Now,
		logger:        defLogger{},
	}
	b.client.Transport = b

	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}

	return b
}

// Client returns the shared HTTP client every backend call must go through.
func (b *TransportBinder) Client() *http.Client {
	return b.client
}

// Bind attaches token to future requests. An empty token removes it.
func (b *TransportBinder) Bind(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.token = token
}

// Token returns the currently bound token.
func (b *TransportBinder) Token() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.token
}

// OnUnauthorized subscribes listener to 401 responses. The returned function
// removes the subscription.
func (b *TransportBinder) OnUnauthorized(listener UnauthorizedListener) func() {
	if listener == nil {
		return func() {}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.listeners = append(b.listeners, listenerEntry{id: id, fn: listener})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, entry := range b.listeners {
				if entry.id == id {
					b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// InstallUnauthorizedHandler runs handler on every 401 and then forces a hard
// redirect to the login entry point, unless navigator already points there.
// It is the recovery path for requests issued outside guarded navigation.
func (b *TransportBinder) InstallUnauthorizedHandler(handler UnauthorizedListener, navigator Navigator) func() {
	return b.OnUnauthorized(func(ctx context.Context, event UnauthorizedEvent) {
		if handler != nil {
			handler(ctx, event)
		}

		if navigator == nil {
			return
		}

		current := navigator.Current()
		if samePath(current, b.loginPath) {
			return
		}

		location := LoginLocation(b.loginPath, b.redirectParam, current)
		b.logger.Info("unauthorized response for %s %s, redirecting to %s", event.Method, event.Path, location)
		navigator.HardRedirect(location)
	})
}

// RoundTrip implements http.RoundTripper.
func (b *TransportBinder) RoundTrip(req *http.Request) (*http.Response, error) {
	token := b.Token()

	out := req
	if token != "" && req.Header.Get("Authorization") == "" {
		out = req.Clone(req.Context())
		out.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := b.base.RoundTrip(out)
	if err != nil {
		return resp, err
	}

	if resp.StatusCode == http.StatusUnauthorized && !unauthorizedSignalDisabled(req.Context()) {
		b.emit(req.Context(), UnauthorizedEvent{
			Method:     req.Method,
			Path:       req.URL.Path,
			Status:     resp.StatusCode,
			HadToken:   out.Header.Get("Authorization") != "",
			OccurredAt: b.now(),
		})
	}

	return resp, nil
}

func (b *TransportBinder) emit(ctx context.Context, event UnauthorizedEvent) {
	b.mu.RLock()
	listeners := make([]listenerEntry, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.RUnlock()

	b.logger.Debug("emitting unauthorized event for %s %s to %d listeners", event.Method, event.Path, len(listeners))

	for _, entry := range listeners {
		entry.fn(ctx, event)
	}
}
