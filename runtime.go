package authclient

import (
	"context"
	"net/http"
	"sync"
)

// Runtime wires the session components for one application instance. It
// replaces ambient globals: construct one at start up, pass it (or its parts)
// to whatever needs identity, and Close it on shutdown.
type Runtime struct {
	Config      Config
	Storage     Storage
	Device      *DeviceIdentity
	Credentials *CredentialStore
	Binder      *TransportBinder
	API         *Client
	Session     *Session
	Guard       *Guard
	Routes      *RouteTable

	unsubscribe func()
	closeOnce   sync.Once
}

type runtimeOptions struct {
	logger        Logger
	activitySink  ActivitySink
	navigator     Navigator
	routes        *RouteTable
	baseTransport http.RoundTripper
	deviceOpts    []DeviceOption
	sessionOpts   []SessionOption
	guardOpts     []GuardOption
	binderOpts    []BinderOption
}

// RuntimeOption customizes Runtime construction.
type RuntimeOption func(*runtimeOptions)

// WithLogger sets the logger shared by every component.
func WithLogger(logger Logger) RuntimeOption {
	return func(o *runtimeOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithActivitySink sets the sink shared by the session and the guard.
func WithActivitySink(sink ActivitySink) RuntimeOption {
	return func(o *runtimeOptions) {
		o.activitySink = sink
	}
}

// WithNavigator enables hard redirects to login on unauthorized responses.
func WithNavigator(navigator Navigator) RuntimeOption {
	return func(o *runtimeOptions) {
		o.navigator = navigator
	}
}

// WithRoutes sets the route table; defaults to the preset of the configured
// variant.
func WithRoutes(routes *RouteTable) RuntimeOption {
	return func(o *runtimeOptions) {
		if routes != nil {
			o.routes = routes
		}
	}
}

// WithTransport sets the round tripper under the transport binder.
func WithTransport(rt http.RoundTripper) RuntimeOption {
	return func(o *runtimeOptions) {
		o.baseTransport = rt
	}
}

// WithDeviceOptions forwards options to the device identity provider.
func WithDeviceOptions(opts ...DeviceOption) RuntimeOption {
	return func(o *runtimeOptions) {
		o.deviceOpts = append(o.deviceOpts, opts...)
	}
}

// WithSessionOptions forwards options to the session.
func WithSessionOptions(opts ...SessionOption) RuntimeOption {
	return func(o *runtimeOptions) {
		o.sessionOpts = append(o.sessionOpts, opts...)
	}
}

// WithGuardOptions forwards options to the guard.
func WithGuardOptions(opts ...GuardOption) RuntimeOption {
	return func(o *runtimeOptions) {
		o.guardOpts = append(o.guardOpts, opts...)
	}
}

// WithBinderOptions forwards options to the transport binder.
func WithBinderOptions(opts ...BinderOption) RuntimeOption {
	return func(o *runtimeOptions) {
		o.binderOpts = append(o.binderOpts, opts...)
	}
}

// NewRuntime builds every component from cfg over storage and subscribes the
// session to the binder's unauthorized signal.
func NewRuntime(cfg Config, storage Storage, opts ...RuntimeOption) *Runtime {
	o := &runtimeOptions{logger: defLogger{}}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	if o.routes == nil {
		o.routes = RoutesForVariant(cfg.GetVariant())
	}

	binderOpts := []BinderOption{
		WithBinderLogger(o.logger),
		WithRequestTimeout(cfg.GetRequestTimeout()),
		WithLoginEntryPoint(cfg.GetLoginPath(), cfg.GetRedirectParam()),
	}
	if o.baseTransport != nil {
		binderOpts = append(binderOpts, WithBaseTransport(o.baseTransport))
	}
	binder := NewTransportBinder(append(binderOpts, o.binderOpts...)...)

	device := NewDeviceIdentity(storage, cfg.GetDeviceKey(),
		append([]DeviceOption{WithDeviceLogger(o.logger)}, o.deviceOpts...)...)
	credentials := NewCredentialStore(storage, cfg.GetTokenKey(), o.logger)
	api := NewClient(binder.Client(), cfg, o.logger)

	session := NewSession(cfg, credentials, device, binder, api,
		append([]SessionOption{
			WithSessionLogger(o.logger),
			WithSessionActivitySink(o.activitySink),
		}, o.sessionOpts...)...)

	guard := NewGuard(session, cfg,
		append([]GuardOption{
			WithGuardLogger(o.logger),
			WithGuardActivitySink(o.activitySink),
			WithGuardRoutes(o.routes),
		}, o.guardOpts...)...)

	return &Runtime{
		Config:      cfg,
		Storage:     storage,
		Device:      device,
		Credentials: credentials,
		Binder:      binder,
		API:         api,
		Session:     session,
		Guard:       guard,
		Routes:      o.routes,
		unsubscribe: binder.InstallUnauthorizedHandler(session.HandleUnauthorized, o.navigator),
	}
}

// Navigate runs the guard for fullPath.
func (r *Runtime) Navigate(ctx context.Context, fullPath string) Decision {
	return r.Guard.Navigate(ctx, fullPath)
}

// Close detaches the session from the transport. The runtime must not be used
// afterwards.
func (r *Runtime) Close() {
	r.closeOnce.Do(func() {
		if r.unsubscribe != nil {
			r.unsubscribe()
		}
	})
}
