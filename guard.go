package authclient

import (
	"context"
	"time"
)

// Intent describes a navigation attempt. It is produced per navigation and
// consumed by exactly one guard decision.
type Intent struct {
	Name         string
	FullPath     string
	RequiresAuth bool
}

// DecisionKind enumerates the terminal outcomes of a guard decision.
type DecisionKind string

const (
	DecisionAllow           DecisionKind = "allow"
	DecisionRedirectLogin   DecisionKind = "redirect_login"
	DecisionRedirectLanding DecisionKind = "redirect_landing"
)

// Decision is the outcome of Guard.Decide.
type Decision struct {
	Kind DecisionKind
	// RouteName is the route the navigation ends on.
	RouteName string
	// Location is the path to commit, including the redirect query if any.
	Location string
	// RedirectPath is the originally requested path for login redirects.
	RedirectPath string
}

// Allowed reports whether the navigation can be committed unchanged.
func (d Decision) Allowed() bool {
	return d.Kind == DecisionAllow
}

// SessionState is the session surface the guard reads.
type SessionState interface {
	IsAuthenticated() bool
	User() *User
	FetchProfile(ctx context.Context) error
}

// Guard decides whether a navigation is allowed, must go to login, or must go
// to the landing route.
type Guard struct {
	session      SessionState
	routes       *RouteTable
	loginName    string
	loginPath    string
	landingName  string
	landingPath  string
	param        string
	profileCheck bool
	logger       Logger
	activitySink ActivitySink
	now          func() time.Time
}

// GuardOption customizes Guard construction.
type GuardOption func(*Guard)

// WithGuardLogger sets the guard logger.
func WithGuardLogger(logger Logger) GuardOption {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithGuardActivitySink publishes every decision to sink.
func WithGuardActivitySink(sink ActivitySink) GuardOption {
	return func(g *Guard) {
		g.activitySink = normalizeActivitySink(sink)
	}
}

// WithGuardRoutes sets the table used by Navigate to resolve paths.
func WithGuardRoutes(routes *RouteTable) GuardOption {
	return func(g *Guard) {
		if routes != nil {
			g.routes = routes
		}
	}
}

// WithProfileCheck toggles the profile completion step before protected
// routes.
func WithProfileCheck(enabled bool) GuardOption {
	return func(g *Guard) {
		g.profileCheck = enabled
	}
}

// NewGuard returns a guard reading session.
func NewGuard(session SessionState, cfg Config, opts ...GuardOption) *Guard {
	g := &Guard{
		session:      session,
		routes:       NewRouteTable(),
		loginName:    cfg.GetLoginRouteName(),
		loginPath:    cfg.GetLoginPath(),
		landingName:  cfg.GetLandingRouteName(),
		landingPath:  cfg.GetLandingPath(),
		param:        cfg.GetRedirectParam(),
		profileCheck: cfg.GetProfileCheck(),
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		now:          time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	return g
}

// Decide runs the guard protocol for to. Authentication is checked before
// profile completeness, and the login page check runs last so it never
// short-circuits an authentication requirement.
func (g *Guard) Decide(ctx context.Context, to Intent) Decision {
	decision := g.decide(ctx, to)

	g.logger.Debug("navigation to %s (%s): %s %s", to.FullPath, to.Name, decision.Kind, decision.Location)
	recordActivity(ctx, g.activitySink, g.logger, g.now, ActivityEvent{
		EventType: ActivityEventNavigation,
		Metadata: map[string]any{
			"route":    to.Name,
			"path":     to.FullPath,
			"decision": string(decision.Kind),
			"location": decision.Location,
		},
	})

	return decision
}

func (g *Guard) decide(ctx context.Context, to Intent) Decision {
	if to.RequiresAuth {
		if !g.session.IsAuthenticated() {
			return g.toLogin(to)
		}

		if g.profileCheck && g.session.User() == nil {
			if err := g.session.FetchProfile(ctx); err != nil {
				g.logger.Info("profile check failed before %s: %v", to.FullPath, err)
				return g.toLogin(to)
			}
			// PolicyLogout may have cleared the session without an error
			// reaching us when a newer operation won the race.
			if !g.session.IsAuthenticated() {
				return g.toLogin(to)
			}
		}
	}

	if to.Name == g.loginName && g.session.IsAuthenticated() {
		return Decision{
			Kind:      DecisionRedirectLanding,
			RouteName: g.landingName,
			Location:  g.landingPath,
		}
	}

	return Decision{
		Kind:      DecisionAllow,
		RouteName: to.Name,
		Location:  to.FullPath,
	}
}

func (g *Guard) toLogin(to Intent) Decision {
	return Decision{
		Kind:         DecisionRedirectLogin,
		RouteName:    g.loginName,
		Location:     LoginLocation(g.loginPath, g.param, to.FullPath),
		RedirectPath: to.FullPath,
	}
}

// Navigate resolves fullPath through the route table and decides on it.
func (g *Guard) Navigate(ctx context.Context, fullPath string) Decision {
	return g.Decide(ctx, g.routes.Resolve(fullPath))
}
