package authclient

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// Route declares a named navigation target. RequiresAuth is the only route
// level setting the guard reads.
type Route struct {
	Name         string
	Pattern      string
	RequiresAuth bool
}

// RouteTable resolves paths into navigation intents.
type RouteTable struct {
	mux    *chi.Mux
	routes map[string]Route
	order  []Route
}

// NewRouteTable returns a table holding routes. Patterns use chi syntax, for
// example /article/{id}.
func NewRouteTable(routes ...Route) *RouteTable {
	t := &RouteTable{
		mux:    chi.NewRouter(),
		routes: map[string]Route{},
	}
	for _, r := range routes {
		t.MustAdd(r)
	}
	return t
}

// Add registers route. Duplicate names or patterns are rejected.
func (t *RouteTable) Add(route Route) error {
	if route.Name == "" || !strings.HasPrefix(route.Pattern, "/") {
		return fmt.Errorf("route %q needs a name and an absolute pattern", route.Pattern)
	}
	if _, exists := t.routes[route.Pattern]; exists {
		return fmt.Errorf("route pattern %q already registered", route.Pattern)
	}
	if _, exists := t.Lookup(route.Name); exists {
		return fmt.Errorf("route name %q already registered", route.Name)
	}

	t.mux.Get(route.Pattern, func(http.ResponseWriter, *http.Request) {})
	t.routes[route.Pattern] = route
	t.order = append(t.order, route)
	return nil
}

// MustAdd is Add that panics on error.
func (t *RouteTable) MustAdd(route Route) {
	if err := t.Add(route); err != nil {
		panic(err)
	}
}

// Routes returns the registered routes in insertion order.
func (t *RouteTable) Routes() []Route {
	out := make([]Route, len(t.order))
	copy(out, t.order)
	return out
}

// Lookup finds a route by name.
func (t *RouteTable) Lookup(name string) (Route, bool) {
	for _, r := range t.order {
		if r.Name == name {
			return r, true
		}
	}
	return Route{}, false
}

// Match finds the route serving fullPath and its path parameters.
func (t *RouteTable) Match(fullPath string) (Route, map[string]string, bool) {
	rctx := chi.NewRouteContext()
	if !t.mux.Match(rctx, http.MethodGet, pathOf(fullPath)) {
		return Route{}, nil, false
	}

	route, ok := t.routes[rctx.RoutePattern()]
	if !ok {
		return Route{}, nil, false
	}

	params := make(map[string]string, len(rctx.URLParams.Keys))
	for i, key := range rctx.URLParams.Keys {
		if i < len(rctx.URLParams.Values) {
			params[key] = rctx.URLParams.Values[i]
		}
	}
	return route, params, true
}

// Resolve builds the navigation intent for fullPath. Unknown paths do not
// require authentication.
func (t *RouteTable) Resolve(fullPath string) Intent {
	if !strings.HasPrefix(fullPath, "/") {
		fullPath = "/" + fullPath
	}

	route, _, ok := t.Match(fullPath)
	if !ok {
		return Intent{FullPath: fullPath}
	}

	return Intent{
		Name:         route.Name,
		FullPath:     fullPath,
		RequiresAuth: route.RequiresAuth,
	}
}

// AdminConsoleRoutes returns the admin console route set. Everything except
// the login page requires authentication.
func AdminConsoleRoutes() *RouteTable {
	return NewRouteTable(
		Route{Name: "login", Pattern: "/login"},
		Route{Name: "dashboard", Pattern: "/", RequiresAuth: true},
		Route{Name: "members", Pattern: "/members", RequiresAuth: true},
		Route{Name: "contents", Pattern: "/contents", RequiresAuth: true},
		Route{Name: "categories", Pattern: "/categories", RequiresAuth: true},
		Route{Name: "media", Pattern: "/media", RequiresAuth: true},
		Route{Name: "audit", Pattern: "/audit", RequiresAuth: true},
	)
}

// PublicPortalRoutes returns the portal route set. Only article pages require
// authentication.
func PublicPortalRoutes() *RouteTable {
	return NewRouteTable(
		Route{Name: "home", Pattern: "/"},
		Route{Name: "category", Pattern: "/category/{id}"},
		Route{Name: "article", Pattern: "/article/{id}", RequiresAuth: true},
		Route{Name: "login", Pattern: "/login"},
	)
}

// RoutesForVariant returns the route set of a deployment preset.
func RoutesForVariant(v Variant) *RouteTable {
	if v == VariantPublicPortal {
		return PublicPortalRoutes()
	}
	return AdminConsoleRoutes()
}
