package http

import (
	"fmt"
	"sort"
	"strings"

	"github.com/itowlson/spin/internal/manifest"
)

// Router matches request paths against trigger routes. Routes are either
// exact ("/api/users") or trailing wildcards ("/api/..."). The most
// specific route wins: longest prefix first, and an exact route beats a
// wildcard of the same length.
type Router struct {
	entries []routeEntry
}

type routeEntry struct {
	raw       string
	prefix    string // path before /..., or the whole route when exact
	wildcard  bool
	component string
}

// Match describes the route chosen for a request path.
type Match struct {
	// Route is the raw route as written in the manifest.
	Route string
	// Component is the component id the route maps to.
	Component string
	// PathInfo is the trailing path segment captured by a wildcard,
	// including its leading slash. Empty for exact routes.
	PathInfo string
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{}
}

// Add registers a route for a component. Duplicate routes are a
// configuration error.
func (r *Router) Add(route, component string) error {
	if err := manifest.ValidateRoute(route); err != nil {
		return err
	}
	for _, e := range r.entries {
		if e.raw == route {
			return fmt.Errorf("route %q registered twice", route)
		}
	}
	e := routeEntry{raw: route, prefix: route, component: component}
	if strings.HasSuffix(route, "/...") {
		e.wildcard = true
		e.prefix = strings.TrimSuffix(route, "/...")
	}
	r.entries = append(r.entries, e)

	// Longest prefix first; exact before wildcard at equal length.
	sort.SliceStable(r.entries, func(i, j int) bool {
		a, b := r.entries[i], r.entries[j]
		if len(a.prefix) != len(b.prefix) {
			return len(a.prefix) > len(b.prefix)
		}
		return !a.wildcard && b.wildcard
	})
	return nil
}

// Match finds the best route for a request path.
func (r *Router) Match(path string) (Match, bool) {
	for _, e := range r.entries {
		if e.wildcard {
			// "/api/..." matches "/api" itself and everything below it.
			if path == e.prefix || strings.HasPrefix(path, e.prefix+"/") || e.prefix == "" {
				return Match{
					Route:     e.raw,
					Component: e.component,
					PathInfo:  strings.TrimPrefix(path, e.prefix),
				}, true
			}
			continue
		}
		if path == e.prefix {
			return Match{Route: e.raw, Component: e.component}, true
		}
	}
	return Match{}, false
}

// Routes returns a human-readable summary of registered routes, most
// specific first.
func (r *Router) Routes() []string {
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = fmt.Sprintf("%s -> %s", e.raw, e.component)
	}
	return out
}
