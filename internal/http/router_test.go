package http

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, routes map[string]string) *Router {
	t.Helper()
	r := NewRouter()
	for route, component := range routes {
		require.NoError(t, r.Add(route, component))
	}
	return r
}

func TestRouterMatching(t *testing.T) {
	r := newTestRouter(t, map[string]string{
		"/":              "root",
		"/...":           "fallback",
		"/api/...":       "api",
		"/api/users":     "users",
		"/api/users/...": "user-tree",
		"/about":         "about",
	})

	tests := []struct {
		path          string
		wantComponent string
		wantPathInfo  string
	}{
		{"/", "root", ""},
		{"/about", "about", ""},
		// Exact beats wildcard.
		{"/api/users", "users", ""},
		// Longest wildcard wins.
		{"/api/users/42", "user-tree", "/42"},
		{"/api/orders", "api", "/orders"},
		// Wildcard matches its own prefix.
		{"/api", "api", ""},
		// Root wildcard catches the rest.
		{"/anything/else", "fallback", "/anything/else"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			m, ok := r.Match(tt.path)
			require.True(t, ok)
			assert.Equal(t, tt.wantComponent, m.Component)
			assert.Equal(t, tt.wantPathInfo, m.PathInfo)
		})
	}
}

func TestRouterNoMatch(t *testing.T) {
	r := newTestRouter(t, map[string]string{
		"/api/...": "api",
		"/about":   "about",
	})

	for _, path := range []string{"/", "/aboutus", "/apiv2", "/other"} {
		_, ok := r.Match(path)
		assert.False(t, ok, path)
	}
}

func TestRouterRejectsBadRoutes(t *testing.T) {
	r := NewRouter()
	assert.Error(t, r.Add("no-slash", "c"))
	assert.Error(t, r.Add("/mid/.../tail", "c"))
	assert.Error(t, r.Add("", "c"))

	require.NoError(t, r.Add("/dup", "a"))
	err := r.Add("/dup", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registered twice")
}

func TestRouterRoutesSummary(t *testing.T) {
	r := newTestRouter(t, map[string]string{
		"/...":     "fallback",
		"/api/...": "api",
	})
	assert.Equal(t, []string{"/api/... -> api", "/... -> fallback"}, r.Routes())
}
