package variables

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := NewResolver(map[string]Declaration{
		"greeting":  {Default: strptr("hello")},
		"api_token": {Required: true, Secret: true},
	})
	require.NoError(t, err)
	return r
}

func TestParseTemplate(t *testing.T) {
	tmpl, err := ParseTemplate("{{ greeting }}, {{name}}!")
	require.NoError(t, err)
	assert.Equal(t, []string{"greeting", "name"}, tmpl.References())
	assert.False(t, tmpl.IsLiteral())

	lit, err := ParseTemplate("no placeholders here")
	require.NoError(t, err)
	assert.True(t, lit.IsLiteral())

	_, err = ParseTemplate("{{ unterminated")
	assert.Error(t, err)

	_, err = ParseTemplate("{{ }}")
	assert.Error(t, err)

	_, err = ParseTemplate("{{ NotValid }}")
	assert.Error(t, err)
}

func TestValidateKey(t *testing.T) {
	assert.NoError(t, ValidateKey("a"))
	assert.NoError(t, ValidateKey("api_token"))
	assert.Error(t, ValidateKey("API"))
	assert.Error(t, ValidateKey("_leading"))
	assert.Error(t, ValidateKey("trailing_"))
	assert.Error(t, ValidateKey("1number"))
	assert.Error(t, ValidateKey(""))
}

func TestResolveApp(t *testing.T) {
	ctx := context.Background()
	r := newTestResolver(t)

	// Default applies with no providers.
	v, err := r.ResolveApp(ctx, "greeting")
	require.NoError(t, err)
	assert.Equal(t, "hello", v)

	// Required variable with no provider value is undefined.
	_, err = r.ResolveApp(ctx, "api_token")
	assert.ErrorIs(t, err, ErrUndefined)

	// Provider value wins over default.
	r.AddProvider(&StaticProvider{Values: map[string]string{
		"greeting":  "hi",
		"api_token": "s3cret",
	}})
	v, err = r.ResolveApp(ctx, "greeting")
	require.NoError(t, err)
	assert.Equal(t, "hi", v)

	v, err = r.ResolveApp(ctx, "api_token")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", v)

	// Undeclared variables are rejected.
	_, err = r.ResolveApp(ctx, "missing")
	assert.ErrorIs(t, err, ErrUndefined)
}

func TestEnvProvider(t *testing.T) {
	ctx := context.Background()
	p := &EnvProvider{Lookup: func(key string) (string, bool) {
		if key == "SPIN_VARIABLE_API_TOKEN" {
			return "from-env", true
		}
		return "", false
	}}

	v, ok, err := p.Get(ctx, "api_token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "from-env", v)

	_, ok, err = p.Get(ctx, "other")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestComponentVariables(t *testing.T) {
	ctx := context.Background()
	r := newTestResolver(t)
	r.AddProvider(&StaticProvider{Values: map[string]string{"api_token": "tok"}})

	require.NoError(t, r.AddComponentVariables("api", map[string]string{
		"auth_header": "Bearer {{ api_token }}",
		"static":      "fixed",
	}))

	v, err := r.Resolve(ctx, "api", "auth_header")
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", v)

	all, err := r.ResolveAll(ctx, "api")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"auth_header": "Bearer tok", "static": "fixed"}, all)

	// Unknown component variable.
	_, err = r.Resolve(ctx, "api", "nope")
	assert.ErrorIs(t, err, ErrUndefined)

	// Reference to an undeclared variable is rejected at registration.
	err = r.AddComponentVariables("bad", map[string]string{"x": "{{ nope }}"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "undeclared")
}

func TestExpandString(t *testing.T) {
	ctx := context.Background()
	r := newTestResolver(t)
	r.AddProvider(&StaticProvider{Values: map[string]string{"api_token": "tok"}})

	v, err := r.ExpandString(ctx, "https://{{ greeting }}.example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://hello.example.com", v)
}
