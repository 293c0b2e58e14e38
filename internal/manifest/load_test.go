package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validManifest = `
spin_manifest_version = 2

[application]
name = "hello"
version = "0.1.0"

[variables]
greeting = { default = "hello" }
api_token = { required = true, secret = true }

[[trigger.http]]
route = "/..."
component = "site"

[[trigger.http]]
route = "/api/..."
component = "api"

[component.site]
source = "assets"

[component.api]
upstream = "https://backend.example.com"
allowed_outbound_hosts = ["https://backend.example.com"]
variables = { token = "{{ api_token }}" }
`

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "spin.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadValid(t *testing.T) {
	m, err := Load(writeManifest(t, validManifest))
	require.NoError(t, err)

	assert.Equal(t, "hello", m.Application.Name)
	assert.Len(t, m.Trigger.HTTP, 2)
	assert.Len(t, m.Components, 2)

	site := m.Components["site"]
	require.NotNil(t, site.Source)
	assert.Equal(t, "assets", site.Source.Local)
	assert.Equal(t, ExecutorStatic, site.Executor(nil))

	api := m.Components["api"]
	assert.Equal(t, ExecutorProxy, api.Executor(nil))
	assert.Equal(t, "{{ api_token }}", api.Variables["token"])

	greeting := m.Variables["greeting"]
	require.NotNil(t, greeting.Default)
	assert.Equal(t, "hello", *greeting.Default)
	assert.True(t, m.Variables["api_token"].Required)
}

func TestLoadRemoteSource(t *testing.T) {
	m, err := Load(writeManifest(t, `
spin_manifest_version = 2

[application]
name = "remote"

[[trigger.http]]
route = "/..."
component = "site"

[component.site]
source = { url = "https://example.com/site.tar.gz", digest = "sha256:abc123" }
`))
	require.NoError(t, err)
	site := m.Components["site"]
	assert.Equal(t, "https://example.com/site.tar.gz", site.Source.URL)
	assert.Equal(t, "sha256:abc123", site.Source.Digest)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		wantMsg  string
	}{
		{
			name:     "wrong version",
			manifest: `spin_manifest_version = 1`,
			wantMsg:  "unsupported spin_manifest_version",
		},
		{
			name: "unknown key",
			manifest: `
spin_manifest_version = 2
[application]
name = "x"
banana = true
[[trigger.http]]
route = "/..."
component = "a"
[component.a]
source = "assets"
`,
			wantMsg: "unknown keys",
		},
		{
			name: "bad component id",
			manifest: `
spin_manifest_version = 2
[application]
name = "x"
[[trigger.http]]
route = "/..."
component = "MyComp"
[component.MyComp]
source = "assets"
`,
			wantMsg: "kebab-case",
		},
		{
			name: "duplicate route",
			manifest: `
spin_manifest_version = 2
[application]
name = "x"
[[trigger.http]]
route = "/..."
component = "a"
[[trigger.http]]
route = "/..."
component = "b"
[component.a]
source = "assets"
[component.b]
source = "assets"
`,
			wantMsg: "assigned to both",
		},
		{
			name: "unknown component reference",
			manifest: `
spin_manifest_version = 2
[application]
name = "x"
[[trigger.http]]
route = "/..."
component = "ghost"
`,
			wantMsg: "unknown component",
		},
		{
			name: "variable both required and default",
			manifest: `
spin_manifest_version = 2
[application]
name = "x"
[variables]
v = { required = true, default = "nope" }
[[trigger.http]]
route = "/..."
component = "a"
[component.a]
source = "assets"
`,
			wantMsg: "cannot be both required",
		},
		{
			name: "interior wildcard",
			manifest: `
spin_manifest_version = 2
[application]
name = "x"
[[trigger.http]]
route = "/a/.../b"
component = "a"
[component.a]
source = "assets"
`,
			wantMsg: "trailing /... wildcard",
		},
		{
			name: "static with no content",
			manifest: `
spin_manifest_version = 2
[application]
name = "x"
[[trigger.http]]
route = "/..."
component = "a"
[component.a]
description = "empty"
`,
			wantMsg: "no source or files",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeManifest(t, tt.manifest))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestValidateRoute(t *testing.T) {
	assert.NoError(t, ValidateRoute("/"))
	assert.NoError(t, ValidateRoute("/..."))
	assert.NoError(t, ValidateRoute("/api/v1"))
	assert.NoError(t, ValidateRoute("/api/..."))
	assert.Error(t, ValidateRoute(""))
	assert.Error(t, ValidateRoute("api"))
	assert.Error(t, ValidateRoute("/a/.../b"))
	assert.Error(t, ValidateRoute("/a..."))
}

func TestExecutorInference(t *testing.T) {
	assert.Equal(t, ExecutorProxy, (&Component{Upstream: "https://u"}).Executor(nil))
	assert.Equal(t, ExecutorRedirect, (&Component{Location: "/new"}).Executor(nil))
	assert.Equal(t, ExecutorBuiltin, (&Component{Handler: "key-value"}).Executor(nil))
	assert.Equal(t, ExecutorStatic, (&Component{}).Executor(nil))
	// Explicit trigger executor wins over inference.
	assert.Equal(t, ExecutorStatic, (&Component{Upstream: "https://u"}).Executor(&ExecutorConfig{Type: ExecutorStatic}))
}
