package runtime

import (
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itowlson/spin/internal/locked"
	"github.com/itowlson/spin/internal/logging"
)

const testManifest = `
spin_manifest_version = 2

[application]
name = "hello"
version = "0.1.0"

[variables]
greeting = { default = "hi" }

[[trigger.http]]
route = "/..."
component = "site"

[[trigger.http]]
route = "/kv/..."
component = "store"

[component.site]
source = "assets"

[component.store]
handler = "key-value"
key_value_stores = ["default"]
`

func writeTestApp(t *testing.T) (manifestPath, stateDir string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "assets", "index.html"), []byte("<p>hi</p>"), 0o644))
	manifestPath = filepath.Join(dir, "spin.toml")
	require.NoError(t, os.WriteFile(manifestPath, []byte(testManifest), 0o644))
	return manifestPath, filepath.Join(dir, "state")
}

func TestConfigure(t *testing.T) {
	manifestPath, stateDir := writeTestApp(t)
	log := logging.NewWithWriter(io.Discard)

	srv, err := configure(context.Background(), "127.0.0.1:3000", manifestPath, stateDir, log)
	require.NoError(t, err)

	// The lock file lands in the state directory.
	_, err = os.Stat(filepath.Join(stateDir, locked.LockFileName))
	assert.NoError(t, err)

	// The configured server dispatches requests end to end.
	resp, err := srv.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = srv.Test(httptest.NewRequest("GET", "/kv/default", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestConfigureRespectsRuntimeConfig(t *testing.T) {
	manifestPath, stateDir := writeTestApp(t)
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(manifestPath), "runtime-config.toml"), []byte(`
[key_value_store.default]
type = "memory"
`), 0o644))

	srv, err := configure(context.Background(), "127.0.0.1:3000", manifestPath, stateDir, logging.NewWithWriter(io.Discard))
	require.NoError(t, err)

	resp, err := srv.Test(httptest.NewRequest("GET", "/kv/default", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	// The memory backing means no sqlite file appears in the state dir.
	_, err = os.Stat(filepath.Join(stateDir, "sqlite_key_value.db"))
	assert.True(t, os.IsNotExist(err))
}

func TestConfigureErrors(t *testing.T) {
	log := logging.NewWithWriter(io.Discard)

	t.Run("missing manifest", func(t *testing.T) {
		_, err := configure(context.Background(), "127.0.0.1:3000", filepath.Join(t.TempDir(), "spin.toml"), t.TempDir(), log)
		require.Error(t, err)
	})

	t.Run("required variable without value", func(t *testing.T) {
		dir := t.TempDir()
		manifestPath := filepath.Join(dir, "spin.toml")
		require.NoError(t, os.WriteFile(manifestPath, []byte(`
spin_manifest_version = 2
[application]
name = "app"
[variables]
api_key = { required = true }
[[trigger.http]]
route = "/"
component = "c"
[component.c]
location = "/elsewhere"
`), 0o644))
		_, err := configure(context.Background(), "127.0.0.1:3000", manifestPath, filepath.Join(dir, "state"), log)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "api_key")
	})
}

func TestUpFailsFast(t *testing.T) {
	status := Up("127.0.0.1:3000", filepath.Join(t.TempDir(), "no-such.toml"), t.TempDir(), t.TempDir())
	assert.Equal(t, int32(1), status)
}
