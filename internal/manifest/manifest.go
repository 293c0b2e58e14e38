package manifest

import (
	"fmt"
)

// Manifest is the in-memory form of a spin.toml application manifest.
type Manifest struct {
	SpinManifestVersion int                  `toml:"spin_manifest_version"`
	Application         Application          `toml:"application"`
	Variables           map[string]Variable  `toml:"variables"`
	Trigger             Trigger              `toml:"trigger"`
	Components          map[string]Component `toml:"component"`
}

// Application holds app-level metadata.
type Application struct {
	Name        string   `toml:"name"`
	Version     string   `toml:"version"`
	Description string   `toml:"description"`
	Authors     []string `toml:"authors"`
}

// Variable is an application variable definition.
type Variable struct {
	// Required and Default are mutually exclusive.
	Required bool    `toml:"required"`
	Default  *string `toml:"default"`
	Secret   bool    `toml:"secret"`
}

// Trigger groups trigger configurations by type.
type Trigger struct {
	HTTP []HTTPTrigger `toml:"http"`
}

// HTTPTrigger maps an HTTP route to a component.
type HTTPTrigger struct {
	Route     string          `toml:"route"`
	Component string          `toml:"component"`
	Executor  *ExecutorConfig `toml:"executor"`
}

// ExecutorConfig selects how a component handles requests. When omitted the
// executor is inferred from the component's fields.
type ExecutorConfig struct {
	Type string `toml:"type"`
}

// Executor types.
const (
	ExecutorStatic   = "static"
	ExecutorProxy    = "proxy"
	ExecutorRedirect = "redirect"
	ExecutorBuiltin  = "builtin"
)

// Component describes one unit of the application.
type Component struct {
	Description          string            `toml:"description"`
	Source               *ComponentSource  `toml:"source"`
	Files                []FilesMount      `toml:"files"`
	Environment          map[string]string `toml:"environment"`
	AllowedOutboundHosts []string          `toml:"allowed_outbound_hosts"`
	KeyValueStores       []string          `toml:"key_value_stores"`
	SqliteDatabases      []string          `toml:"sqlite_databases"`
	BlobstoreContainers  []string          `toml:"blobstore_containers"`
	Variables            map[string]string `toml:"variables"`

	// Executor settings. Which of these is meaningful depends on the
	// executor type; Executor() infers the type when the trigger does not
	// name one.
	Upstream   string `toml:"upstream"`
	Location   string `toml:"location"`
	StatusCode int    `toml:"status_code"`
	Handler    string `toml:"handler"`
}

// Executor returns the executor type for this component, honoring an
// explicit trigger-level choice first.
func (c *Component) Executor(explicit *ExecutorConfig) string {
	if explicit != nil && explicit.Type != "" {
		return explicit.Type
	}
	switch {
	case c.Handler != "":
		return ExecutorBuiltin
	case c.Upstream != "":
		return ExecutorProxy
	case c.Location != "":
		return ExecutorRedirect
	default:
		return ExecutorStatic
	}
}

// ComponentSource is either a local path or a remote URL with digest.
type ComponentSource struct {
	Local  string
	URL    string
	Digest string
}

// UnmarshalTOML accepts either `source = "dir"` or
// `source = { url = "...", digest = "sha256:..." }`.
func (s *ComponentSource) UnmarshalTOML(v any) error {
	switch val := v.(type) {
	case string:
		s.Local = val
		return nil
	case map[string]any:
		url, _ := val["url"].(string)
		digest, _ := val["digest"].(string)
		if url == "" || digest == "" {
			return fmt.Errorf("remote component source requires both url and digest")
		}
		s.URL = url
		s.Digest = digest
		return nil
	default:
		return fmt.Errorf("invalid component source %v", v)
	}
}

// FilesMount is either a glob pattern or an explicit source/destination
// placement.
type FilesMount struct {
	Pattern     string
	Source      string
	Destination string
}

// UnmarshalTOML accepts either `"static/*.html"` or
// `{ source = "content", destination = "/" }`.
func (m *FilesMount) UnmarshalTOML(v any) error {
	switch val := v.(type) {
	case string:
		m.Pattern = val
		return nil
	case map[string]any:
		src, _ := val["source"].(string)
		dst, _ := val["destination"].(string)
		if src == "" || dst == "" {
			return fmt.Errorf("files placement requires both source and destination")
		}
		m.Source = src
		m.Destination = dst
		return nil
	default:
		return fmt.Errorf("invalid files mount %v", v)
	}
}
