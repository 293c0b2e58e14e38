package manifest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
)

// SupportedManifestVersion is the only manifest schema version this runtime
// understands.
const SupportedManifestVersion = 2

var (
	componentIDPattern = regexp.MustCompile(`^[a-z]([a-z0-9-]*[a-z0-9])?$`)
	variableKeyPattern = regexp.MustCompile(`^[a-z]([a-z0-9_]*[a-z0-9])?$`)
)

// Load reads, parses and validates a manifest file.
func Load(path string) (*Manifest, error) {
	var m Manifest
	meta, err := toml.DecodeFile(path, &m)
	if err != nil {
		return nil, fmt.Errorf("parse manifest %q: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("manifest %q contains unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest %q: %w", path, err)
	}
	return &m, nil
}

// Validate enforces the manifest's structural invariants.
func (m *Manifest) Validate() error {
	if m.SpinManifestVersion != SupportedManifestVersion {
		return fmt.Errorf("unsupported spin_manifest_version %d (expected %d)",
			m.SpinManifestVersion, SupportedManifestVersion)
	}
	if m.Application.Name == "" {
		return fmt.Errorf("application.name is required")
	}

	for key, v := range m.Variables {
		if !variableKeyPattern.MatchString(key) {
			return fmt.Errorf("variable name %q must be lowercase alphanumeric with underscores", key)
		}
		if v.Required && v.Default != nil {
			return fmt.Errorf("variable %q cannot be both required and have a default", key)
		}
		if !v.Required && v.Default == nil {
			return fmt.Errorf("variable %q must either be required or have a default", key)
		}
	}

	for id, c := range m.Components {
		if !componentIDPattern.MatchString(id) {
			return fmt.Errorf("component ID %q must be lowercase kebab-case", id)
		}
		if err := validateComponent(id, &c); err != nil {
			return err
		}
	}

	if len(m.Trigger.HTTP) == 0 {
		return fmt.Errorf("no triggers defined")
	}
	seenRoutes := make(map[string]string)
	for _, t := range m.Trigger.HTTP {
		if err := ValidateRoute(t.Route); err != nil {
			return err
		}
		if prev, ok := seenRoutes[t.Route]; ok {
			return fmt.Errorf("route %q is assigned to both components %q and %q", t.Route, prev, t.Component)
		}
		seenRoutes[t.Route] = t.Component
		if t.Component == "" {
			return fmt.Errorf("trigger for route %q names no component", t.Route)
		}
		c, ok := m.Components[t.Component]
		if !ok {
			return fmt.Errorf("trigger for route %q references unknown component %q", t.Route, t.Component)
		}
		if err := validateExecutor(t, &c); err != nil {
			return err
		}
	}
	return nil
}

// ValidateRoute checks a trigger route: it must be absolute, and "..." may
// appear only as a trailing /... wildcard.
func ValidateRoute(route string) error {
	if route == "" {
		return fmt.Errorf("route must not be empty")
	}
	if !strings.HasPrefix(route, "/") {
		return fmt.Errorf("route %q must start with '/'", route)
	}
	if idx := strings.Index(route, "..."); idx >= 0 {
		if !strings.HasSuffix(route, "/...") || idx != len(route)-3 {
			return fmt.Errorf("route %q may only use '...' as a trailing /... wildcard", route)
		}
	}
	return nil
}

func validateComponent(id string, c *Component) error {
	settings := 0
	if c.Upstream != "" {
		settings++
	}
	if c.Location != "" {
		settings++
	}
	if c.Handler != "" {
		settings++
	}
	if settings > 1 {
		return fmt.Errorf("component %q sets more than one of upstream, location and handler", id)
	}
	if c.StatusCode != 0 && c.Location == "" {
		return fmt.Errorf("component %q sets status_code without location", id)
	}
	if c.StatusCode != 0 && (c.StatusCode < 300 || c.StatusCode > 399) {
		return fmt.Errorf("component %q status_code %d is not a redirect status", id, c.StatusCode)
	}
	return nil
}

func validateExecutor(t HTTPTrigger, c *Component) error {
	executor := c.Executor(t.Executor)
	switch executor {
	case ExecutorStatic:
		if c.Source == nil && len(c.Files) == 0 {
			return fmt.Errorf("component %q uses the static executor but has no source or files", t.Component)
		}
	case ExecutorProxy:
		if c.Upstream == "" {
			return fmt.Errorf("component %q uses the proxy executor but sets no upstream", t.Component)
		}
	case ExecutorRedirect:
		if c.Location == "" {
			return fmt.Errorf("component %q uses the redirect executor but sets no location", t.Component)
		}
	case ExecutorBuiltin:
		if c.Handler == "" {
			return fmt.Errorf("component %q uses the builtin executor but names no handler", t.Component)
		}
	default:
		return fmt.Errorf("component %q uses unknown executor type %q", t.Component, executor)
	}
	return nil
}
