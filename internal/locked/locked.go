package locked

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/itowlson/spin/internal/manifest"
	"github.com/itowlson/spin/internal/variables"
)

// LockFileName is the resolved application file written to the state
// directory.
const LockFileName = "lock.json"

// SpinLockVersion identifies the lock file schema.
const SpinLockVersion = 1

// App is the fully resolved application: all relative paths made absolute,
// all cross-references checked. It is what the trigger actually runs, and
// it is persisted as JSON for inspection.
type App struct {
	SpinLockVersion int                 `json:"spin_lock_version"`
	Metadata        Metadata            `json:"metadata"`
	Variables       map[string]Variable `json:"variables,omitempty"`
	Triggers        []Trigger           `json:"triggers"`
	Components      []Component         `json:"components"`
}

// Metadata holds app-level information.
type Metadata struct {
	Name        string `json:"name"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
	// Origin is the absolute path of the manifest this app was resolved
	// from.
	Origin string `json:"origin"`
}

// Variable is a locked variable declaration.
type Variable struct {
	Required bool    `json:"required,omitempty"`
	Default  *string `json:"default,omitempty"`
	Secret   bool    `json:"secret,omitempty"`
}

// Trigger maps one route to a component.
type Trigger struct {
	ID        string `json:"id"`
	Type      string `json:"trigger_type"`
	Route     string `json:"route"`
	Component string `json:"component"`
	Executor  string `json:"executor"`
}

// Component is a resolved component.
type Component struct {
	ID                   string            `json:"id"`
	Description          string            `json:"description,omitempty"`
	Source               *Source           `json:"source,omitempty"`
	Files                []FilesMount      `json:"files,omitempty"`
	Environment          map[string]string `json:"env,omitempty"`
	AllowedOutboundHosts []string          `json:"allowed_outbound_hosts,omitempty"`
	KeyValueStores       []string          `json:"key_value_stores,omitempty"`
	SqliteDatabases      []string          `json:"sqlite_databases,omitempty"`
	BlobstoreContainers  []string          `json:"blobstore_containers,omitempty"`
	// Variables are the raw (still templated) component variables.
	Variables map[string]string `json:"variables,omitempty"`

	Upstream   string `json:"upstream,omitempty"`
	Location   string `json:"location,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
	Handler    string `json:"handler,omitempty"`
}

// Source is a resolved component source: an absolute local path, or a
// remote URL with content digest.
type Source struct {
	Path   string `json:"path,omitempty"`
	URL    string `json:"url,omitempty"`
	Digest string `json:"digest,omitempty"`
}

// FilesMount is a resolved files mount. Source paths and glob patterns are
// absolute.
type FilesMount struct {
	Pattern     string `json:"pattern,omitempty"`
	Source      string `json:"source,omitempty"`
	Destination string `json:"destination,omitempty"`
}

// Resolve produces the locked app from a validated manifest. Relative
// source paths and file mounts resolve against the manifest's directory;
// component variable templates are checked against the declared variables.
func Resolve(m *manifest.Manifest, manifestPath string) (*App, error) {
	origin, err := filepath.Abs(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("resolve manifest path: %w", err)
	}
	baseDir := filepath.Dir(origin)

	app := &App{
		SpinLockVersion: SpinLockVersion,
		Metadata: Metadata{
			Name:        m.Application.Name,
			Version:     m.Application.Version,
			Description: m.Application.Description,
			Origin:      origin,
		},
	}

	if len(m.Variables) > 0 {
		app.Variables = make(map[string]Variable, len(m.Variables))
		for name, v := range m.Variables {
			app.Variables[name] = Variable{Required: v.Required, Default: v.Default, Secret: v.Secret}
		}
	}

	ids := make([]string, 0, len(m.Components))
	for id := range m.Components {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		c := m.Components[id]
		lc, err := resolveComponent(id, &c, m, baseDir)
		if err != nil {
			return nil, err
		}
		app.Components = append(app.Components, *lc)
	}

	seen := make(map[string]int)
	for _, t := range m.Trigger.HTTP {
		c := m.Components[t.Component]
		id := fmt.Sprintf("trigger--%s", t.Component)
		if n := seen[t.Component]; n > 0 {
			id = fmt.Sprintf("%s-%d", id, n)
		}
		seen[t.Component]++
		app.Triggers = append(app.Triggers, Trigger{
			ID:        id,
			Type:      "http",
			Route:     t.Route,
			Component: t.Component,
			Executor:  c.Executor(t.Executor),
		})
	}

	return app, nil
}

func resolveComponent(id string, c *manifest.Component, m *manifest.Manifest, baseDir string) (*Component, error) {
	lc := &Component{
		ID:                   id,
		Description:          c.Description,
		Environment:          c.Environment,
		AllowedOutboundHosts: c.AllowedOutboundHosts,
		KeyValueStores:       c.KeyValueStores,
		SqliteDatabases:      c.SqliteDatabases,
		BlobstoreContainers:  c.BlobstoreContainers,
		Variables:            c.Variables,
		Upstream:             c.Upstream,
		Location:             c.Location,
		StatusCode:           c.StatusCode,
		Handler:              c.Handler,
	}

	if c.Source != nil {
		if c.Source.Local != "" {
			lc.Source = &Source{Path: resolvePath(baseDir, c.Source.Local)}
		} else {
			lc.Source = &Source{URL: c.Source.URL, Digest: c.Source.Digest}
		}
	}

	for _, f := range c.Files {
		mount := FilesMount{Destination: f.Destination}
		if f.Pattern != "" {
			mount.Pattern = resolvePath(baseDir, f.Pattern)
		} else {
			mount.Source = resolvePath(baseDir, f.Source)
		}
		lc.Files = append(lc.Files, mount)
	}

	for key, raw := range c.Variables {
		tmpl, err := variables.ParseTemplate(raw)
		if err != nil {
			return nil, fmt.Errorf("component %q variable %q: %w", id, key, err)
		}
		for _, ref := range tmpl.References() {
			if _, ok := m.Variables[ref]; !ok {
				return nil, fmt.Errorf("component %q variable %q references undeclared variable %q", id, key, ref)
			}
		}
	}

	// Templated outbound hosts must also reference declared variables.
	for _, host := range c.AllowedOutboundHosts {
		tmpl, err := variables.ParseTemplate(host)
		if err != nil {
			return nil, fmt.Errorf("component %q allowed_outbound_hosts: %w", id, err)
		}
		for _, ref := range tmpl.References() {
			if _, ok := m.Variables[ref]; !ok {
				return nil, fmt.Errorf("component %q allowed_outbound_hosts references undeclared variable %q", id, ref)
			}
		}
	}

	return lc, nil
}

func resolvePath(baseDir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}

// Write persists the locked app as pretty-printed JSON under dir and
// returns the file path.
func Write(app *App, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create state directory %q: %w", dir, err)
	}
	data, err := json.MarshalIndent(app, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode locked app: %w", err)
	}
	path := filepath.Join(dir, LockFileName)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write %q: %w", path, err)
	}
	return path, nil
}

// Component returns the component with the given id, or nil.
func (a *App) Component(id string) *Component {
	for i := range a.Components {
		if a.Components[i].ID == id {
			return &a.Components[i]
		}
	}
	return nil
}
