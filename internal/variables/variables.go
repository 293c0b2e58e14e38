package variables

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

var (
	// ErrUndefined is returned when a variable has no value from any
	// provider and no default.
	ErrUndefined = errors.New("variable is undefined")
	// ErrInvalidName is returned for keys that do not satisfy the variable
	// naming rules.
	ErrInvalidName = errors.New("invalid variable name")
)

var keyPattern = regexp.MustCompile(`^[a-z]([a-z0-9_]*[a-z0-9])?$`)

// ValidateKey checks a variable name: lowercase alphanumeric plus
// underscores, starting with a letter, not ending with an underscore.
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidName, key)
	}
	return nil
}

// Declaration is an application-level variable declaration.
type Declaration struct {
	Required bool
	Default  *string
	Secret   bool
}

// Provider supplies values for application variables.
type Provider interface {
	// Get returns the value for key, or ok=false if this provider has no
	// value for it.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
}

// EnvProvider reads variables from SPIN_VARIABLE_<KEY> environment
// variables.
type EnvProvider struct {
	// Lookup defaults to os.LookupEnv; overridable for tests.
	Lookup func(string) (string, bool)
}

const envPrefix = "SPIN_VARIABLE_"

func (p *EnvProvider) Get(_ context.Context, key string) (string, bool, error) {
	lookup := p.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	v, ok := lookup(envPrefix + strings.ToUpper(key))
	return v, ok, nil
}

// StaticProvider serves variables from a fixed map.
type StaticProvider struct {
	Values map[string]string
}

func (p *StaticProvider) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := p.Values[key]
	return v, ok, nil
}

// Resolver resolves application variables and per-component variable
// templates. Providers are consulted in order; the declaration default is
// the fallback.
type Resolver struct {
	declarations  map[string]Declaration
	providers     []Provider
	componentVars map[string]map[string]*Template
}

// NewResolver creates a Resolver over the given declarations, validating
// every declared key.
func NewResolver(declarations map[string]Declaration) (*Resolver, error) {
	for key, decl := range declarations {
		if err := ValidateKey(key); err != nil {
			return nil, err
		}
		if decl.Required && decl.Default != nil {
			return nil, fmt.Errorf("variable %q cannot be both required and defaulted", key)
		}
	}
	return &Resolver{
		declarations:  declarations,
		componentVars: make(map[string]map[string]*Template),
	}, nil
}

// AddProvider appends a provider. Earlier providers win.
func (r *Resolver) AddProvider(p Provider) {
	r.providers = append(r.providers, p)
}

// AddComponentVariables registers a component's variable templates,
// verifying that every referenced variable is declared.
func (r *Resolver) AddComponentVariables(componentID string, vars map[string]string) error {
	parsed := make(map[string]*Template, len(vars))
	for key, raw := range vars {
		if err := ValidateKey(key); err != nil {
			return err
		}
		tmpl, err := ParseTemplate(raw)
		if err != nil {
			return fmt.Errorf("component %q variable %q: %w", componentID, key, err)
		}
		for _, ref := range tmpl.References() {
			if _, ok := r.declarations[ref]; !ok {
				return fmt.Errorf("component %q variable %q references undeclared variable %q", componentID, key, ref)
			}
		}
		parsed[key] = tmpl
	}
	r.componentVars[componentID] = parsed
	return nil
}

// ResolveApp resolves an application-level variable through the providers,
// falling back to the declared default.
func (r *Resolver) ResolveApp(ctx context.Context, key string) (string, error) {
	decl, ok := r.declarations[key]
	if !ok {
		return "", fmt.Errorf("%w: %q is not declared", ErrUndefined, key)
	}
	for _, p := range r.providers {
		v, ok, err := p.Get(ctx, key)
		if err != nil {
			return "", fmt.Errorf("variable provider failed for %q: %w", key, err)
		}
		if ok {
			return v, nil
		}
	}
	if decl.Default != nil {
		return *decl.Default, nil
	}
	return "", fmt.Errorf("%w: required variable %q has no value", ErrUndefined, key)
}

// Resolve resolves a component-level variable by expanding its template.
func (r *Resolver) Resolve(ctx context.Context, componentID, key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	vars, ok := r.componentVars[componentID]
	if !ok {
		return "", fmt.Errorf("%w: component %q has no variables", ErrUndefined, componentID)
	}
	tmpl, ok := vars[key]
	if !ok {
		return "", fmt.Errorf("%w: %q for component %q", ErrUndefined, key, componentID)
	}
	return r.Expand(ctx, tmpl)
}

// ResolveAll resolves every variable of a component.
func (r *Resolver) ResolveAll(ctx context.Context, componentID string) (map[string]string, error) {
	vars := r.componentVars[componentID]
	out := make(map[string]string, len(vars))
	for key, tmpl := range vars {
		v, err := r.Expand(ctx, tmpl)
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

// Expand substitutes application variable values into a parsed template.
func (r *Resolver) Expand(ctx context.Context, tmpl *Template) (string, error) {
	var b strings.Builder
	for _, part := range tmpl.parts {
		if !part.isVar {
			b.WriteString(part.text)
			continue
		}
		v, err := r.ResolveApp(ctx, part.text)
		if err != nil {
			return "", err
		}
		b.WriteString(v)
	}
	return b.String(), nil
}

// ExpandString parses and expands an ad-hoc templated string, such as an
// allowed outbound host entry or a proxy upstream URL.
func (r *Resolver) ExpandString(ctx context.Context, s string) (string, error) {
	tmpl, err := ParseTemplate(s)
	if err != nil {
		return "", err
	}
	return r.Expand(ctx, tmpl)
}
