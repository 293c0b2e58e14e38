package outbound

import (
	"context"

	"github.com/itowlson/spin/internal/variables"
)

// DisallowedHostHandler is called when a component attempts a request to a
// destination its allow-list rejects. Used for logging and operator hints.
type DisallowedHostHandler func(componentID, scheme, authority string)

// Checker couples a component's allow-list with the serving origin and a
// disallowed-host handler.
type Checker struct {
	ComponentID  string
	Hosts        *AllowedHosts
	Origin       string
	OnDisallowed DisallowedHostHandler
}

// CheckURL reports whether the destination is permitted, invoking the
// disallowed handler when it is not.
func (c *Checker) CheckURL(rawURL, scheme string) bool {
	if c.Hosts.Allows(rawURL, scheme, c.Origin) {
		return true
	}
	if c.OnDisallowed != nil {
		c.OnDisallowed(c.ComponentID, scheme, rawURL)
	}
	return false
}

// CheckRelative reports whether same-origin requests are permitted.
func (c *Checker) CheckRelative(schemes ...string) bool {
	if c.Hosts.AllowsRelative(schemes...) {
		return true
	}
	if c.OnDisallowed != nil {
		scheme := ""
		if len(schemes) > 0 {
			scheme = schemes[0]
		}
		c.OnDisallowed(c.ComponentID, scheme, "self")
	}
	return false
}

// ResolveAllowedHosts expands variable templates in the raw entries and
// parses the result. Entries like "https://{{ backend_host }}" are legal;
// expansion happens once at configure time.
func ResolveAllowedHosts(ctx context.Context, entries []string, resolver *variables.Resolver) (*AllowedHosts, error) {
	expanded := make([]string, len(entries))
	for i, entry := range entries {
		v, err := resolver.ExpandString(ctx, entry)
		if err != nil {
			return nil, err
		}
		expanded[i] = v
	}
	return ParseAllowedHosts(expanded)
}
