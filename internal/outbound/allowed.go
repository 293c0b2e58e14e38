package outbound

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Default ports for schemes the runtime understands. Entries without an
// explicit port match the scheme's default port; for unknown schemes they
// match any port.
var schemeDefaultPorts = map[string]int{
	"http":     80,
	"https":    443,
	"redis":    6379,
	"rediss":   6379,
	"postgres": 5432,
	"mysql":    3306,
	"amqp":     5672,
}

type hostKind int

const (
	hostAny hostKind = iota
	hostSelf
	hostExact
	hostSubdomainWildcard
)

// HostConfig is one parsed allowed_outbound_hosts entry.
type HostConfig struct {
	raw    string
	scheme string // "*" allows any scheme
	kind   hostKind
	host   string // exact host, or suffix for subdomain wildcards
	// port matching: portAny, or explicit range [portLow, portHigh].
	// portDefault means "the scheme's default port".
	portAny     bool
	portDefault bool
	portLow     int
	portHigh    int
}

// ParseHostConfig parses an entry of the form "scheme://host[:port]".
// Scheme and port may be "*"; the host may be "*", "self", an exact name,
// or a "*.suffix" subdomain wildcard; the port may be a range "lo-hi".
func ParseHostConfig(entry string) (*HostConfig, error) {
	if entry == "insecure:allow-all" {
		return nil, fmt.Errorf(`"insecure:allow-all" is not supported; use "*://*:*" to allow all hosts`)
	}
	schemeHost := strings.SplitN(entry, "://", 2)
	if len(schemeHost) != 2 {
		return nil, fmt.Errorf("allowed host %q must include a scheme (e.g. \"https://%s\")", entry, entry)
	}
	scheme := strings.ToLower(schemeHost[0])
	if scheme == "" {
		return nil, fmt.Errorf("allowed host %q has an empty scheme", entry)
	}

	hostPort := schemeHost[1]
	if hostPort == "" {
		return nil, fmt.Errorf("allowed host %q has an empty host", entry)
	}
	if strings.ContainsAny(hostPort, "/?#") {
		return nil, fmt.Errorf("allowed host %q must not include a path", entry)
	}

	cfg := &HostConfig{raw: entry, scheme: scheme, portDefault: true}

	host := hostPort
	if idx := strings.LastIndex(hostPort, ":"); idx >= 0 {
		host = hostPort[:idx]
		if err := cfg.parsePort(hostPort[idx+1:]); err != nil {
			return nil, fmt.Errorf("allowed host %q: %w", entry, err)
		}
	}

	host = strings.ToLower(host)
	switch {
	case host == "*":
		cfg.kind = hostAny
	case host == "self":
		cfg.kind = hostSelf
	case strings.HasPrefix(host, "*."):
		suffix := host[1:] // keep the leading dot
		if len(suffix) < 2 || strings.Contains(suffix[1:], "*") {
			return nil, fmt.Errorf("allowed host %q has an invalid subdomain wildcard", entry)
		}
		cfg.kind = hostSubdomainWildcard
		cfg.host = suffix
	case strings.Contains(host, "*"):
		return nil, fmt.Errorf("allowed host %q: '*' may only be the whole host or a '*.' prefix", entry)
	case host == "":
		return nil, fmt.Errorf("allowed host %q has an empty host", entry)
	default:
		cfg.kind = hostExact
		cfg.host = host
	}
	return cfg, nil
}

func (c *HostConfig) parsePort(port string) error {
	c.portDefault = false
	if port == "*" {
		c.portAny = true
		return nil
	}
	if lo, hi, ok := strings.Cut(port, "-"); ok {
		low, err1 := strconv.Atoi(lo)
		high, err2 := strconv.Atoi(hi)
		if err1 != nil || err2 != nil || low <= 0 || high < low || high > 65535 {
			return fmt.Errorf("invalid port range %q", port)
		}
		c.portLow, c.portHigh = low, high
		return nil
	}
	p, err := strconv.Atoi(port)
	if err != nil || p <= 0 || p > 65535 {
		return fmt.Errorf("invalid port %q", port)
	}
	c.portLow, c.portHigh = p, p
	return nil
}

func (c *HostConfig) allows(scheme, host string, port int, origin string) bool {
	if c.scheme != "*" && c.scheme != scheme {
		return false
	}
	switch c.kind {
	case hostAny:
	case hostSelf:
		originHost, originPort := splitAuthority(origin, scheme)
		if origin == "" || host != originHost {
			return false
		}
		// "self" pins the origin's port rather than the scheme default.
		if c.portDefault {
			return port == originPort || port == 0
		}
	case hostExact:
		if host != c.host {
			return false
		}
	case hostSubdomainWildcard:
		if !strings.HasSuffix(host, c.host) || host == c.host[1:] {
			return false
		}
	}
	return c.allowsPort(scheme, port)
}

func (c *HostConfig) allowsPort(scheme string, port int) bool {
	if c.portAny {
		return true
	}
	if c.portDefault {
		def, known := schemeDefaultPorts[scheme]
		if !known {
			return true
		}
		return port == def || port == 0
	}
	return port >= c.portLow && port <= c.portHigh
}

// AllowedHosts is the parsed allow-list of a component.
type AllowedHosts struct {
	entries []*HostConfig
}

// ParseAllowedHosts parses a component's allowed_outbound_hosts entries.
// Variable templates must be expanded before calling this.
func ParseAllowedHosts(entries []string) (*AllowedHosts, error) {
	parsed := make([]*HostConfig, 0, len(entries))
	for _, entry := range entries {
		cfg, err := ParseHostConfig(entry)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, cfg)
	}
	return &AllowedHosts{entries: parsed}, nil
}

// Allows checks a destination URL against the allow-list. If rawURL has no
// scheme, defaultScheme is assumed. origin is the serving authority used to
// match "self" entries; it may be empty outside request context.
func (a *AllowedHosts) Allows(rawURL, defaultScheme, origin string) bool {
	scheme, host, port, err := splitDestination(rawURL, defaultScheme)
	if err != nil {
		return false
	}
	for _, entry := range a.entries {
		if entry.allows(scheme, host, port, origin) {
			return true
		}
	}
	return false
}

// AllowsRelative reports whether relative (same-origin) requests are
// permitted, which requires a "self" entry for one of the given schemes.
func (a *AllowedHosts) AllowsRelative(schemes ...string) bool {
	for _, entry := range a.entries {
		if entry.kind != hostSelf && entry.kind != hostAny {
			continue
		}
		if entry.scheme == "*" {
			return true
		}
		for _, s := range schemes {
			if entry.scheme == s {
				return true
			}
		}
	}
	return false
}

// IsEmpty reports whether no outbound destinations are allowed.
func (a *AllowedHosts) IsEmpty() bool {
	return len(a.entries) == 0
}

func splitDestination(rawURL, defaultScheme string) (scheme, host string, port int, err error) {
	if !strings.Contains(rawURL, "://") {
		rawURL = defaultScheme + "://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", 0, fmt.Errorf("invalid destination url %q: %w", rawURL, err)
	}
	scheme = strings.ToLower(u.Scheme)
	host = strings.ToLower(u.Hostname())
	if host == "" {
		return "", "", 0, fmt.Errorf("destination url %q has no host", rawURL)
	}
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return "", "", 0, fmt.Errorf("destination url %q has invalid port", rawURL)
		}
	}
	return scheme, host, port, nil
}

func splitAuthority(authority, scheme string) (string, int) {
	host, portStr, err := net.SplitHostPort(authority)
	if err != nil {
		return strings.ToLower(authority), schemeDefaultPorts[scheme]
	}
	port, _ := strconv.Atoi(portStr)
	return strings.ToLower(host), port
}
