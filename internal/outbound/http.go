package outbound

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrDestinationNotAllowed is returned for requests outside the
// component's allow-list.
type ErrDestinationNotAllowed struct {
	URL string
}

func (e *ErrDestinationNotAllowed) Error() string {
	return fmt.Sprintf("destination %q is not in allowed_outbound_hosts", e.URL)
}

// sharedTransport is instrumented once and reused by every outbound client
// so connection pools are shared across components.
var sharedTransport = otelhttp.NewTransport(http.DefaultTransport)

// HTTPClient is an outbound HTTP client policed by a component's
// allow-list. Relative URLs are rewritten against the serving origin and
// require a "self" entry.
type HTTPClient struct {
	checker *Checker
	client  *http.Client
	scheme  string
}

// NewHTTPClient creates an outbound client for a component. scheme is the
// scheme of the serving origin ("http" or "https"), used when rewriting
// relative request URLs.
func NewHTTPClient(checker *Checker, scheme string) *HTTPClient {
	if scheme == "" {
		scheme = "http"
	}
	return &HTTPClient{
		checker: checker,
		client: &http.Client{
			Transport: sharedTransport,
			Timeout:   30 * time.Second,
		},
		scheme: scheme,
	}
}

// Do performs the request after policy checks.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if !req.URL.IsAbs() {
		if !c.checker.CheckRelative("http", "https") {
			return nil, &ErrDestinationNotAllowed{URL: req.URL.String()}
		}
		abs, err := url.Parse(c.scheme + "://" + c.checker.Origin + req.URL.RequestURI())
		if err != nil {
			return nil, fmt.Errorf("rewrite relative url: %w", err)
		}
		req.URL = abs
		req.Host = ""
	} else if !c.checker.CheckURL(req.URL.String(), req.URL.Scheme) {
		return nil, &ErrDestinationNotAllowed{URL: req.URL.String()}
	}
	return c.client.Do(req)
}
