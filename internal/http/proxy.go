package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/itowlson/spin/internal/outbound"
)

// hopHeaders are connection-scoped and must not be forwarded in either
// direction (RFC 9110 section 7.6.1).
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// ProxyExecutor forwards requests to a fixed upstream. The upstream must
// be covered by the component's allowed_outbound_hosts; the outbound
// client enforces that on every request.
type ProxyExecutor struct {
	upstream *url.URL
}

// NewProxyExecutor parses the component's upstream URL.
func NewProxyExecutor(upstream string) (*ProxyExecutor, error) {
	u, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream %q: %w", upstream, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("upstream %q must be http or https", upstream)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("upstream %q has no host", upstream)
	}
	return &ProxyExecutor{upstream: u}, nil
}

// Handle forwards the request, appending the wildcard path info to the
// upstream path.
func (e *ProxyExecutor) Handle(c *fiber.Ctx, host *Host, pathInfo string) error {
	target := *e.upstream
	target.Path = strings.TrimSuffix(target.Path, "/") + pathInfo
	if target.Path == "" {
		target.Path = "/"
	}
	target.RawQuery = string(c.Request().URI().QueryString())

	var body io.Reader
	if b := c.Body(); len(b) > 0 {
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(c.UserContext(), c.Method(), target.String(), body)
	if err != nil {
		return fmt.Errorf("build upstream request: %w", err)
	}

	c.Request().Header.VisitAll(func(key, value []byte) {
		req.Header.Add(string(key), string(value))
	})
	for _, h := range hopHeaders {
		req.Header.Del(h)
	}
	req.Header.Set("X-Forwarded-For", c.IP())
	req.Header.Set("X-Forwarded-Proto", c.Protocol())
	req.Host = ""

	resp, err := host.Outbound.Do(req)
	if err != nil {
		var notAllowed *outbound.ErrDestinationNotAllowed
		if errors.As(err, &notAllowed) {
			return fiber.NewError(fiber.StatusBadGateway, "upstream not allowed")
		}
		return fiber.NewError(fiber.StatusBadGateway, "upstream unreachable")
	}
	defer resp.Body.Close()

	for _, h := range hopHeaders {
		resp.Header.Del(h)
	}
	for key, values := range resp.Header {
		for _, v := range values {
			c.Response().Header.Add(key, v)
		}
	}
	c.Status(resp.StatusCode)
	_, err = io.Copy(c.Response().BodyWriter(), resp.Body)
	return err
}
