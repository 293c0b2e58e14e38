package http

import (
	"context"
	"fmt"
	nethttp "net/http"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/itowlson/spin/internal/blobstore"
	"github.com/itowlson/spin/internal/http/middleware"
	"github.com/itowlson/spin/internal/kv"
	"github.com/itowlson/spin/internal/locked"
	"github.com/itowlson/spin/internal/logging"
	"github.com/itowlson/spin/internal/outbound"
	"github.com/itowlson/spin/internal/runtimeconfig"
	"github.com/itowlson/spin/internal/sqlite"
	"github.com/itowlson/spin/internal/variables"
)

// Request metadata headers set on the request before it reaches an
// executor.
const (
	HeaderFullURL        = "spin-full-url"
	HeaderPathInfo       = "spin-path-info"
	HeaderMatchedRoute   = "spin-matched-route"
	HeaderComponentRoute = "spin-component-route"
	HeaderBasePath       = "spin-base-path"
)

// Well-known runtime endpoints, never shadowed by user routes.
const (
	WellKnownHealth  = "/.well-known/spin/health"
	WellKnownInfo    = "/.well-known/spin/info"
	WellKnownMetrics = "/.well-known/spin/metrics"
)

// Options configure the trigger server.
type Options struct {
	App      *locked.App
	Addr     string
	Factors  *runtimeconfig.Factors
	Resolver *variables.Resolver
	Log      *logging.Sink
	// Registry defaults to a fresh registry when nil.
	Registry *prometheus.Registry
}

// Server is the HTTP trigger: a Fiber app routing requests to component
// executors.
type Server struct {
	app     *fiber.App
	addr    string
	log     *logging.Sink
	router  *Router
	pgPools *outbound.PgPools
	redis   *outbound.RedisClients
}

type execution struct {
	host    *Host
	handler BuiltinHandler
}

// NewServer wires the locked app into a ready-to-listen server. All
// configuration errors (unknown labels, bad upstreams, unparseable
// allow-lists) surface here, before the server accepts traffic.
func NewServer(ctx context.Context, opts Options) (*Server, error) {
	router := NewRouter()
	for _, t := range opts.App.Triggers {
		if err := router.Add(t.Route, t.Component); err != nil {
			return nil, err
		}
	}

	// Connection caches are shared across components; the per-component
	// allow-list is enforced on every open.
	pgPools := outbound.NewPgPools()
	redisClients := outbound.NewRedisClients()

	hosts := make(map[string]*Host, len(opts.App.Components))
	for i := range opts.App.Components {
		c := &opts.App.Components[i]
		host, err := buildHost(ctx, c, opts, pgPools, redisClients)
		if err != nil {
			return nil, err
		}
		hosts[c.ID] = host
	}

	executions := make(map[string]*execution, len(opts.App.Triggers))
	for _, t := range opts.App.Triggers {
		component := opts.App.Component(t.Component)
		handler, err := buildExecutor(ctx, &t, component, opts.Resolver)
		if err != nil {
			return nil, err
		}
		executions[t.Route] = &execution{host: hosts[t.Component], handler: handler}
	}

	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	promMiddleware, err := middleware.NewPrometheusMiddleware(registry)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          ErrorHandler(),
		DisableStartupMessage: true,
	})

	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(opts.Log))
	app.Use(promMiddleware.Handler())
	app.Use(otelfiber.Middleware())

	registerWellKnown(app, opts.App, registry)

	app.Use(func(c *fiber.Ctx) error {
		m, ok := router.Match(c.Path())
		if !ok {
			return fiber.ErrNotFound
		}
		exec := executions[m.Route]

		c.Locals(middleware.ComponentLocalKey, m.Component)
		c.Locals(middleware.RouteLocalKey, m.Route)

		c.Request().Header.Set(HeaderFullURL, c.Protocol()+"://"+c.Hostname()+c.OriginalURL())
		c.Request().Header.Set(HeaderPathInfo, m.PathInfo)
		c.Request().Header.Set(HeaderMatchedRoute, m.Route)
		c.Request().Header.Set(HeaderComponentRoute, m.Route)
		c.Request().Header.Set(HeaderBasePath, "/")

		return exec.handler(c, exec.host, m.PathInfo)
	})

	return &Server{
		app:     app,
		addr:    opts.Addr,
		log:     opts.Log,
		router:  router,
		pgPools: pgPools,
		redis:   redisClients,
	}, nil
}

func registerWellKnown(app *fiber.App, lockedApp *locked.App, registry *prometheus.Registry) {
	app.Get(WellKnownHealth, func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	})
	app.Get(WellKnownInfo, func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"name":    lockedApp.Metadata.Name,
			"version": lockedApp.Metadata.Version,
		})
	})
	app.Get(WellKnownMetrics, adaptor.HTTPHandler(
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
}

func buildHost(ctx context.Context, c *locked.Component, opts Options, pgPools *outbound.PgPools, redisClients *outbound.RedisClients) (*Host, error) {
	if err := kv.ValidateAllowed(c.ID, c.KeyValueStores, opts.Factors.KeyValue); err != nil {
		return nil, err
	}
	if err := sqlite.ValidateAllowed(c.ID, c.SqliteDatabases, opts.Factors.Sqlite); err != nil {
		return nil, err
	}
	if err := blobstore.ValidateAllowed(c.ID, c.BlobstoreContainers, opts.Factors.Blob); err != nil {
		return nil, err
	}

	hostsList, err := outbound.ResolveAllowedHosts(ctx, c.AllowedOutboundHosts, opts.Resolver)
	if err != nil {
		return nil, fmt.Errorf("component %q allowed_outbound_hosts: %w", c.ID, err)
	}
	log := opts.Log
	checker := &outbound.Checker{
		ComponentID: c.ID,
		Hosts:       hostsList,
		Origin:      opts.Addr,
		OnDisallowed: func(componentID, scheme, authority string) {
			log.Warn("outbound destination blocked", map[string]any{
				"component": componentID,
				"scheme":    scheme,
				"authority": authority,
			})
		},
	}

	return &Host{
		ComponentID: c.ID,
		KV:          kv.NewDispatch(c.KeyValueStores, opts.Factors.KeyValue),
		Sqlite:      sqlite.NewDispatch(c.SqliteDatabases, opts.Factors.Sqlite),
		Blob:        blobstore.NewDispatch(c.BlobstoreContainers, opts.Factors.Blob),
		Vars:        opts.Resolver,
		Outbound:    outbound.NewHTTPClient(checker, "http"),
		checker:     checker,
		pgPools:     pgPools,
		redis:       redisClients,
	}, nil
}

func buildExecutor(ctx context.Context, t *locked.Trigger, c *locked.Component, resolver *variables.Resolver) (BuiltinHandler, error) {
	switch t.Executor {
	case "static":
		exec, err := NewStaticExecutor(c)
		if err != nil {
			return nil, err
		}
		return exec.Handle, nil
	case "proxy":
		// The upstream may reference application variables.
		upstream, err := resolver.ExpandString(ctx, c.Upstream)
		if err != nil {
			return nil, fmt.Errorf("component %q upstream: %w", c.ID, err)
		}
		exec, err := NewProxyExecutor(upstream)
		if err != nil {
			return nil, err
		}
		return exec.Handle, nil
	case "redirect":
		return NewRedirectExecutor(c.Location, c.StatusCode).Handle, nil
	case "builtin":
		handler, ok := LookupBuiltin(c.Handler)
		if !ok {
			return nil, fmt.Errorf("component %q names unknown builtin handler %q", c.ID, c.Handler)
		}
		return handler, nil
	default:
		return nil, fmt.Errorf("trigger %q uses unknown executor %q", t.ID, t.Executor)
	}
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	s.log.Info("serving", map[string]any{
		"addr":   s.addr,
		"routes": s.router.Routes(),
	})
	return s.app.Listen(s.addr)
}

// Shutdown drains in-flight requests, stops the listener, and closes the
// outbound connection caches.
func (s *Server) Shutdown() error {
	err := s.app.ShutdownWithTimeout(5 * time.Second)
	s.pgPools.Close()
	s.redis.Close()
	return err
}

// Test dispatches a request through the app without a network listener.
func (s *Server) Test(req *nethttp.Request, msTimeout ...int) (*nethttp.Response, error) {
	return s.app.Test(req, msTimeout...)
}
