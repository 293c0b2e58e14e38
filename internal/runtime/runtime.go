package runtime

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/itowlson/spin/internal/config"
	spinhttp "github.com/itowlson/spin/internal/http"
	"github.com/itowlson/spin/internal/locked"
	"github.com/itowlson/spin/internal/logging"
	"github.com/itowlson/spin/internal/manifest"
	"github.com/itowlson/spin/internal/runtimeconfig"
	"github.com/itowlson/spin/internal/telemetry"
	"github.com/itowlson/spin/internal/variables"
)

// Up loads the application manifest, wires its host services, and serves
// HTTP on addr until a shutdown signal arrives. The state directory holds
// the resolved lock file and default store files; the log directory
// receives the runtime log.
//
// The return value is the process exit status: 0 after a clean shutdown,
// 1 for any startup or serve failure.
func Up(addr, manifestPath, stateDir, logDir string) int32 {
	ctx := context.Background()

	log, err := logging.NewWithDir(logDir)
	if err != nil {
		logging.New().Error("open log sink failed", map[string]any{"error": err.Error()})
		return 1
	}
	defer log.Close()

	shutdownTracing, err := telemetry.Init(ctx, log)
	if err != nil {
		log.Error("telemetry init failed", map[string]any{"error": err.Error()})
		return 1
	}
	defer shutdownTracing(ctx)

	srv, err := configure(ctx, addr, manifestPath, stateDir, log)
	if err != nil {
		log.Error("startup failed", map[string]any{"error": err.Error()})
		return 1
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Run()
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		log.Error("server failed", map[string]any{"error": err.Error()})
		return 1
	case sig := <-signals:
		log.Info("shutting down", map[string]any{"signal": sig.String()})
		if err := srv.Shutdown(); err != nil {
			log.Error("shutdown failed", map[string]any{"error": err.Error()})
			return 1
		}
		return 0
	}
}

// configure runs every startup step short of listening.
func configure(ctx context.Context, addr, manifestPath, stateDir string, log *logging.Sink) (*spinhttp.Server, error) {
	cfg := config.Load()

	m, err := manifest.Load(manifestPath)
	if err != nil {
		return nil, err
	}

	app, err := locked.Resolve(m, manifestPath)
	if err != nil {
		return nil, err
	}
	lockPath, err := locked.Write(app, stateDir)
	if err != nil {
		return nil, err
	}
	log.Info("application resolved", map[string]any{
		"app":  app.Metadata.Name,
		"lock": lockPath,
	})

	rc, err := runtimeconfig.Load(filepath.Join(filepath.Dir(manifestPath), runtimeconfig.FileName))
	if err != nil {
		return nil, err
	}
	factors, err := runtimeconfig.Build(rc, cfg, stateDir)
	if err != nil {
		return nil, err
	}

	resolver, err := newResolver(ctx, m)
	if err != nil {
		return nil, err
	}

	return spinhttp.NewServer(ctx, spinhttp.Options{
		App:      app,
		Addr:     addr,
		Factors:  factors,
		Resolver: resolver,
		Log:      log,
	})
}

// newResolver builds the variables resolver: declarations from the
// manifest, values from SPIN_VARIABLE_* environment variables, defaults as
// fallback. Required variables are checked now so a missing value fails
// startup instead of a request.
func newResolver(ctx context.Context, m *manifest.Manifest) (*variables.Resolver, error) {
	declarations := make(map[string]variables.Declaration, len(m.Variables))
	for key, v := range m.Variables {
		declarations[key] = variables.Declaration{Required: v.Required, Default: v.Default, Secret: v.Secret}
	}
	resolver, err := variables.NewResolver(declarations)
	if err != nil {
		return nil, err
	}
	resolver.AddProvider(&variables.EnvProvider{})

	for id, c := range m.Components {
		if err := resolver.AddComponentVariables(id, c.Variables); err != nil {
			return nil, err
		}
	}

	for key := range declarations {
		if _, err := resolver.ResolveApp(ctx, key); err != nil {
			return nil, err
		}
	}
	return resolver, nil
}
