// Package bootstrap wires configuration, logging, the service registry, the
// route table, and the HTTP server into a runnable application.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/artpar/routekit/adapters/auth"
	"github.com/artpar/routekit/adapters/clock"
	"github.com/artpar/routekit/adapters/hasher"
	httpadapter "github.com/artpar/routekit/adapters/http"
	"github.com/artpar/routekit/adapters/idgen"
	"github.com/artpar/routekit/adapters/lambda"
	"github.com/artpar/routekit/adapters/metrics"
	"github.com/artpar/routekit/adapters/sqlite"
	"github.com/artpar/routekit/app"
	"github.com/artpar/routekit/config"
	"github.com/artpar/routekit/core/events"
	"github.com/artpar/routekit/core/routes"
	"github.com/artpar/routekit/core/service"
	"github.com/artpar/routekit/ports"
)

// Options configures application initialization.
type Options struct {
	// ConfigPath is a YAML file. When empty or missing, configuration comes
	// from ROUTEKIT_* environment variables only.
	ConfigPath string
	// Watch reloads the config file on change and on SIGHUP.
	Watch   bool
	Version string
	// LogOutput defaults to os.Stdout.
	LogOutput io.Writer
}

// App represents the running application.
type App struct {
	Logger   zerolog.Logger
	Config   *config.Holder
	Registry *service.Registry
	Routes   *routes.Table
	Metrics  *metrics.Collector
	Events   *events.Bus
	Handler  http.Handler
	Server   *httpadapter.Server

	mu sync.Mutex
	db *sqlite.DB
}

// New creates and initializes the application. The database is opened on
// the first request that needs it.
func New(opts Options) (*App, error) {
	cfg, err := config.LoadWithFallback(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	out := opts.LogOutput
	if out == nil {
		out = os.Stdout
	}
	logger := NewLogger(cfg.Logging, out)
	logger.Info().Str("version", opts.Version).Msg("initializing routekit")

	a := &App{Logger: logger}

	if err := a.initConfig(opts, cfg); err != nil {
		return nil, err
	}
	cfg = a.Config.Get()

	var promReg *prometheus.Registry
	if cfg.Metrics.Enabled {
		promReg = prometheus.NewRegistry()
		promReg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		a.Metrics = metrics.New(promReg)
		a.Config.OnReload(a.Metrics.ObserveReload)
		logger.Info().Str("path", cfg.Metrics.Path).Msg("prometheus metrics enabled")
	}

	a.Events = events.NewBus(logger)
	a.Events.Subscribe("*", func(_ context.Context, e events.Event) error {
		logger.Info().Str("event", e.Name).Str("route", e.Route).Interface("data", e.Data).Msg("audit")
		if a.Metrics != nil {
			a.Metrics.ObserveEvent(e.Name)
		}
		return nil
	})

	services, err := a.buildServices(cfg)
	if err != nil {
		return nil, fmt.Errorf("build services: %w", err)
	}

	a.Registry = service.NewRegistry(service.WithLogger(logger))
	for _, p := range services.Providers() {
		a.Registry.Add(p)
	}
	if a.Metrics != nil {
		a.Metrics.ServicesRegistered.Set(float64(a.Registry.Len()))
	}

	a.Routes, err = app.Table(services, logger)
	if err != nil {
		return nil, fmt.Errorf("build routes: %w", err)
	}

	routerCfg := httpadapter.RouterConfig{
		Metrics:     a.Metrics,
		MetricsPath: cfg.Metrics.Path,
		RateLimit: httpadapter.RateLimitConfig{
			Enabled: cfg.RateLimit.Enabled,
			RPS:     cfg.RateLimit.RPS,
			Burst:   cfg.RateLimit.Burst,
		},
		Ready:   a,
		Version: opts.Version,
	}
	if promReg != nil {
		routerCfg.MetricsHandler = promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})
	}
	a.Handler = httpadapter.NewRouter(a.Routes, a.Registry, logger, routerCfg)

	a.Server = httpadapter.NewServer(a.Handler, httpadapter.ServerConfig{
		Addr:         cfg.Server.Addr(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, logger)

	logger.Info().
		Int("routes", a.Routes.Len()).
		Strs("services", a.Registry.Names()).
		Msg("application initialized")

	return a, nil
}

func (a *App) initConfig(opts Options, cfg *config.Config) error {
	if opts.ConfigPath == "" {
		a.Config = config.NewStaticHolder(cfg, a.Logger)
		return nil
	}
	if _, err := os.Stat(opts.ConfigPath); err != nil {
		a.Config = config.NewStaticHolder(cfg, a.Logger)
		return nil
	}

	holder, err := config.NewHolder(opts.ConfigPath, a.Logger)
	if err != nil {
		return fmt.Errorf("config holder: %w", err)
	}
	a.Config = holder

	// Only the log level is applied live; other fields need a restart.
	holder.OnChange(func(c *config.Config) {
		if level, err := zerolog.ParseLevel(c.Logging.Level); err == nil {
			zerolog.SetGlobalLevel(level)
		}
	})

	if opts.Watch {
		if err := holder.WatchFile(); err != nil {
			a.Logger.Warn().Err(err).Msg("config file watch disabled")
		}
		holder.WatchSignals()
	}
	return nil
}

func (a *App) buildServices(cfg *config.Config) (*app.Services, error) {
	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("token service: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		a.Logger.Warn().Msg("auth.jwt_secret not set, tokens will not survive a restart")
	}

	return app.NewServices(app.Deps{
		Logger:    a.Logger,
		OpenStore: a.openStore,
		Hasher:    hasher.NewBcrypt(cfg.Hasher.Cost),
		Tokens:    tokens,
		IDs:       idgen.Ordered{},
		Clock:     clock.UTC{},
		Events:    a.Events,
	}), nil
}

func (a *App) openStore(ctx context.Context) (ports.UserStore, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.db == nil {
		dsn := a.Config.Get().Database.DSN
		db, err := sqlite.Open(dsn)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		a.Logger.Info().Str("dsn", dsn).Msg("database ready")
		a.db = db
	}
	return sqlite.NewUserStore(a.db), nil
}

// Ping reports readiness. An unopened database counts as ready.
func (a *App) Ping(ctx context.Context) error {
	a.mu.Lock()
	db := a.db
	a.mu.Unlock()

	if db == nil {
		return nil
	}
	return db.Ping(ctx)
}

// Functions returns one serverless handler per route, keyed by deployment
// name.
func (a *App) Functions() (map[string]*lambda.Handler, error) {
	return lambda.Functions(a.Routes, a.Registry, lambda.WithLogger(a.Logger))
}

// Run listens on the configured address and blocks until ctx is cancelled,
// SIGINT or SIGTERM arrives, or the server fails.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Server.Addr())
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve runs the server on ln and shuts everything down when it stops.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.Server.Serve(ln); err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.Logger.Info().Msg("shutting down")
		return a.Shutdown(context.Background())
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server, then closes the config watchers and
// the database.
func (a *App) Shutdown(ctx context.Context) error {
	timeout := a.Config.Get().Server.ShutdownTimeout
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var errs []error

	if a.Server != nil {
		if err := a.Server.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
			errs = append(errs, err)
		}
	}

	a.Config.Stop()

	a.mu.Lock()
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
			errs = append(errs, err)
		}
		a.db = nil
	}
	a.mu.Unlock()

	a.Logger.Info().Msg("shutdown complete")
	return errors.Join(errs...)
}

// NewLogger builds the process logger. The level is applied globally so a
// config reload can change it.
func NewLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).With().Timestamp().Logger()
}
