package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/artpar/routekit/adapters/clock"
	"github.com/artpar/routekit/adapters/metrics"
	"github.com/artpar/routekit/core/routes"
	"github.com/artpar/routekit/core/service"
	"github.com/artpar/routekit/ports"
)

// HealthChecker reports whether a dependency is ready.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// RouterConfig holds optional router settings.
type RouterConfig struct {
	Metrics *metrics.Collector
	// MetricsHandler serves MetricsPath. Defaults to promhttp.Handler()
	// when Metrics is set.
	MetricsHandler http.Handler
	// MetricsPath defaults to /metrics.
	MetricsPath string
	RateLimit   RateLimitConfig
	// Ready is checked by /health/ready.
	Ready   HealthChecker
	Version string
	Clock   ports.Clock
}

// NewRouter creates the HTTP router and binds every route in table.
func NewRouter(table *routes.Table, reg *service.Registry, logger zerolog.Logger, cfg RouterConfig) chi.Router {
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.UTC{}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware(logger, cfg.MetricsPath))
	r.Use(middleware.Recoverer)
	if cfg.Metrics != nil {
		r.Use(MetricsMiddleware(cfg.Metrics, cfg.MetricsPath))
	}

	r.Get("/health", liveness)
	r.Get("/health/live", liveness)
	r.Get("/health/ready", readiness(cfg.Ready))
	r.Get("/version", version(cfg.Version))

	if cfg.MetricsHandler != nil {
		r.Handle(cfg.MetricsPath, cfg.MetricsHandler)
	} else if cfg.Metrics != nil {
		r.Handle(cfg.MetricsPath, promhttp.Handler())
	}

	// Limiting runs after routing so rejections are labelled by pattern.
	r.Group(func(r chi.Router) {
		if cfg.RateLimit.Enabled {
			r.Use(RateLimitMiddleware(NewClientLimiter(cfg.RateLimit, cfg.Clock), cfg.Metrics))
		}
		for _, route := range table.List() {
			r.Method(route.Method(), ToChiPath(route.Path()), NewRouteHandler(route, reg, logger, cfg.Metrics))
			logger.Debug().Str("route", route.Route()).Msg("route bound")
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"message": "Method Not Allowed"})
	})

	return r
}

func liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func readiness(check HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			if err := check.Ping(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func version(v string) http.HandlerFunc {
	if v == "" {
		v = "dev"
	}
	body, _ := json.Marshal(map[string]string{"version": v, "service": "routekit"})
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}
}
