// Package metrics provides Prometheus metrics for the route pipeline.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "routekit"

// Collector holds every Prometheus metric the server exports.
type Collector struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Pipeline metrics
	PipelineFailures *prometheus.CounterVec
	Forbidden        *prometheus.CounterVec
	RateLimited      *prometheus.CounterVec

	// Registry metrics
	ServicesRegistered prometheus.Gauge

	// Domain events
	EventsPublished *prometheus.CounterVec

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
	ConfigLastReload   prometheus.Gauge
}

// New registers all metrics with reg. Pass prometheus.DefaultRegisterer in
// production and prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route", "status"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "requests_in_flight",
				Help:      "Number of requests currently being processed",
			},
		),
		PipelineFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_failures_total",
				Help:      "Pipeline failures by route and failure kind",
			},
			[]string{"route", "kind"},
		),
		Forbidden: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "forbidden_total",
				Help:      "Requests denied by an endpoint authorizer",
			},
			[]string{"route"},
		),
		RateLimited: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_total",
				Help:      "Requests rejected by the rate limiter",
			},
			[]string{"route"},
		),
		ServicesRegistered: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "services_registered",
				Help:      "Number of service descriptors in the registry",
			},
		),
		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_published_total",
				Help:      "Domain events published by route handlers",
			},
			[]string{"event"},
		),
		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reload_errors_total",
				Help:      "Total number of config reload errors",
			},
		),
		ConfigLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "config_last_reload_timestamp",
				Help:      "Unix timestamp of last successful config reload",
			},
		),
	}
}

// ObserveRequest records a finished request.
func (c *Collector) ObserveRequest(method, route string, status int, d time.Duration) {
	s := strconv.Itoa(status)
	c.RequestsTotal.WithLabelValues(method, route, s).Inc()
	c.RequestDuration.WithLabelValues(method, route, s).Observe(d.Seconds())
}

// ObserveFailure records a pipeline failure of the given kind.
func (c *Collector) ObserveFailure(route, kind string) {
	c.PipelineFailures.WithLabelValues(route, kind).Inc()
}

// ObserveForbidden records an authorization denial.
func (c *Collector) ObserveForbidden(route string) {
	c.Forbidden.WithLabelValues(route).Inc()
}

// ObserveRateLimited records a rejected request.
func (c *Collector) ObserveRateLimited(route string) {
	c.RateLimited.WithLabelValues(route).Inc()
}

// ObserveEvent records a published domain event.
func (c *Collector) ObserveEvent(name string) {
	c.EventsPublished.WithLabelValues(name).Inc()
}

// ObserveReload records a config reload attempt.
func (c *Collector) ObserveReload(err error) {
	if err != nil {
		c.ConfigReloadErrors.Inc()
		return
	}
	c.ConfigReloads.Inc()
	c.ConfigLastReload.SetToCurrentTime()
}
