// Package metrics exposes Prometheus instrumentation for the view state
// transitions: switch windows, hydration, stale-write drops, and splash
// display time.
package metrics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/viewstate"
)

// Compile-time interface check.
var _ viewstate.Recorder = (*Collector)(nil)

// Collector records transition measurements on a private registry.
type Collector struct {
	registry *prometheus.Registry

	switchesStarted prometheus.Counter
	switchesEarly   prometheus.Counter
	switchDuration  prometheus.Histogram
	staleDropped    prometheus.Counter
	hydration       prometheus.Histogram
	splashDisplay   prometheus.Histogram

	logger *slog.Logger
}

// NewCollector creates a Collector with its own registry so tests can run
// multiple instances without duplicate registration panics.
func NewCollector(logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	registry := prometheus.NewRegistry()

	return &Collector{
		registry: registry,
		switchesStarted: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "account_switches_started_total",
			Help: "Total number of account switch windows opened",
		}),
		switchesEarly: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "account_switches_ended_early_total",
			Help: "Switch windows closed by fresh data before the timer",
		}),
		switchDuration: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "account_switch_duration_seconds",
			Help:    "Time from switch start to window close",
			Buckets: []float64{0.025, 0.05, 0.1, 0.15, 0.25, 0.5, 1},
		}),
		staleDropped: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "stale_trade_writes_dropped_total",
			Help: "Trade loads dropped because their account was no longer active",
		}),
		hydration: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "hydration_duration_seconds",
			Help:    "Time from session settle to all sources confirmed",
			Buckets: prometheus.DefBuckets,
		}),
		splashDisplay: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "splash_display_seconds",
			Help:    "Time the boot splash stayed on screen",
			Buckets: []float64{0.5, 1, 1.5, 2, 2.5, 3, 4},
		}),
		logger: logger,
	}
}

func (c *Collector) SwitchStarted() {
	c.switchesStarted.Inc()
}

func (c *Collector) SwitchEnded(d time.Duration, early bool) {
	c.switchDuration.Observe(d.Seconds())
	if early {
		c.switchesEarly.Inc()
	}
}

func (c *Collector) StaleWriteDropped() {
	c.staleDropped.Inc()
}

func (c *Collector) HydrationDone(d time.Duration) {
	c.hydration.Observe(d.Seconds())
}

// RecordSplash observes how long the boot overlay stayed up.
func (c *Collector) RecordSplash(d time.Duration) {
	c.splashDisplay.Observe(d.Seconds())
}

// Handler serves this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// StartServer runs a metrics-only HTTP server in the background and returns
// it for shutdown.
func (c *Collector) StartServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		c.logger.Info("starting metrics server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			c.logger.Error("metrics server failed", "error", err)
		}
	}()
	return server
}
