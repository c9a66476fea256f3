// SPDX-License-Identifier: MPL-2.0

// Package metrics collects Prometheus metrics for a bootstrap run and
// writes them as a node-exporter textfile.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "adhd"

// Phase names used with ObservePhase.
const (
	PhaseDiscovery   = "discovery"
	PhaseMaterialize = "materialize"
	PhaseInitialize  = "initialize"
	PhaseRefresh     = "refresh"
)

type (
	// Config configures a Recorder.
	Config struct {
		Namespace   string
		ConstLabels prometheus.Labels
		Buckets     []float64
	}

	// Option configures a Recorder.
	Option func(*Config)

	// Recorder holds the metrics of one run on a private registry.
	Recorder struct {
		registry *prometheus.Registry

		sourcesTotal   *prometheus.CounterVec
		levels         prometheus.Gauge
		placements     *prometheus.CounterVec
		initResults    *prometheus.CounterVec
		cyclesTotal    prometheus.Counter
		missingTotal   prometheus.Counter
		refreshResults *prometheus.CounterVec
		phaseDuration  *prometheus.HistogramVec
	}
)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the phase duration histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// New creates a Recorder with its own registry.
func New(opts ...Option) *Recorder {
	cfg := Config{
		Namespace: DefaultNamespace,
		// 100ms to ~27min
		Buckets: prometheus.ExponentialBuckets(0.1, 3, 10),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		sourcesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   "discovery",
			Name:        "sources_total",
			Help:        "Sources visited by the crawler, by fetch status",
			ConstLabels: cfg.ConstLabels,
		}, []string{"status"}),
		levels: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   "discovery",
			Name:        "levels",
			Help:        "Number of crawl levels processed",
			ConstLabels: cfg.ConstLabels,
		}),
		placements: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   "materialize",
			Name:        "placements_total",
			Help:        "Placement outcomes by action",
			ConstLabels: cfg.ConstLabels,
		}, []string{"action"}),
		initResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   "initialize",
			Name:        "modules_total",
			Help:        "Initialized modules by result",
			ConstLabels: cfg.ConstLabels,
		}, []string{"result"}),
		cyclesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   "initialize",
			Name:        "cycles_total",
			Help:        "Dependency cycles detected",
			ConstLabels: cfg.ConstLabels,
		}),
		missingTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   "initialize",
			Name:        "missing_dependencies_total",
			Help:        "Requirements that matched no placed module",
			ConstLabels: cfg.ConstLabels,
		}),
		refreshResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   "refresh",
			Name:        "modules_total",
			Help:        "Refreshed modules by result",
			ConstLabels: cfg.ConstLabels,
		}, []string{"result"}),
		phaseDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Name:        "phase_duration_seconds",
			Help:        "Duration of each pipeline phase in seconds",
			ConstLabels: cfg.ConstLabels,
			Buckets:     cfg.Buckets,
		}, []string{"phase"}),
	}
}

// Registry returns the registry the metrics are registered on.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// SourceVisited counts one crawled source.
func (r *Recorder) SourceVisited(ok bool) {
	r.sourcesTotal.WithLabelValues(status(ok, "fetched", "unavailable")).Inc()
}

// SetLevels records the number of crawl levels.
func (r *Recorder) SetLevels(n int) { r.levels.Set(float64(n)) }

// Placement counts one materializer outcome.
func (r *Recorder) Placement(action string) {
	r.placements.WithLabelValues(action).Inc()
}

// Initialized counts one module of the initializer driver.
func (r *Recorder) Initialized(ok bool) {
	r.initResults.WithLabelValues(status(ok, "succeeded", "failed")).Inc()
}

// Cycles counts detected dependency cycles.
func (r *Recorder) Cycles(n int) { r.cyclesTotal.Add(float64(n)) }

// Missing counts unresolved requirements.
func (r *Recorder) Missing(n int) { r.missingTotal.Add(float64(n)) }

// Refreshed counts one refresh action.
func (r *Recorder) Refreshed(ok bool) {
	r.refreshResults.WithLabelValues(status(ok, "succeeded", "failed")).Inc()
}

// ObservePhase records how long a pipeline phase took.
func (r *Recorder) ObservePhase(phase string, d time.Duration) {
	r.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// Since observes the time elapsed since start for phase. It is meant to be
// deferred: defer rec.Since(metrics.PhaseDiscovery, time.Now()).
func (r *Recorder) Since(phase string, start time.Time) {
	r.ObservePhase(phase, time.Since(start))
}

// WriteTextfile atomically writes every metric to path in the Prometheus
// text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

func status(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
