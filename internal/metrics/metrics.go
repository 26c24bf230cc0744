// Package metrics exposes Prometheus metrics for velocity-field processing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Option applies a configuration option to the Recorder.
type Option func(*Recorder)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(r *Recorder) {
		if namespace != "" {
			r.namespace = namespace
		}
	}
}

// WithHistogramBuckets sets custom buckets (seconds) for latency histograms.
func WithHistogramBuckets(buckets []float64) Option {
	return func(r *Recorder) {
		if len(buckets) > 0 {
			r.buckets = buckets
		}
	}
}

// WithRegistry registers the metrics on reg instead of a fresh registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(r *Recorder) {
		if reg != nil {
			r.registry = reg
		}
	}
}

// Recorder records processing metrics. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	namespace string
	buckets   []float64
	registry  *prometheus.Registry

	positions        *prometheus.CounterVec
	emptyPositions   *prometheus.CounterVec
	eventsSampled    prometheus.Counter
	estimateDuration *prometheus.HistogramVec
	outliers         prometheus.Counter
	runDuration      prometheus.Histogram
}

// NewRecorder creates a Recorder on its own registry unless WithRegistry
// is given.
func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{
		namespace: "ebiv",
		buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.registry == nil {
		r.registry = prometheus.NewRegistry()
	}

	auto := promauto.With(r.registry)
	r.positions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: "pipeline",
		Name:      "positions_total",
		Help:      "Sample positions processed, by evaluation method",
	}, []string{"method"})
	r.emptyPositions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: "pipeline",
		Name:      "empty_positions_total",
		Help:      "Sample positions without events, by evaluation method",
	}, []string{"method"})
	r.eventsSampled = auto.NewCounter(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: "pipeline",
		Name:      "events_sampled_total",
		Help:      "Events contributing to velocity estimates",
	})
	r.estimateDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Subsystem: "pipeline",
		Name:      "estimate_duration_seconds",
		Help:      "Time spent estimating the velocity of one sample position",
		Buckets:   r.buckets,
	}, []string{"method"})
	r.outliers = auto.NewCounter(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: "validation",
		Name:      "outliers_total",
		Help:      "Vectors flagged as outliers by field validation",
	})
	r.runDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Subsystem: "pipeline",
		Name:      "run_duration_seconds",
		Help:      "Wall time of complete processing runs",
		Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8),
	})
	return r
}

// Registry returns the registry the metrics are registered on.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObservePosition records one processed sample position.
func (r *Recorder) ObservePosition(method string, d time.Duration, events int) {
	if r == nil {
		return
	}
	r.positions.WithLabelValues(method).Inc()
	r.estimateDuration.WithLabelValues(method).Observe(d.Seconds())
	if events <= 0 {
		r.emptyPositions.WithLabelValues(method).Inc()
		return
	}
	r.eventsSampled.Add(float64(events))
}

// AddOutliers records vectors flagged by field validation.
func (r *Recorder) AddOutliers(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.outliers.Add(float64(n))
}

// ObserveRun records the wall time of a complete run.
func (r *Recorder) ObserveRun(d time.Duration) {
	if r == nil {
		return
	}
	r.runDuration.Observe(d.Seconds())
}
