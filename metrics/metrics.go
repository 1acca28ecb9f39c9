// Package metrics - Prometheus collectors for detector engines.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Warning kinds recorded by Collector.Warn.
const (
	WarnSchemaMismatch = "schema_mismatch"
	WarnEmptyImage     = "empty_image"
	WarnBatchUnderfill = "batch_underfill"
	WarnResultCount    = "result_count"
)

// Collector groups the engine metrics on a private registry.
type Collector struct {
	registry   *prometheus.Registry
	forwards   *prometheus.CounterVec
	forwardSec *prometheus.HistogramVec
	images     *prometheus.CounterVec
	detections *prometheus.CounterVec
	warnings   *prometheus.CounterVec
}

// NewCollector creates and registers the engine metrics together with the Go
// runtime and process collectors.
//
// Returns:
//   - *Collector: Metrics labelled by parser name.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		forwards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "detector_forward_total",
			Help: "Forward passes executed.",
		}, []string{"parser"}),
		forwardSec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "detector_forward_seconds",
			Help:    "Time spent in forward passes.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"parser"}),
		images: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "detector_images_total",
			Help: "Images submitted for detection.",
		}, []string{"parser"}),
		detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "detector_detections_total",
			Help: "Boxes returned in results.",
		}, []string{"parser"}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "detector_warnings_total",
			Help: "Recoverable conditions by kind.",
		}, []string{"parser", "kind"}),
	}
	c.registry.MustRegister(c.forwards, c.forwardSec, c.images, c.detections, c.warnings)
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObserveForward records one forward pass.
func (c *Collector) ObserveForward(parser string, seconds float64) {
	c.forwards.WithLabelValues(parser).Inc()
	c.forwardSec.WithLabelValues(parser).Observe(seconds)
}

// AddImages counts submitted images.
func (c *Collector) AddImages(parser string, n int) {
	c.images.WithLabelValues(parser).Add(float64(n))
}

// AddDetections counts returned boxes.
func (c *Collector) AddDetections(parser string, n int) {
	c.detections.WithLabelValues(parser).Add(float64(n))
}

// Warn counts one recoverable condition.
func (c *Collector) Warn(parser, kind string) {
	c.warnings.WithLabelValues(parser, kind).Inc()
}
