// Package metrics exposes prometheus collectors for producers and readers.
// A disabled registry hands out no-op collectors so callers never nil-check.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "streamclient"

// Counter is the subset of prometheus.Counter the stream code uses
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram is the subset of prometheus.Histogram the stream code uses
type Histogram interface {
	Observe(float64)
}

// Gauge is the subset of prometheus.Gauge the stream code uses
type Gauge interface {
	Set(float64)
}

// CounterVec hands out labeled counters
type CounterVec interface {
	With(labels ...string) Counter
}

// HistogramVec hands out labeled histograms
type HistogramVec interface {
	With(labels ...string) Histogram
}

// GaugeVec hands out labeled gauges
type GaugeVec interface {
	With(labels ...string) Gauge
}

// NoopStat satisfies every collector interface and records nothing
type NoopStat struct{}

func (NoopStat) Inc()            {}
func (NoopStat) Add(float64)     {}
func (NoopStat) Observe(float64) {}
func (NoopStat) Set(float64)     {}

type noopCounterVec struct{}
type noopHistogramVec struct{}
type noopGaugeVec struct{}

func (noopCounterVec) With(...string) Counter     { return NoopStat{} }
func (noopHistogramVec) With(...string) Histogram { return NoopStat{} }
func (noopGaugeVec) With(...string) Gauge         { return NoopStat{} }

type counterVec struct{ vec *prometheus.CounterVec }
type histogramVec struct{ vec *prometheus.HistogramVec }
type gaugeVec struct{ vec *prometheus.GaugeVec }

func (c counterVec) With(labels ...string) Counter     { return c.vec.WithLabelValues(labels...) }
func (h histogramVec) With(labels ...string) Histogram { return h.vec.WithLabelValues(labels...) }
func (g gaugeVec) With(labels ...string) Gauge         { return g.vec.WithLabelValues(labels...) }

// Registry owns the prometheus registry. The zero value and nil are disabled.
type Registry struct {
	reg *prometheus.Registry
}

// NewRegistry creates an enabled registry with process and Go runtime collectors
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(collectors.NewGoCollector())
	return &Registry{reg: reg}
}

// Enabled reports whether collectors are recorded
func (r *Registry) Enabled() bool {
	return r != nil && r.reg != nil
}

// Gatherer exposes the underlying registry; nil when disabled
func (r *Registry) Gatherer() prometheus.Gatherer {
	if !r.Enabled() {
		return nil
	}
	return r.reg
}

// Handler serves the registry in the prometheus text format; nil when disabled
func (r *Registry) Handler() http.Handler {
	if !r.Enabled() {
		return nil
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// NewCounterVec registers a labeled counter
func (r *Registry) NewCounterVec(name, help string, labels []string) CounterVec {
	if !r.Enabled() {
		return noopCounterVec{}
	}

	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, labels)
	r.reg.MustRegister(vec)
	return counterVec{vec: vec}
}

// NewHistogramVec registers a labeled histogram
func (r *Registry) NewHistogramVec(name, help string, labels []string, buckets []float64) HistogramVec {
	if !r.Enabled() {
		return noopHistogramVec{}
	}

	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}, labels)
	r.reg.MustRegister(vec)
	return histogramVec{vec: vec}
}

// NewGaugeVec registers a labeled gauge
func (r *Registry) NewGaugeVec(name, help string, labels []string) GaugeVec {
	if !r.Enabled() {
		return noopGaugeVec{}
	}

	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, labels)
	r.reg.MustRegister(vec)
	return gaugeVec{vec: vec}
}
