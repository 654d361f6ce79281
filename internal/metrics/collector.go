// Package metrics collects Prometheus metrics for backend traffic, cache
// effectiveness and transaction outcomes.
//
// The collector owns a private registry so that several instances (tests,
// embedded uses) never fight over the default registry. A nil *Collector is
// valid and records nothing, which keeps call sites free of enablement
// checks.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config represents metrics configuration.
type Config struct {
	Enabled   bool              `yaml:"enabled"`
	Namespace string            `yaml:"namespace"`
	Labels    map[string]string `yaml:"labels"`
}

// DefaultConfig returns the default metrics configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:   true,
		Namespace: "fsbridge",
	}
}

// Collector aggregates fsbridge metrics on a private Prometheus registry.
type Collector struct {
	registry *prometheus.Registry

	backendOps      *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
	backendErrors   *prometheus.CounterVec
	bytesRead       *prometheus.CounterVec
	bytesWritten    *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	cacheEvictions  *prometheus.CounterVec
	transactions    *prometheus.CounterVec
}

// NewCollector creates a collector. Returns nil when disabled, which all
// recording methods tolerate.
func NewCollector(config *Config) (*Collector, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if !config.Enabled {
		return nil, nil
	}

	registry := prometheus.NewRegistry()
	ns := config.Namespace

	c := &Collector{
		registry: registry,
		backendOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "backend_operations_total",
			Help:        "Backend operations by operation and protocol",
			ConstLabels: config.Labels,
		}, []string{"operation", "protocol"}),
		backendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   ns,
			Name:        "backend_operation_duration_seconds",
			Help:        "Backend operation latency",
			Buckets:     prometheus.ExponentialBuckets(0.001, 2, 14),
			ConstLabels: config.Labels,
		}, []string{"operation", "protocol"}),
		backendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "backend_errors_total",
			Help:        "Backend operation failures",
			ConstLabels: config.Labels,
		}, []string{"operation", "protocol"}),
		bytesRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "bytes_read_total",
			Help:        "Bytes fetched from backends",
			ConstLabels: config.Labels,
		}, []string{"protocol"}),
		bytesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "bytes_written_total",
			Help:        "Bytes written to backends",
			ConstLabels: config.Labels,
		}, []string{"protocol"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "cache_hits_total",
			Help:        "Read cache hits by strategy",
			ConstLabels: config.Labels,
		}, []string{"strategy"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "cache_misses_total",
			Help:        "Read cache misses by strategy",
			ConstLabels: config.Labels,
		}, []string{"strategy"}),
		cacheEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "cache_evictions_total",
			Help:        "Read cache block evictions by strategy",
			ConstLabels: config.Labels,
		}, []string{"strategy"}),
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "transactions_total",
			Help:        "Transactions resolved, by outcome",
			ConstLabels: config.Labels,
		}, []string{"outcome"}),
	}

	for _, m := range []prometheus.Collector{
		c.backendOps, c.backendDuration, c.backendErrors,
		c.bytesRead, c.bytesWritten,
		c.cacheHits, c.cacheMisses, c.cacheEvictions,
		c.transactions,
	} {
		if err := registry.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// RecordBackendOp records one backend call.
func (c *Collector) RecordBackendOp(operation, protocol string, duration time.Duration, err error) {
	if c == nil {
		return
	}
	c.backendOps.WithLabelValues(operation, protocol).Inc()
	c.backendDuration.WithLabelValues(operation, protocol).Observe(duration.Seconds())
	if err != nil {
		c.backendErrors.WithLabelValues(operation, protocol).Inc()
	}
}

// RecordBytesRead accounts bytes fetched from a backend.
func (c *Collector) RecordBytesRead(protocol string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.bytesRead.WithLabelValues(protocol).Add(float64(n))
}

// RecordBytesWritten accounts bytes pushed to a backend.
func (c *Collector) RecordBytesWritten(protocol string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.bytesWritten.WithLabelValues(protocol).Add(float64(n))
}

// RecordCache folds a per-file stats delta into the strategy counters.
func (c *Collector) RecordCache(strategy string, hits, misses, evictions uint64) {
	if c == nil {
		return
	}
	c.cacheHits.WithLabelValues(strategy).Add(float64(hits))
	c.cacheMisses.WithLabelValues(strategy).Add(float64(misses))
	c.cacheEvictions.WithLabelValues(strategy).Add(float64(evictions))
}

// RecordTransaction records a resolved transaction outcome
// ("committed", "partial", "discarded").
func (c *Collector) RecordTransaction(outcome string) {
	if c == nil {
		return
	}
	c.transactions.WithLabelValues(outcome).Inc()
}

// Registry exposes the private registry, e.g. for test scraping.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the collector's metrics in Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
