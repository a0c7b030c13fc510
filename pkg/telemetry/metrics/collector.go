package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector owns the Prometheus registry and every metric the controller
// records. All record methods are safe on a nil receiver so callers do
// not have to guard for disabled metrics.
type Collector struct {
	registry *prometheus.Registry

	operations      *prometheus.CounterVec
	reloads         *prometheus.CounterVec
	reloadDuration  prometheus.Histogram
	sessions        prometheus.Gauge
	certificates    prometheus.Gauge
	redirectEntries prometheus.Gauge
	redirectLookups *prometheus.CounterVec
	purgedEntries   prometheus.Counter
}

// NewCollector creates a collector registered against the given registry.
// If registry is nil a fresh one is created. An empty namespace defaults
// to "ganymede".
func NewCollector(namespace string, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if namespace == "" {
		namespace = "ganymede"
	}

	c := &Collector{
		registry: registry,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provisioning_operations_total",
			Help:      "Provisioning store operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proxy_reloads_total",
			Help:      "Supervised proxy reload attempts by outcome.",
		}, []string{"outcome"}),
		reloadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "proxy_reload_duration_seconds",
			Help:      "Wall time of supervised proxy reloads, including health wait.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "provisioning_sessions",
			Help:      "Number of provisioned content hosting sessions.",
		}),
		certificates: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "certificates",
			Help:      "Number of cached server certificates.",
		}),
		redirectEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "redirect_entries",
			Help:      "Physically present redirect table entries.",
		}),
		redirectLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redirect_lookups_total",
			Help:      "Redirect table resolutions by result (hit, static, miss).",
		}, []string{"result"}),
		purgedEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_purged_entries_total",
			Help:      "Proxy cache entries removed by purge operations.",
		}),
	}

	registry.MustRegister(
		c.operations,
		c.reloads,
		c.reloadDuration,
		c.sessions,
		c.certificates,
		c.redirectEntries,
		c.redirectLookups,
		c.purgedEntries,
	)
	return c
}

// RecordOperation counts one provisioning store operation.
func (c *Collector) RecordOperation(operation, outcome string) {
	if c == nil {
		return
	}
	c.operations.WithLabelValues(operation, outcome).Inc()
}

// RecordReload counts one reload attempt and observes its duration.
func (c *Collector) RecordReload(outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.reloads.WithLabelValues(outcome).Inc()
	c.reloadDuration.Observe(duration.Seconds())
}

// SetSessions sets the provisioned session gauge.
func (c *Collector) SetSessions(n int) {
	if c == nil {
		return
	}
	c.sessions.Set(float64(n))
}

// SetCertificates sets the cached certificate gauge.
func (c *Collector) SetCertificates(n int) {
	if c == nil {
		return
	}
	c.certificates.Set(float64(n))
}

// SetRedirectEntries sets the redirect table size gauge.
func (c *Collector) SetRedirectEntries(n int) {
	if c == nil {
		return
	}
	c.redirectEntries.Set(float64(n))
}

// RecordRedirectLookup counts one redirect resolution. result is one of
// "hit", "static" or "miss".
func (c *Collector) RecordRedirectLookup(result string) {
	if c == nil {
		return
	}
	c.redirectLookups.WithLabelValues(result).Inc()
}

// AddPurgedEntries counts cache entries removed by a purge.
func (c *Collector) AddPurgedEntries(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.purgedEntries.Add(float64(n))
}
