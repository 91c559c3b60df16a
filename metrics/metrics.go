package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Audit write outcomes
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

// Collector holds the reqtel metrics on its own registry
type Collector struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	auditWrites      *prometheus.CounterVec
	trackerPruned    prometheus.Counter
	anomaliesFlagged *prometheus.CounterVec
}

// New creates a collector and registers the process and Go runtime collectors
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "reqtel",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of intercepted HTTP requests",
			},
			[]string{"method", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "reqtel",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
			},
			[]string{"method"},
		),
		auditWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "reqtel",
				Subsystem: "audit",
				Name:      "writes_total",
				Help:      "Audit sink writes by result",
			},
			[]string{"result"},
		),
		trackerPruned: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "reqtel",
				Subsystem: "tracker",
				Name:      "pruned_total",
				Help:      "Timestamps removed by the tracker sweep",
			},
		),
		anomaliesFlagged: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "reqtel",
				Subsystem: "anomalies",
				Name:      "flagged_total",
				Help:      "Audit records newly flagged, by anomaly kind",
			},
			[]string{"kind"},
		),
	}
}

// ObserveRequest records one completed request
func (c *Collector) ObserveRequest(method string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveAuditWrite records the result of one sink write
func (c *Collector) ObserveAuditWrite(err error) {
	if c == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultFailed
	}
	c.auditWrites.WithLabelValues(result).Inc()
}

// ObservePruned adds the timestamps removed by one sweep
func (c *Collector) ObservePruned(removed int) {
	if c == nil || removed <= 0 {
		return
	}
	c.trackerPruned.Add(float64(removed))
}

// ObserveFlagged counts a newly flagged record under each of its kinds
func (c *Collector) ObserveFlagged(kinds []string) {
	if c == nil {
		return
	}
	for _, kind := range kinds {
		c.anomaliesFlagged.WithLabelValues(kind).Inc()
	}
}

// TrackSources exposes the number of live tracker sources as a gauge
func (c *Collector) TrackSources(sources func() int) {
	if c == nil {
		return
	}
	promauto.With(c.registry).NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "reqtel",
			Subsystem: "tracker",
			Name:      "sources",
			Help:      "Source identifiers currently held by the frequency tracker",
		},
		func() float64 { return float64(sources()) },
	)
}

// Registry returns the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
