// Package metrics holds the Prometheus instrumentation for resolverd,
// trimmed from the teacher's domain (no DB pool, no BGP) down to what a
// recursive resolver actually needs to observe.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueriesTotal tracks every inbound query the dispatcher accepted,
	// labeled by the RCODE it was answered with.
	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resolverd_queries_total",
		Help: "Total number of DNS queries processed",
	}, []string{"qtype", "rcode"})

	// ResolveDuration tracks end-to-end Resolve() latency.
	ResolveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "resolverd_resolve_duration_seconds",
		Help:    "Histogram of iterative resolution duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"qtype"})

	// HopsTotal counts every upstream datagram exchange a resolution made,
	// one per nameserver tried, successful or not.
	HopsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resolverd_hops_total",
		Help: "Total number of upstream nameserver hops made while resolving",
	}, []string{"result"})

	// CacheOperations tracks local and remote cache hits/misses.
	CacheOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resolverd_cache_operations_total",
		Help: "Total number of cache hits and misses",
	}, []string{"level", "result"})

	// ActiveWorkers tracks running dispatcher worker goroutines, idle or
	// busy.
	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "resolverd_active_workers",
		Help: "Number of active workers in the UDP dispatch pool",
	})

	// PanicsRecovered counts worker panics caught and swallowed per
	// request, so a malformed packet never takes the daemon down.
	PanicsRecovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "resolverd_panics_recovered_total",
		Help: "Total number of panics recovered in the UDP dispatch workers",
	})
)
