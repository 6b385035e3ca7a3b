// Package metrics exposes the resolver's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueriesTotal tracks resolutions completed, by query type and result code.
	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resolverd_queries_total",
		Help: "Total number of DNS queries resolved",
	}, []string{"qtype", "rcode"})

	// QueryDuration tracks wall-clock time from the start of request handling
	// to the finished resolution, before the reply is serialized and sent.
	QueryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "resolverd_query_duration_seconds",
		Help:    "Histogram of end-to-end query resolution duration",
		Buckets: prometheus.DefBuckets,
	})

	// HopCount tracks how many upstream queries a single resolution took.
	HopCount = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "resolverd_resolution_hops",
		Help:    "Histogram of upstream hops per resolution",
		Buckets: []float64{1, 2, 3, 4, 6, 8, 12, 16},
	})

	// DedupHits tracks how often a query arrived while an identical
	// (name, qtype) resolution was already in flight. The duplicate still
	// performs its own upstream walk; this only counts the overlap.
	DedupHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "resolverd_dedup_hits_total",
		Help: "Total number of queries that found a matching resolution already in flight",
	})

	// ActiveWorkers tracks the number of busy UDP workers.
	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "resolverd_active_workers",
		Help: "Number of active workers in the UDP pool",
	})

	// QueueDepth tracks the number of datagrams waiting for a free worker.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "resolverd_queue_depth",
		Help: "Number of received datagrams waiting in the worker queue",
	})

	// BGPAnnounced indicates whether this node is currently announcing its
	// anycast VIP (1 = announcing, 0 = withdrawn).
	BGPAnnounced = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "resolverd_bgp_announced",
		Help: "Binary indicator of BGP announcement status",
	})
)
