// Package metrics holds the node's Prometheus collectors. They are package-
// level so any part of the node (dispatcher, coordinator, WAL) can record
// against them without threading a registry handle through every call.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// OperationsTotal counts every client/peer operation the dispatcher
	// routes, labeled by operation name and outcome status.
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kvstore_operations_total",
			Help: "Operations processed by the dispatcher, by operation and status.",
		},
		[]string{"operation", "status"},
	)

	// Role reports the node's current role as a gauge: 0=SECONDARY,
	// 1=CANDIDATE, 2=PRIMARY. A gauge (not a label-per-role counter) since
	// exactly one role is ever true at a time.
	Role = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kvstore_role",
		Help: "Current node role: 0=SECONDARY, 1=CANDIDATE, 2=PRIMARY.",
	})

	// Term reports the node's current election term.
	Term = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kvstore_term",
		Help: "Current election term.",
	})

	// WALAppendSeconds times every WAL append, including the fsync.
	WALAppendSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "kvstore_wal_append_seconds",
		Help:    "Latency of a single WAL append, including fsync.",
		Buckets: prometheus.DefBuckets,
	})

	// CheckpointsTotal counts completed checkpoints.
	CheckpointsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kvstore_checkpoints_total",
		Help: "Checkpoints completed since process start.",
	})
)

func init() {
	prometheus.MustRegister(OperationsTotal, Role, Term, WALAppendSeconds, CheckpointsTotal)
}
