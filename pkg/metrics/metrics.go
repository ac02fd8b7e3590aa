package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RepositoryOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "casdoc", Name: "repository_ops_total", Help: "Repository operations by name and result."},
		[]string{"op", "result"},
	)
	OptimisticConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "casdoc", Name: "optimistic_conflicts_total", Help: "Conditional writes lost to a concurrent writer."},
	)
	StoreOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "casdoc", Name: "store_ops_total", Help: "Document store calls by backend, operation and result."},
		[]string{"backend", "op", "result"},
	)
	ArchiveSnapshots = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "casdoc", Name: "archive_snapshots_total", Help: "Document snapshots exported to object storage."},
		[]string{"result"},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "casdoc", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "casdoc", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RepositoryOps)
	reg.MustRegister(OptimisticConflicts)
	reg.MustRegister(StoreOps)
	reg.MustRegister(ArchiveSnapshots)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}
