// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HttpRequestsTotal counts status API requests.
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of http requests handled by the service.",
		},
		[]string{"path", "method", "code"},
	)

	// JobsDispatchedTotal counts requests sent, per selected worker.
	JobsDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_dispatched_total",
			Help: "Total number of jobs sent to a worker.",
		},
		[]string{"worker_id"},
	)

	// JobOutcomesTotal counts resolved jobs by outcome (completed/failed).
	JobOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_outcomes_total",
			Help: "Total number of resolved jobs by outcome.",
		},
		[]string{"outcome"},
	)

	// JobRoundTrip observes time from dispatch to reply for completed jobs.
	JobRoundTrip = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "job_roundtrip_seconds",
			Help:    "Time between sending a job and receiving its reply.",
			Buckets: prometheus.DefBuckets,
		},
	)

	// TicksSkippedTotal counts ticks that originated no job, by reason
	// (no_workers, in_flight, coalesced).
	TicksSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_ticks_skipped_total",
			Help: "Total number of ticks that did not originate a job.",
		},
		[]string{"reason"},
	)

	// UnmatchedRepliesTotal counts replies that arrived after their job resolved.
	UnmatchedRepliesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatcher_unmatched_replies_total",
			Help: "Total number of late or unmatched replies discarded.",
		},
	)

	// WorkersAvailable is the size of the last membership snapshot.
	WorkersAvailable = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "workers_available",
			Help: "Number of workers in the current directory snapshot.",
		},
	)

	// TransformRequestsTotal counts requests served by a worker, per origin tag.
	TransformRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_transform_requests_total",
			Help: "Total number of transform requests served by this worker.",
		},
		[]string{"origin_tag"},
	)

	// RegistrationsTotal counts worker (re-)registrations in discovery.
	RegistrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_registrations_total",
			Help: "Total number of discovery registrations by result.",
		},
		[]string{"result"},
	)

	// IsLeader marks whether this frontend currently originates jobs.
	IsLeader = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "is_leader",
			Help: "Is this node currently the leader. 1 if leader, 0 otherwise.",
		},
		[]string{"node_id"},
	)
)
