// Package metrics holds the Prometheus collectors of the dispatch pipeline.
// Collectors register with the default registry at init.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "campaign_dispatch"

var (
	QueueClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "queue_items_claimed_total",
		Help:      "Queue items moved to processing by a pass",
	})
	QueueSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "queue_items_sent_total",
		Help:      "Queue items dispatched successfully",
	})
	QueueFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "queue_items_failed_total",
		Help:      "Queue items marked failed, by kind (transient, permanent, panic)",
	}, []string{"kind"})
	QueueReclaimed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "queue_items_reclaimed_total",
		Help:      "Stale processing items returned to pending",
	})
	QueueReleased = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "queue_items_released_total",
		Help:      "Claimed items handed back to pending without a retry, by reason (throttled, cancelled)",
	}, []string{"reason"})
	PassDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "pass_duration_seconds",
		Help:      "Duration of one processing pass",
		Buckets:   prometheus.DefBuckets,
	}, []string{"trigger"})

	ApprovalTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "approval_transitions_total",
		Help:      "Campaign approval transitions by outcome",
	}, []string{"outcome"})
	ItemsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "queue_items_enqueued_total",
		Help:      "Queue items created by enqueue",
	})

	DedupDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dedup_decisions_total",
		Help:      "Import row decisions by outcome",
	}, []string{"outcome"})

	BestEffortErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "best_effort_errors_total",
		Help:      "Swallowed errors from non-blocking bookkeeping (stats, unread flag, conversation)",
	}, []string{"op"})

	WebhookRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_requests_total",
		Help:      "Keyed webhook invocations by HTTP status",
	}, []string{"status"})
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
