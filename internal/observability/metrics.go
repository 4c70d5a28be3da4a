package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facetag",
		Name:      "jobs_enqueued_total",
		Help:      "Total number of worker jobs enqueued",
	}, []string{"job_type", "trigger"})

	Callbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facetag",
		Name:      "job_callbacks_total",
		Help:      "Total worker callbacks received",
	}, []string{"status"})

	CallbackReplays = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facetag",
		Name:      "job_callback_replays_total",
		Help:      "Callbacks that matched an already-applied (job, status) pair",
	})

	ClusterMerges = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facetag",
		Name:      "cluster_merges_total",
		Help:      "Total cluster assign/merge operations committed",
	})

	TagsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facetag",
		Name:      "media_tags_created_total",
		Help:      "Media tags created by the merge engine",
	})

	SuggestionsServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facetag",
		Name:      "suggestions_total",
		Help:      "Suggestion requests by outcome",
	}, []string{"outcome"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "facetag",
		Name:      "job_queue_depth",
		Help:      "Number of pending dispatch messages in the JOBS stream",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "facetag",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "facetag",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
