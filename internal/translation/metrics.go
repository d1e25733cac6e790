package translation

import "github.com/prometheus/client_golang/prometheus"

var (
	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "translation_cache_lookups_total",
			Help: "Translation cache lookups by tier and result (hit|miss|error).",
		},
		[]string{"tier", "result"},
	)

	modelCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "translation_model_calls_total",
			Help: "Model invocations by outcome (ok|error|rejected).",
		},
		[]string{"outcome"},
	)

	modelLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "translation_model_call_duration_seconds",
			Help:    "Latency of a single model call attempt.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32},
		},
	)

	jobOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "translation_jobs_total",
			Help: "Translation jobs by final state and path (cache|model|noop).",
		},
		[]string{"state", "path"},
	)

	copiesDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "translation_copies_delivered_total",
			Help: "Per-user translated copies newly written.",
		},
	)

	jobsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "translation_jobs_dispatched_total",
			Help: "Jobs created by the fan-out dispatcher by enqueue result (ok|error).",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(cacheLookups, modelCalls, modelLatency, jobOutcomes, copiesDelivered, jobsDispatched)
}
