package queue

import "github.com/prometheus/client_golang/prometheus"

var (
	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "translation_queue_depth",
			Help: "Jobs enqueued by this process and not yet received by a consumer.",
		},
		[]string{"backend"},
	)

	jobsHandled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "translation_queue_jobs_total",
			Help: "Jobs handled by the worker pool by outcome (ok|error|panic).",
		},
		[]string{"outcome"},
	)

	jobDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "translation_queue_job_duration_seconds",
			Help:    "Wall time spent in the job handler.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	workersBusy = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "translation_workers_busy",
			Help: "Consumers currently running a job.",
		},
	)
)

func init() {
	prometheus.MustRegister(queueDepth, jobsHandled, jobDuration, workersBusy)
}
