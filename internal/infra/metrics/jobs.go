package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(jobsProcessedTotal, pipelineDurationSeconds, fallbackTotal, batchesCompletedTotal, jobsExpiredTotal)
}

var jobsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pipeline_jobs_processed_total",
		Help: "Jobs that reached a terminal state, labeled by status.",
	},
	[]string{"status"}, // 'completed', 'failed'
)

var pipelineDurationSeconds = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "pipeline_job_duration_seconds",
		Help:    "Wall time from claiming a job to its terminal state.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
	},
)

var fallbackTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "pipeline_fallback_total",
		Help: "Jobs completed with the optimized original because no usable edit arrived.",
	},
)

var batchesCompletedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "pipeline_batches_completed_total",
		Help: "Batches whose last child reached a terminal state.",
	},
)

var jobsExpiredTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "pipeline_jobs_expired_total",
		Help: "Records removed by the retention sweeper.",
	},
)

func IncJob(status string) {
	jobsProcessedTotal.WithLabelValues(norm(status)).Inc()
}

func ObservePipeline(d time.Duration) {
	pipelineDurationSeconds.Observe(d.Seconds())
}

func IncFallback() { fallbackTotal.Inc() }

func IncBatchCompleted() { batchesCompletedTotal.Inc() }

func AddExpired(n int64) { jobsExpiredTotal.Add(float64(n)) }
