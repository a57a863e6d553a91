package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lendee_pipeline_runs_total",
			Help: "Total number of feature pipeline runs",
		},
		[]string{"mode", "outcome"},
	)

	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lendee_pipeline_duration_seconds",
			Help:    "Duration of a load, aggregate and score pass in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	LendeesScored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lendee_scores_computed_total",
			Help: "Total number of lendee scores computed",
		},
	)

	RelayDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_deliveries_total",
			Help: "Total number of relay publish attempts by outcome",
		},
		[]string{"outcome"},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)

// ObservePipeline records one pipeline run.
func ObservePipeline(mode string, start time.Time, scored int, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	PipelineRuns.WithLabelValues(mode, outcome).Inc()
	PipelineDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	LendeesScored.Add(float64(scored))
}

func ObserveDelivery(delivered bool) {
	if delivered {
		RelayDeliveries.WithLabelValues(OutcomeSuccess).Inc()
		return
	}
	RelayDeliveries.WithLabelValues(OutcomeFailure).Inc()
}
