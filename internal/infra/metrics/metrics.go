package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PredictionSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "brandkit",
			Subsystem: "prediction",
			Name:      "submissions_total",
			Help:      "Job submissions by model and outcome",
		},
		[]string{"model", "outcome"},
	)

	PredictionPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "brandkit",
			Subsystem: "prediction",
			Name:      "polls_total",
			Help:      "Status polls by remote status",
		},
		[]string{"status"},
	)

	PredictionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "brandkit",
			Subsystem: "prediction",
			Name:      "duration_seconds",
			Help:      "Time from submission to terminal state",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"outcome"},
	)

	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "brandkit",
			Subsystem: "storage",
			Name:      "uploads_total",
			Help:      "Source image uploads",
		},
		[]string{"driver", "status"},
	)

	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "brandkit",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "brandkit",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 30, 60},
		},
		[]string{"method", "route"},
	)

	WorkerJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "brandkit",
			Subsystem: "worker",
			Name:      "jobs_total",
			Help:      "Queued generation jobs processed by final status",
		},
		[]string{"status"},
	)
)

func RecordSubmission(model, outcome string) {
	PredictionSubmissions.WithLabelValues(model, outcome).Inc()
}

func RecordPoll(status string) {
	PredictionPolls.WithLabelValues(status).Inc()
}

func RecordOutcome(outcome string, seconds float64) {
	PredictionDuration.WithLabelValues(outcome).Observe(seconds)
}

func RecordUpload(driver, status string) {
	UploadsTotal.WithLabelValues(driver, status).Inc()
}

func RecordRequest(method, route, status string, seconds float64) {
	RequestsTotal.WithLabelValues(method, route, status).Inc()
	RequestDuration.WithLabelValues(method, route).Observe(seconds)
}

func RecordWorkerJob(status string) {
	WorkerJobs.WithLabelValues(status).Inc()
}
