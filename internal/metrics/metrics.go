package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UploadAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "template_upload_attempts_total",
			Help: "Header media upload attempts per strategy and result",
		},
		[]string{"path", "result"},
	)

	SubmissionOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "template_submission_outcomes_total",
			Help: "Per-language submission outcomes",
		},
		[]string{"status"},
	)

	GraphRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "graph_request_duration_seconds",
			Help:    "Duration of Graph API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	ResyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "template_resync_runs_total",
			Help: "Approval resync runs by result",
		},
		[]string{"result"},
	)
)
