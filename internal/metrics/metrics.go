package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Transcoder subprocess metrics
var (
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videoflix_ffmpeg_commands_total",
			Help: "Total number of ffmpeg invocations by command and result",
		},
		[]string{"command", "result"},
	)

	CommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "videoflix_ffmpeg_command_duration_seconds",
			Help:    "Wall-clock duration of ffmpeg invocations",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600, 900},
		},
		[]string{"command"},
	)
)

// Job metrics
var (
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videoflix_jobs_total",
			Help: "Total number of processed conversion jobs by task and outcome",
		},
		[]string{"task", "outcome"},
	)

	JobsInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "videoflix_jobs_in_flight",
			Help: "Number of conversion jobs currently running on this worker",
		},
		[]string{"task"},
	)

	JobsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videoflix_jobs_enqueued_total",
			Help: "Total number of jobs submitted to the queue",
		},
		[]string{"task", "result"},
	)

	RenditionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videoflix_renditions_total",
			Help: "HLS renditions by resolution and result",
		},
		[]string{"resolution", "result"},
	)
)

// Cleanup metrics
var (
	CleanupErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "videoflix_cleanup_errors_total",
			Help: "Total number of failed best-effort deletions",
		},
	)
)
