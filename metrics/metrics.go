package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type VodAPIMetrics struct {
	HTTPRequestsInFlight   prometheus.Gauge
	TranscodeJobsStarted   prometheus.Counter
	TranscodeJobsInFlight  prometheus.Gauge
	TranscodeJobResults    *prometheus.CounterVec
	TranscodeJobDuration   prometheus.Histogram
	TokensIssued           prometheus.Counter
	PlaybackAuthorizations *prometheus.CounterVec
	ViewsRecorded          prometheus.Counter
}

func NewMetrics() *VodAPIMetrics {
	m := &VodAPIMetrics{
		HTTPRequestsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "The number of HTTP requests currently being served",
		}),
		TranscodeJobsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "transcode_jobs_started_count",
			Help: "The total number of transcode jobs accepted",
		}),
		TranscodeJobsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "transcode_jobs_in_flight",
			Help: "Number of transcode jobs currently queued or running",
		}),
		TranscodeJobResults: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "transcode_job_results_count",
			Help: "The total number of finished transcode jobs, broken up by success",
		}, []string{"success"}),
		TranscodeJobDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "transcode_job_duration_seconds",
			Help:    "Time taken to run a transcode job end to end",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}),
		TokensIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "playback_tokens_issued_count",
			Help: "The total number of playback tokens issued",
		}),
		PlaybackAuthorizations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "playback_authorizations_count",
			Help: "The total number of playback authorization decisions, broken up by allowed",
		}, []string{"allowed"}),
		ViewsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "views_recorded_count",
			Help: "The total number of views recorded on successful playback authorization",
		}),
	}
	return m
}

var Metrics = NewMetrics()
