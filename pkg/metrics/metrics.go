package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Runner lifecycle metrics
	ActiveRunners = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "runnerd_active_runners",
			Help: "Number of runner records currently in the registry",
		},
	)

	ProvisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "runnerd_provisions_total",
			Help: "Total number of provision requests by outcome",
		},
		[]string{"outcome"},
	)

	DeprovisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "runnerd_deprovisions_total",
			Help: "Total number of deprovision requests by outcome",
		},
		[]string{"outcome"},
	)

	HeartbeatsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "runnerd_heartbeats_total",
			Help: "Total number of accepted heartbeats",
		},
	)

	RunnersReaped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "runnerd_runners_reaped_total",
			Help: "Total number of runners removed by the inactivity reaper",
		},
	)

	ProvisionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "runnerd_provision_duration_seconds",
			Help:    "Time taken to provision a runner in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "runnerd_api_requests_total",
			Help: "Total number of API requests by route and status",
		},
		[]string{"route", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "runnerd_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// Agent metrics
	SnippetRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "runnerd_snippet_runs_total",
			Help: "Total number of snippet executions by outcome",
		},
		[]string{"outcome"},
	)

	SnippetRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "runnerd_snippet_run_duration_seconds",
			Help:    "Snippet execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(ActiveRunners)
	prometheus.MustRegister(ProvisionsTotal)
	prometheus.MustRegister(DeprovisionsTotal)
	prometheus.MustRegister(HeartbeatsTotal)
	prometheus.MustRegister(RunnersReaped)
	prometheus.MustRegister(ProvisionDuration)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(SnippetRunsTotal)
	prometheus.MustRegister(SnippetRunDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
