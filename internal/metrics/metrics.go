package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsRegistry holds all Prometheus metrics for GuildLink
type MetricsRegistry struct {
	// HTTP Metrics
	HTTPRequestsTotal    prometheus.CounterVec
	HTTPRequestDuration  prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.GaugeVec

	// Cache Metrics
	CacheHitsTotal   prometheus.CounterVec
	CacheMissesTotal prometheus.CounterVec

	// Business Metrics
	LinkFlowsTotal    prometheus.CounterVec
	SyncJobsTotal     prometheus.CounterVec
	SyncJobDuration   prometheus.HistogramVec
	RolesMutatedTotal prometheus.CounterVec
	StatesPurgedTotal prometheus.Counter
}

// NewMetricsRegistry initializes and returns a new MetricsRegistry with all metrics
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		// HTTP Metrics
		HTTPRequestsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guildlink_http_requests_total",
				Help: "Total HTTP requests processed by endpoint, method, and status code",
			},
			[]string{"endpoint", "method", "status_code"},
		),
		HTTPRequestDuration: *promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "guildlink_http_request_duration_seconds",
				Help:    "HTTP request latency distribution in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"endpoint", "method"},
		),
		HTTPRequestsInFlight: *promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "guildlink_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"endpoint"},
		),

		// Cache Metrics
		CacheHitsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guildlink_cache_hits_total",
				Help: "Total cache hits by cache key pattern",
			},
			[]string{"cache_key_pattern"},
		),
		CacheMissesTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guildlink_cache_misses_total",
				Help: "Total cache misses by cache key pattern",
			},
			[]string{"cache_key_pattern"},
		),

		// Business Metrics
		LinkFlowsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guildlink_link_flows_total",
				Help: "Completed link flow callbacks by outcome",
			},
			[]string{"outcome"},
		),
		SyncJobsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guildlink_sync_jobs_total",
				Help: "Processed sync jobs by outcome",
			},
			[]string{"outcome"},
		),
		SyncJobDuration: *promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "guildlink_sync_job_duration_seconds",
				Help:    "Sync job execution time in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"reason"},
		),
		RolesMutatedTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guildlink_roles_mutated_total",
				Help: "Discord role mutations applied by the sync pass",
			},
			[]string{"action"},
		),
		StatesPurgedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "guildlink_oauth_states_purged_total",
				Help: "Expired OAuth state rows removed by the cleanup job",
			},
		),
	}
}
