package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	apiRequestsTotal      *prometheus.CounterVec
	apiLatencySeconds     *prometheus.HistogramVec
	apiErrorsTotal        *prometheus.CounterVec
	feedbackResultsTotal  *prometheus.CounterVec
	staleResolutionsTotal prometheus.Counter
	activeSessions        prometheus.Gauge
	conversationTurns     *prometheus.CounterVec
	githubCacheLookups    *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coach_api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coach_api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coach_api_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		feedbackResultsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coach_feedback_results_total",
			Help: "Category feedback resolutions applied to the live submission.",
		}, []string{"category", "status"})

		staleResolutionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coach_feedback_stale_resolutions_total",
			Help: "Category resolutions discarded because a newer submission superseded them.",
		})

		activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coach_active_sessions",
			Help: "Number of live coaching sessions.",
		})

		conversationTurns = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coach_conversation_turns_total",
			Help: "Follow-up questions asked about feedback points.",
		}, []string{"status"})

		githubCacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coach_github_cache_lookups_total",
			Help: "GitHub import cache lookups by result.",
		}, []string{"kind", "result"})

		prometheus.MustRegister(
			apiRequestsTotal, apiLatencySeconds, apiErrorsTotal,
			feedbackResultsTotal, staleResolutionsTotal, activeSessions,
			conversationTurns, githubCacheLookups,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// FeedbackResults exposes the counter of applied category resolutions.
func FeedbackResults() *prometheus.CounterVec {
	RegisterMetrics()
	return feedbackResultsTotal
}

// StaleResolutions exposes the counter of discarded stale resolutions.
func StaleResolutions() prometheus.Counter {
	RegisterMetrics()
	return staleResolutionsTotal
}

// ActiveSessions exposes the live session gauge.
func ActiveSessions() prometheus.Gauge {
	RegisterMetrics()
	return activeSessions
}

// ConversationTurns exposes the follow-up question counter.
func ConversationTurns() *prometheus.CounterVec {
	RegisterMetrics()
	return conversationTurns
}

// GitHubCacheLookups exposes the GitHub cache hit/miss counter.
func GitHubCacheLookups() *prometheus.CounterVec {
	RegisterMetrics()
	return githubCacheLookups
}
