// Package metrics provides Prometheus metrics for the wiki resolver.
// It tracks tool calls, page resolutions, site cache behavior and wiki API traffic.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const (
	Namespace = "wiki_resolver"
)

var (
	// RequestsTotal counts MCP tool calls by tool name and status
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "requests_total",
		Help:      "Total number of MCP tool calls",
	}, []string{"tool", "status"})

	// RequestDuration measures tool call latency
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "request_duration_seconds",
		Help:      "Tool call latency distribution by tool",
		Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"tool"})

	// RequestInFlight tracks currently executing tool calls
	RequestInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "requests_in_flight",
		Help:      "Number of tool calls currently being processed",
	}, []string{"tool"})

	// SiteCacheHits counts site metadata served from a fresh cache entry
	SiteCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "site_cache_hits_total",
		Help:      "Site metadata lookups served from cache",
	})

	// SiteCacheMisses counts lookups that fetched siteinfo from the wiki
	SiteCacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "site_cache_misses_total",
		Help:      "Site metadata lookups that went to the network, by reason",
	}, []string{"reason"})

	// WikiAPILatency measures wiki API call latency by action
	WikiAPILatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "wiki_api_latency_seconds",
		Help:      "Wiki API call latency by action",
		Buckets:   prometheus.DefBuckets,
	}, []string{"action"})

	// WikiAPIRequestsTotal counts wiki API requests
	WikiAPIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "wiki_api_requests_total",
		Help:      "Total wiki API requests by action and status",
	}, []string{"action", "status"})

	// WikiAPIErrors counts wiki API errors by kind
	WikiAPIErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "wiki_api_errors_total",
		Help:      "Wiki API errors by action and error kind",
	}, []string{"action", "kind"})

	// FetchRetries counts retried HTTP attempts per host
	FetchRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "fetch_retries_total",
		Help:      "Retried HTTP attempts by host",
	}, []string{"host"})

	// CircuitBreakerRejections counts requests refused by an open circuit
	CircuitBreakerRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "circuit_breaker_rejections_total",
		Help:      "Requests refused because the host circuit was open",
	}, []string{"host"})

	// PageResolutions counts finished page resolutions by outcome
	PageResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "page_resolutions_total",
		Help:      "Page resolutions by outcome",
	}, []string{"outcome"})

	// PageResolutionDuration measures top-level page resolution latency
	PageResolutionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "page_resolution_duration_seconds",
		Help:      "Latency of a full page resolution, recursion included",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 60},
	})

	// InterwikiHops counts interwiki redirections followed
	InterwikiHops = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "interwiki_hops_total",
		Help:      "Interwiki hops followed, by depth of the hop",
	}, []string{"depth"})

	// ModerationRejections counts redacted results
	ModerationRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "moderation_rejections_total",
		Help:      "Results redacted by moderation, by reason",
	}, []string{"reason"})

	// PanicsRecovered counts recovered panics
	PanicsRecovered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "panics_recovered_total",
		Help:      "Number of panics recovered in tool handlers",
	}, []string{"tool"})
)

// RecordRequest records a completed tool call with its duration and status
func RecordRequest(tool string, duration float64, success bool) {
	RequestsTotal.WithLabelValues(tool, statusLabel(success)).Inc()
	RequestDuration.WithLabelValues(tool).Observe(duration)
}

// RecordAPICall records a wiki API call. kind is empty on success.
func RecordAPICall(action string, duration float64, success bool, kind string) {
	WikiAPIRequestsTotal.WithLabelValues(action, statusLabel(success)).Inc()
	WikiAPILatency.WithLabelValues(action).Observe(duration)
	if kind != "" {
		WikiAPIErrors.WithLabelValues(action, kind).Inc()
	}
}

// RecordSiteCache records a site cache hit, or a miss with its reason
// ("absent", "stale", "corrupt" or "error").
func RecordSiteCache(hit bool, reason string) {
	if hit {
		SiteCacheHits.Inc()
		return
	}
	SiteCacheMisses.WithLabelValues(reason).Inc()
}

// RecordFetchRetry records one retried HTTP attempt
func RecordFetchRetry(host string) {
	FetchRetries.WithLabelValues(host).Inc()
}

// RecordCircuitBreakerRejection records a request refused by an open circuit
func RecordCircuitBreakerRejection(host string) {
	CircuitBreakerRejections.WithLabelValues(host).Inc()
}

// RecordPageResolution records the outcome of a top-level resolution
func RecordPageResolution(outcome string, duration float64) {
	PageResolutions.WithLabelValues(outcome).Inc()
	PageResolutionDuration.Observe(duration)
}

// RecordInterwikiHop records a followed interwiki prefix
func RecordInterwikiHop(depth int) {
	InterwikiHops.WithLabelValues(depthLabel(depth)).Inc()
}

// RecordModerationRejection records a redacted result
func RecordModerationRejection(reason string) {
	ModerationRejections.WithLabelValues(reason).Inc()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

func depthLabel(depth int) string {
	if depth >= 0 && depth < 10 {
		return strconv.Itoa(depth)
	}
	return "10+"
}
