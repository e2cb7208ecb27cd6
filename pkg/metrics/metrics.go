// Package metrics exposes Prometheus collectors for sitemap discovery and traversal.
// Observe* helpers are no-ops until Init is called, so library users pay nothing.
package metrics

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch attempt outcomes
const (
	OutcomeSuccess         = "success"
	OutcomeRetryableStatus = "retryable_status"
	OutcomeTerminalStatus  = "terminal_status"
	OutcomeTransportError  = "transport_error"
)

var (
	fetchAttemptsTotal      *prometheus.CounterVec
	fetchRetriesTotal       prometheus.Counter
	backoffSeconds          prometheus.Histogram
	entriesTotal            *prometheus.CounterVec
	traversalErrorsTotal    *prometheus.CounterVec
	discoveryCacheTotal     *prometheus.CounterVec
	discoveryStrategyTotal  *prometheus.CounterVec
	bruteforceAttemptsTotal *prometheus.CounterVec
	domainsProcessedTotal   *prometheus.CounterVec
	domainDurationSeconds   prometheus.Histogram

	once        sync.Once
	initialized bool
	mu          sync.RWMutex
)

// Init registers the collectors with the default registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitemap_fetch_attempts_total",
				Help: "Total number of raw HTTP GET attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		fetchRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sitemap_fetch_retries_total",
				Help: "Total number of retries scheduled by the fetch engine.",
			},
		)

		backoffSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sitemap_fetch_backoff_seconds",
				Help:    "Histogram of waits between fetch attempts.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		)

		entriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitemap_entries_total",
				Help: "Total number of sitemap entries emitted, labeled by site.",
			},
			[]string{"site"},
		)

		traversalErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitemap_traversal_errors_total",
				Help: "Total number of per-sitemap failures recorded during traversal, labeled by category.",
			},
			[]string{"category"},
		)

		discoveryCacheTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitemap_discovery_cache_lookups_total",
				Help: "Discovery cache lookups, labeled by result (hit or miss).",
			},
			[]string{"result"},
		)

		discoveryStrategyTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitemap_discovery_strategy_total",
				Help: "Discovery resolutions, labeled by the strategy that produced the locations.",
			},
			[]string{"strategy"},
		)

		bruteforceAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitemap_bruteforce_attempts_total",
				Help: "Bruteforce candidate requests, labeled by result (hit or miss).",
			},
			[]string{"result"},
		)

		domainsProcessedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitemap_domains_processed_total",
				Help: "Base domains processed, labeled by final status.",
			},
			[]string{"status"},
		)

		domainDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sitemap_domain_duration_seconds",
				Help:    "Histogram of wall-clock time spent on one base domain.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
			},
		)

		mu.Lock()
		initialized = true
		mu.Unlock()
	})
}

func enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return initialized
}

// SanitizeSite extracts a lowercase hostname for use as a label.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetchAttempt counts one raw GET attempt
func ObserveFetchAttempt(outcome string) {
	if !enabled() {
		return
	}
	fetchAttemptsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRetry records a scheduled retry and the wait preceding it
func ObserveRetry(wait time.Duration) {
	if !enabled() {
		return
	}
	fetchRetriesTotal.Inc()
	backoffSeconds.Observe(wait.Seconds())
}

// ObserveEntries adds n emitted entries for site
func ObserveEntries(site string, n int) {
	if !enabled() || n <= 0 {
		return
	}
	entriesTotal.WithLabelValues(SanitizeSite(site)).Add(float64(n))
}

// ObserveTraversalError counts a recorded traversal failure by category
func ObserveTraversalError(category string) {
	if !enabled() {
		return
	}
	traversalErrorsTotal.WithLabelValues(category).Inc()
}

// ObserveCacheLookup counts a discovery cache hit or miss
func ObserveCacheLookup(hit bool) {
	if !enabled() {
		return
	}
	discoveryCacheTotal.WithLabelValues(hitLabel(hit)).Inc()
}

// ObserveDiscoveryStrategy counts which strategy resolved a domain
func ObserveDiscoveryStrategy(strategy string) {
	if !enabled() {
		return
	}
	discoveryStrategyTotal.WithLabelValues(strategy).Inc()
}

// ObserveBruteforceAttempt counts one bruteforce candidate request
func ObserveBruteforceAttempt(hit bool) {
	if !enabled() {
		return
	}
	bruteforceAttemptsTotal.WithLabelValues(hitLabel(hit)).Inc()
}

// ObserveDomain records the final status and duration of one base domain
func ObserveDomain(status string, duration time.Duration) {
	if !enabled() {
		return
	}
	domainsProcessedTotal.WithLabelValues(status).Inc()
	domainDurationSeconds.Observe(duration.Seconds())
}

func hitLabel(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}
