// Package metrics exposes Prometheus collectors for the crawler and the storage API.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Document outcome labels.
const (
	OutcomeCreated   = "created"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeSkipped   = "skipped"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	documentsTotal             *prometheus.CounterVec
	crawlRunsTotal             *prometheus.CounterVec
	pageFetchBytesTotal        *prometheus.CounterVec
	pageFetchDurationSeconds   *prometheus.HistogramVec
	rateLimitDelaySeconds      *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		documentsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "irdocs_documents_total",
				Help: "Documents handled by the ingestion driver, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		crawlRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "irdocs_crawl_runs_total",
				Help: "Completed crawl runs, labeled by status.",
			},
			[]string{"status"},
		)

		pageFetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "irdocs_page_fetch_bytes_total",
				Help: "Bytes of rendered HTML fetched, labeled by site.",
			},
			[]string{"site"},
		)

		pageFetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "irdocs_page_fetch_duration_seconds",
				Help:    "Time spent fetching and rendering a listing page.",
				Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 90},
			},
			[]string{"site"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "irdocs_rate_limit_delay_seconds",
				Help:    "Histogram of politeness limiter wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"host"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
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

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveDocument counts one candidate outcome.
func ObserveDocument(outcome string) {
	Init()
	documentsTotal.WithLabelValues(outcome).Inc()
}

// ObserveCrawlRun counts a finished crawl run.
func ObserveCrawlRun(status string) {
	Init()
	crawlRunsTotal.WithLabelValues(status).Inc()
}

// ObservePageFetch records the size and latency of a listing-page fetch.
func ObservePageFetch(pageURL string, bytesFetched int, duration time.Duration) {
	Init()
	site := SanitizeSite(pageURL)
	if bytesFetched > 0 {
		pageFetchBytesTotal.WithLabelValues(site).Add(float64(bytesFetched))
	}
	pageFetchDurationSeconds.WithLabelValues(site).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a politeness wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(host).Observe(duration.Seconds())
}
