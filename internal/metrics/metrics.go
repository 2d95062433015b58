// Package metrics exposes Prometheus collectors for the ingestion and search services.
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

// Article outcome labels.
const (
	ArticleStored      = "stored"
	ArticleFetchFailed = "fetch_failed"
	ArticleSkipped     = "skipped"
	ArticleStoreFailed = "store_failed"
)

var (
	fetchesTotal               *prometheus.CounterVec
	fetchBytesTotal            *prometheus.CounterVec
	listingPagesTotal          prometheus.Counter
	listingCandidates          prometheus.Histogram
	articlesTotal              *prometheus.CounterVec
	documentsIndexedTotal      *prometheus.CounterVec
	searchRequestsTotal        *prometheus.CounterVec
	searchDurationSeconds      *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	rateLimitDelaysSeconds     *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blogsearch_fetches_total",
				Help: "Total number of page fetches, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blogsearch_fetch_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		listingPagesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "blogsearch_listing_pages_total",
				Help: "Total number of listing pages walked.",
			},
		)

		listingCandidates = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "blogsearch_listing_candidates",
				Help:    "Article candidates found per listing page.",
				Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
			},
		)

		articlesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blogsearch_articles_total",
				Help: "Total number of article URLs processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		documentsIndexedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blogsearch_documents_indexed_total",
				Help: "Total number of documents sent to the search index, labeled by status.",
			},
			[]string{"status"},
		)

		searchRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blogsearch_search_requests_total",
				Help: "Total number of hybrid searches, labeled by fusion strategy and status.",
			},
			[]string{"fusion", "status"},
		)

		searchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "blogsearch_search_duration_seconds",
				Help:    "Histogram of hybrid search latencies, labeled by fusion strategy.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
			},
			[]string{"fusion"},
		)

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

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "blogsearch_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
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

// ObserveFetch records one page fetch.
func ObserveFetch(site string, status string, bytesFetched int) {
	Init()
	sanitizedSite := SanitizeSite(site)
	fetchesTotal.WithLabelValues(sanitizedSite, status).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesFetched))
	}
}

// ObserveListingPage records one walked listing page and its candidate count.
func ObserveListingPage(candidates int) {
	Init()
	listingPagesTotal.Inc()
	listingCandidates.Observe(float64(candidates))
}

// ObserveArticle increments the article counter for the given outcome.
func ObserveArticle(outcome string) {
	Init()
	articlesTotal.WithLabelValues(outcome).Inc()
}

// ObserveIndexed adds n documents with the given status ("indexed" or "failed").
func ObserveIndexed(status string, n int) {
	Init()
	documentsIndexedTotal.WithLabelValues(status).Add(float64(n))
}

// ObserveSearch records a hybrid search.
func ObserveSearch(fusion string, status string, duration time.Duration) {
	Init()
	searchRequestsTotal.WithLabelValues(fusion, status).Inc()
	searchDurationSeconds.WithLabelValues(fusion).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}
