// Package metrics exposes Prometheus collectors for the price crawler.
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

var (
	countriesTotal             *prometheus.CounterVec
	plansTotal                 *prometheus.CounterVec
	parseStrategyTotal         *prometheus.CounterVec
	fetchDurationSeconds       *prometheus.HistogramVec
	fetchBytesTotal            *prometheus.CounterVec
	conversionMissesTotal      *prometheus.CounterVec
	rateLimitDelaySeconds      *prometheus.HistogramVec
	headlessPromotionsTotal    prometheus.Counter
	activeWorkers              prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		countriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streamprice_countries_total",
				Help: "Countries scraped, labeled by outcome.",
			},
			[]string{"status"},
		)

		plansTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streamprice_plans_total",
				Help: "Plan records extracted, labeled by plan group.",
			},
			[]string{"plan_group"},
		)

		parseStrategyTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streamprice_parse_strategy_total",
				Help: "Pages parsed, labeled by the extraction strategy that produced records.",
			},
			[]string{"strategy"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "streamprice_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies, labeled by fetcher.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"fetcher"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streamprice_fetch_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		conversionMissesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streamprice_conversion_misses_total",
				Help: "Records left unconverted for lack of an exchange rate, labeled by currency.",
			},
			[]string{"currency"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "streamprice_rate_limit_delay_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		headlessPromotionsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "streamprice_headless_promotions_total",
				Help: "Probe fetches promoted to a headless render.",
			},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "streamprice_active_workers",
				Help: "Number of workers currently scraping a country.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streamprice_http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "streamprice_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
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
	Init()
	return promhttp.Handler()
}

// ObserveCountry counts a finished country scrape ("success" or "failed").
func ObserveCountry(status string) {
	Init()
	countriesTotal.WithLabelValues(status).Inc()
}

// ObservePlans counts extracted records per plan group.
func ObservePlans(group string, n int) {
	Init()
	if n > 0 {
		plansTotal.WithLabelValues(group).Add(float64(n))
	}
}

// ObserveParseStrategy counts the strategy that produced a page's records.
func ObserveParseStrategy(strategy string) {
	Init()
	if strategy == "" {
		strategy = "none"
	}
	parseStrategyTotal.WithLabelValues(strategy).Inc()
}

// ObserveFetch records latency and size of a page fetch.
func ObserveFetch(fetcher, site string, duration time.Duration, bytesFetched int) {
	Init()
	fetchDurationSeconds.WithLabelValues(fetcher).Observe(duration.Seconds())
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(SanitizeSite(site)).Add(float64(bytesFetched))
	}
}

// ObserveConversionMiss counts a record whose currency had no usable rate.
func ObserveConversionMiss(currency string) {
	Init()
	if currency == "" {
		currency = "unknown"
	}
	conversionMissesTotal.WithLabelValues(strings.ToUpper(currency)).Inc()
}

// ObserveHeadlessPromotion counts a probe escalated to the headless fetcher.
func ObserveHeadlessPromotion() {
	Init()
	headlessPromotionsTotal.Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(domain).Observe(duration.Seconds())
}
