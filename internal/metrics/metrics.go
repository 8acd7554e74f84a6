package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the billing service's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "billing",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "billing",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	quotes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: "tax",
			Name:      "quotes_total",
			Help:      "Total number of tax breakdowns computed, by kind (price, invoice).",
		},
		[]string{"kind"},
	)

	invoicesCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: "invoices",
			Name:      "created_total",
			Help:      "Total number of invoices created, by source (api, order_event).",
		},
		[]string{"source"},
	)

	invoiceTotal = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "billing",
			Subsystem: "invoices",
			Name:      "total_incl_tax",
			Help:      "Tax-inclusive totals of created invoices.",
			Buckets:   prometheus.ExponentialBuckets(10, 2.5, 10),
		},
	)

	invoiceStatusChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: "invoices",
			Name:      "status_changes_total",
			Help:      "Total number of invoice status transitions.",
		},
		[]string{"to"},
	)

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Invoice cache lookups by result (hit, miss, error).",
		},
		[]string{"result"},
	)

	eventsConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: "events",
			Name:      "consumed_total",
			Help:      "Order events consumed, by type and outcome.",
		},
		[]string{"type", "outcome"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpInFlight,
		httpRequests,
		httpDuration,
		quotes,
		invoicesCreated,
		invoiceTotal,
		invoiceStatusChanges,
		cacheLookups,
		eventsConsumed,
	)
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts, latency and in-flight requests.
// The route template is used as the path label to keep cardinality bounded.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		httpRequests.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// RecordQuote counts a computed tax breakdown.
func RecordQuote(kind string) {
	quotes.WithLabelValues(kind).Inc()
}

// RecordInvoiceCreated counts a persisted invoice and observes its total.
func RecordInvoiceCreated(source string, totalInclTax float64) {
	invoicesCreated.WithLabelValues(source).Inc()
	invoiceTotal.Observe(totalInclTax)
}

// RecordStatusChange counts an invoice status transition.
func RecordStatusChange(to string) {
	invoiceStatusChanges.WithLabelValues(to).Inc()
}

// RecordCacheLookup counts an invoice cache lookup.
func RecordCacheLookup(result string) {
	cacheLookups.WithLabelValues(result).Inc()
}

// RecordEventConsumed counts a handled order event.
func RecordEventConsumed(eventType, outcome string) {
	eventsConsumed.WithLabelValues(eventType, outcome).Inc()
}
