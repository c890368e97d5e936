package middlewares

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "storefront_order"

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status code.",
	}, []string{"method", "route", "code"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"method", "route"})

	requestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "http_requests_in_flight",
		Help:      "Requests currently being served.",
	})

	operations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "Order operations by outcome.",
	}, []string{"operation", "outcome"})

	rejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rejections_total",
		Help:      "Order lines rejected, by reason.",
	}, []string{"reason"})

	checkoutLines = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "checkout_lines",
		Help:      "Cart lines per checkout.",
		Buckets:   prometheus.LinearBuckets(1, 2, 8),
	})

	unitsOrdered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "units_ordered_total",
		Help:      "Units committed to placed orders.",
	})
)

// PrometheusMiddleware records request count, latency and in-flight requests
// per matched route.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		requestsInFlight.Inc()
		start := time.Now()
		c.Next()
		requestsInFlight.Dec()

		requestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		requestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// RecordOrderOperation classifies an operation by the HTTP status it ended
// with: ok, partial (207), rejected (4xx) or failed (5xx).
func RecordOrderOperation(operation string, code int) {
	outcome := "ok"
	switch {
	case code == 207:
		outcome = "partial"
	case code >= 500:
		outcome = "failed"
	case code >= 400:
		outcome = "rejected"
	}
	operations.WithLabelValues(operation, outcome).Inc()
}

// RecordRejection counts a rejected order line. reason is one of
// validation, not_found, insufficient_stock, conflict, internal.
func RecordRejection(reason string) {
	rejections.WithLabelValues(reason).Inc()
}

func RecordCheckoutSize(lines int) {
	checkoutLines.Observe(float64(lines))
}

func RecordUnitsOrdered(quantity int) {
	unitsOrdered.Add(float64(quantity))
}
