package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	checkoutSubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_submissions_total",
			Help: "Total number of checkout submissions",
		},
		[]string{"outcome"},
	)

	couponReservationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coupon_reservations_total",
			Help: "Total number of coupon reservation attempts",
		},
		[]string{"result"},
	)

	paymentPollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_polls_total",
			Help: "Total number of payment status polls",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(checkoutSubmissionsTotal)
	prometheus.MustRegister(couponReservationsTotal)
	prometheus.MustRegister(paymentPollsTotal)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

func RecordCheckoutSubmission(outcome string) {
	checkoutSubmissionsTotal.WithLabelValues(outcome).Inc()
}

func RecordCouponReservation(result string) {
	couponReservationsTotal.WithLabelValues(result).Inc()
}

func RecordPaymentPoll(status string) {
	paymentPollsTotal.WithLabelValues(status).Inc()
}
