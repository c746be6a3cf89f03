package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	bookings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookings_total",
			Help: "Booking lifecycle transitions (created, verified, rejected)",
		},
		[]string{"status"},
	)

	verifiedRevenue = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_revenue_verified",
			Help: "Sum of totalAmount of verified bookings, INR",
		},
	)

	seatsReserved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_seats_reserved_total",
			Help: "Seats reserved by new bookings",
		},
	)
)

func BookingCreated(seats int) {
	bookings.WithLabelValues("created").Inc()
	seatsReserved.Add(float64(seats))
}

func BookingVerified(amount float64) {
	bookings.WithLabelValues("verified").Inc()
	verifiedRevenue.Add(amount)
}

func BookingRejected() {
	bookings.WithLabelValues("rejected").Inc()
}

// Middleware records request counts and latency keyed by the matched route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the default registry.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
